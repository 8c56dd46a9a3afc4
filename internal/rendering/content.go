package rendering

import (
	"strings"

	"github.com/jonathan/ocr-review/internal/document"
)

// Block kinds recognized in OCR documents.
const (
	KindChapter      = "chapter_header"
	KindGrouping     = "grouping_header"
	KindSection      = "section"
	KindParagraph    = "paragraph"
	KindContinuation = "continuation"
	KindFootnote     = "footnote"
	KindSourceRef    = "source_ref"
)

// Paragraph is one paragraph of a section.
type Paragraph struct {
	Text      string
	SourceRef string
	IsSource  bool
}

// Block is one displayable entry of an OCR document.
type Block struct {
	Kind       string
	Number     string
	Title      string
	Text       string
	SourceRefs []string
	Paragraphs []Paragraph
}

// Meta is the page header information of an OCR document.
type Meta struct {
	BookTitle     string
	PageNumber    string
	RunningHeader string
	ContinuesFrom bool
	ContinuesTo   bool
}

// Content is the displayable form of an OCR document.
type Content struct {
	Meta   *Meta
	Blocks []Block
}

// Tag is a short label summarizing a block, shown next to a review.
type Tag struct {
	Class string
	Label string
}

// ContentOf converts a document into display blocks. Entries without a known
// kind are shown as paragraphs so no text is hidden.
func ContentOf(doc *document.Value) *Content {
	if doc.Kind() != document.KindMapping {
		return nil
	}

	c := &Content{}
	if meta := doc.Get("meta"); meta.Kind() == document.KindMapping {
		c.Meta = &Meta{
			BookTitle:     text(meta, "book_title"),
			PageNumber:    text(meta, "page_number"),
			RunningHeader: text(meta, "running_header"),
			ContinuesFrom: flag(meta.Get("continues_from")),
			ContinuesTo:   flag(meta.Get("continues_to")),
		}
	}

	for _, item := range doc.Get("data").Items() {
		if item.Kind() != document.KindMapping {
			continue
		}
		b := Block{
			Kind:       normalizeKind(text(item, "type")),
			Number:     text(item, "number"),
			Title:      text(item, "title"),
			Text:       text(item, "text"),
			SourceRefs: texts(item.Get("source_refs")),
		}
		if b.Title == "" {
			b.Title = text(item, "subtitle")
		}
		if ref := text(item, "source_ref"); ref != "" {
			b.SourceRefs = append(b.SourceRefs, ref)
		}
		for _, p := range item.Get("paragraphs").Items() {
			b.Paragraphs = append(b.Paragraphs, Paragraph{
				Text:      text(p, "text"),
				SourceRef: text(p, "source_ref"),
				IsSource:  flag(p.Get("is_makor")),
			})
		}
		c.Blocks = append(c.Blocks, b)
	}
	return c
}

// TagsOf summarizes the structure of a document: chapters, groupings,
// section numbers and continuations.
func TagsOf(doc *document.Value) []Tag {
	c := ContentOf(doc)
	if c == nil {
		return nil
	}
	var tags []Tag
	for _, b := range c.Blocks {
		switch b.Kind {
		case KindChapter:
			tags = append(tags, Tag{Class: "tag-chapter", Label: b.Number})
		case KindGrouping:
			label := b.Title
			if label == "" {
				label = b.Text
			}
			tags = append(tags, Tag{Class: "tag-group", Label: label})
		case KindSection:
			tags = append(tags, Tag{Class: "tag-section", Label: b.Number})
		case KindContinuation:
			tags = append(tags, Tag{Class: "tag-cont", Label: "continuation"})
		}
	}
	return tags
}

func normalizeKind(kind string) string {
	switch kind {
	case "continuation_fragment", "continuation_paragraph":
		return KindContinuation
	case KindChapter, KindGrouping, KindSection, KindParagraph, KindContinuation, KindFootnote, KindSourceRef:
		return kind
	default:
		return KindParagraph
	}
}

// text reads a scalar field. Sequences of scalars are joined with spaces.
func text(v *document.Value, key string) string {
	f := v.Get(key)
	switch f.Kind() {
	case document.KindString, document.KindNumber, document.KindBool:
		return f.Text()
	case document.KindSequence:
		return strings.Join(texts(f), " ")
	default:
		return ""
	}
}

func texts(v *document.Value) []string {
	var out []string
	for _, item := range v.Items() {
		switch item.Kind() {
		case document.KindString, document.KindNumber:
			out = append(out, item.Text())
		}
	}
	return out
}

// flag reads a boolean, or a mapping carrying a boolean "flag" field.
func flag(v *document.Value) bool {
	if v.Kind() == document.KindMapping {
		v = v.Get("flag")
	}
	b, _ := v.Boolean()
	return b
}
