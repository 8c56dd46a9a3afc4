// Package review reads QA reviewer output and turns it into correction directives.
package review

import (
	"fmt"

	"github.com/jonathan/ocr-review/internal/correction"
	"github.com/jonathan/ocr-review/internal/document"
)

// Quality buckets reported by the reviewer.
const (
	QualityExcellent = "excellent"
	QualityGood      = "good"
	QualityFair      = "fair"
	QualityPoor      = "poor"
	QualityUnknown   = "unknown"
)

// Issue severities.
const (
	SeverityCritical = "critical"
	SeverityMajor    = "major"
	SeverityMinor    = "minor"
)

// Issue is one finding from the reviewer.
type Issue struct {
	Type          string `json:"type"`
	Severity      string `json:"severity"`
	Location      string `json:"location"`
	Description   string `json:"description"`
	OriginalText  string `json:"original_text,omitempty"`
	CorrectedText string `json:"corrected_text,omitempty"`
}

// Report is the reviewer's assessment of one page.
type Report struct {
	Page           int             `json:"page"`
	BookPage       int             `json:"book_page"`
	OverallQuality string          `json:"overall_quality"`
	Summary        string          `json:"summary"`
	Issues         []Issue         `json:"issues"`
	CorrectedJSON  *document.Value `json:"corrected_json"`
}

// ParseReport reads a recovered QA document. Missing or mistyped fields are
// tolerated; only a document that is not a mapping is rejected.
func ParseReport(doc *document.Value) (*Report, error) {
	if doc.Kind() != document.KindMapping {
		return nil, fmt.Errorf("review report must be an object, got %s", doc.Kind())
	}

	r := &Report{
		OverallQuality: textField(doc, "overall_quality"),
		Summary:        textField(doc, "summary"),
		Issues:         make([]Issue, 0),
	}
	r.Page, _ = doc.Get("page").IntValue()
	r.BookPage, _ = doc.Get("book_page").IntValue()
	if cj := doc.Get("corrected_json"); !cj.IsNull() {
		r.CorrectedJSON = cj.Clone()
	}

	for _, item := range doc.Get("issues").Items() {
		if item.Kind() != document.KindMapping {
			continue
		}
		r.Issues = append(r.Issues, Issue{
			Type:          textField(item, "type"),
			Severity:      textField(item, "severity"),
			Location:      textField(item, "location"),
			Description:   textField(item, "description"),
			OriginalText:  textField(item, "original_text"),
			CorrectedText: textField(item, "corrected_text"),
		})
	}

	return r, nil
}

// Quality returns the overall quality, or QualityUnknown when it was not given.
func (r *Report) Quality() string {
	if r == nil || r.OverallQuality == "" {
		return QualityUnknown
	}
	return r.OverallQuality
}

// Directives converts the report into merge input: the corrected document
// first when it is usable, then one fragment directive per issue.
func (r *Report) Directives() []correction.Directive {
	out := make([]correction.Directive, 0, len(r.Issues)+1)
	if full := (correction.Directive{
		Replacement: r.CorrectedJSON,
		Type:        "corrected_json",
		Description: r.Summary,
	}); full.IsReplacement() {
		out = append(out, full)
	}
	for _, iss := range r.Issues {
		out = append(out, correction.Directive{
			Original:    iss.OriginalText,
			Corrected:   iss.CorrectedText,
			Type:        iss.Type,
			Severity:    iss.Severity,
			Location:    iss.Location,
			Description: iss.Description,
		})
	}
	return out
}

// textField returns the string form of a scalar field, or "" when absent.
func textField(doc *document.Value, key string) string {
	v := doc.Get(key)
	switch v.Kind() {
	case document.KindString:
		s, _ := v.Str()
		return s
	case document.KindNumber, document.KindBool:
		return v.Text()
	default:
		return ""
	}
}
