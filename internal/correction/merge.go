package correction

import (
	"strings"

	"github.com/jonathan/ocr-review/internal/document"
)

// Merge applies directives to an independent copy of base.
//
// If any directive carries a usable replacement document, the first one
// becomes the result and every other directive is ignored. Otherwise each
// fragment directive is applied in order to the copy produced by the ones
// before it. Fragment mode only rewrites string leaves, so mapping keys and
// sequence lengths are preserved at every depth.
func Merge(base *document.Value, directives []Directive) *MergeResult {
	for _, d := range directives {
		if d.IsReplacement() {
			return &MergeResult{
				Document: d.Replacement.Clone(),
				Changes: []Change{{
					Kind:         ChangeFullReplacement,
					Type:         d.Type,
					Severity:     d.Severity,
					Location:     d.Location,
					Replacements: 1,
				}},
				Method: MethodCorrectedJSON,
			}
		}
	}

	doc := base.Clone()
	if doc == nil {
		doc = document.Null()
	}
	changes := make([]Change, 0)

	for _, d := range directives {
		if d.IsNoOp() {
			continue
		}
		n := replaceInLeaves(doc, d.Original, d.Corrected)
		if n == 0 {
			continue
		}
		changes = append(changes, Change{
			Kind:         ChangeFragment,
			Original:     d.Original,
			Corrected:    d.Corrected,
			Type:         d.Type,
			Severity:     d.Severity,
			Location:     d.Location,
			Replacements: n,
		})
	}

	method := MethodTextReplacement
	switch {
	case len(directives) == 0:
		method = MethodNoCorrectionsNeeded
	case len(changes) == 0:
		method = MethodNoApplicableCorrections
	}

	return &MergeResult{Document: doc, Changes: changes, Method: method}
}

// replaceInLeaves replaces every occurrence of original in every string leaf
// of doc and returns the number of leaves that changed.
func replaceInLeaves(doc *document.Value, original, corrected string) int {
	count := 0
	doc.Walk(func(node *document.Value) bool {
		s, ok := node.Str()
		if !ok || !strings.Contains(s, original) {
			return true
		}
		node.SetString(strings.ReplaceAll(s, original, corrected))
		count++
		return true
	})
	return count
}
