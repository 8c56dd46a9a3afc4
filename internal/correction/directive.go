// Package correction merges review findings into a recovered page document.
package correction

import (
	"github.com/jonathan/ocr-review/internal/document"
)

// Directive is one correction instruction. It either carries a complete
// replacement document or an original/corrected text pair; the remaining
// fields are free text used for reporting only.
type Directive struct {
	Replacement *document.Value `json:"replacement,omitempty"`

	Original  string `json:"original,omitempty"`
	Corrected string `json:"corrected,omitempty"`

	Type        string `json:"type,omitempty"`
	Severity    string `json:"severity,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// IsReplacement reports whether d carries a usable replacement document.
// Null, the string "null" and an empty mapping are not usable.
func (d Directive) IsReplacement() bool {
	r := d.Replacement
	switch r.Kind() {
	case document.KindNull:
		return false
	case document.KindString:
		s, _ := r.Str()
		return s != "" && s != "null"
	case document.KindMapping, document.KindSequence:
		return r.Len() > 0
	default:
		return true
	}
}

// IsNoOp reports whether d, used as a fragment directive, cannot change anything.
func (d Directive) IsNoOp() bool {
	return d.Original == "" || d.Corrected == "" || d.Original == d.Corrected
}

// ChangeKind distinguishes whole-document from fragment changes.
type ChangeKind string

// Change kinds.
const (
	ChangeFullReplacement ChangeKind = "full_replacement"
	ChangeFragment        ChangeKind = "fragment"
)

// Change records one directive that altered the document.
type Change struct {
	Kind      ChangeKind `json:"kind"`
	Original  string     `json:"original,omitempty"`
	Corrected string     `json:"corrected,omitempty"`
	Type      string     `json:"type,omitempty"`
	Severity  string     `json:"severity,omitempty"`
	Location  string     `json:"location,omitempty"`
	// Replacements counts string leaves that changed, not substring occurrences.
	Replacements int `json:"replacements_made"`
}

// Method describes how a merge produced its document.
type Method string

// Merge methods.
const (
	MethodCorrectedJSON           Method = "corrected_json"
	MethodTextReplacement         Method = "text_replacement"
	MethodNoApplicableCorrections Method = "no_applicable_corrections"
	MethodNoCorrectionsNeeded     Method = "no_corrections_needed"

	// Set by the apply stage when there was no usable review for the page.
	MethodQAParseFailed Method = "qa_parse_failed"
	MethodNoParsedJSON  Method = "no_parsed_json"
)

// MergeResult is the corrected document plus the ordered change log.
type MergeResult struct {
	Document *document.Value `json:"document"`
	Changes  []Change        `json:"changes"`
	Method   Method          `json:"method"`
}

// Modified reports whether any directive changed the document.
func (r *MergeResult) Modified() bool {
	return len(r.Changes) > 0
}
