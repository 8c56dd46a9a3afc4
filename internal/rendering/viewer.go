package rendering

import (
	"embed"
	"encoding/base64"
	"html/template"
	"io"
	"strings"

	"github.com/jonathan/ocr-review/internal/correction"
	"github.com/jonathan/ocr-review/internal/review"
)

//go:embed templates/*.html.tmpl
var templateFiles embed.FS

var qualityColors = map[string]string{
	review.QualityExcellent: "#4caf50",
	review.QualityGood:      "#8bc34a",
	review.QualityFair:      "#ffa726",
	review.QualityPoor:      "#f44336",
}

var severityColors = map[string]string{
	review.SeverityCritical: "#f44336",
	review.SeverityMajor:    "#ff9800",
	review.SeverityMinor:    "#ffeb3b",
}

// QAPage is one page of the QA viewer.
type QAPage struct {
	Page          int
	BookPage      int
	Image         template.URL
	Report        *review.Report
	Tags          []Tag
	HasCorrection bool
	Status        string
}

// QAViewer is the review overview of a page set.
type QAViewer struct {
	Title string
	Stats *review.Stats
	Pages []QAPage
}

// CorrectedPage is one page of the corrected viewer.
type CorrectedPage struct {
	Page     int
	BookPage int
	Image    template.URL
	Method   correction.Method
	Modified bool
	Quality  string
	Summary  string
	Changes  []correction.Change
	Content  *Content
}

// CorrectedViewer shows each page image beside its corrected text.
type CorrectedViewer struct {
	Title            string
	TotalPages       int
	ModifiedPages    int
	TotalCorrections int
	Pages            []CorrectedPage
}

var funcs = template.FuncMap{
	"upper":         strings.ToUpper,
	"qualityColor":  func(q string) string { return colorOr(qualityColors, q) },
	"severityColor": func(s string) string { return colorOr(severityColors, s) },
	"quality":       func(r *review.Report) string { return r.Quality() },
}

var viewerTemplates = template.Must(
	template.New("viewers").Funcs(funcs).ParseFS(templateFiles, "templates/*.html.tmpl"),
)

// ImageURL embeds a PNG as a data URI. Empty input yields an empty URL.
func ImageURL(png []byte) template.URL {
	if len(png) == 0 {
		return ""
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
}

// RenderQAViewer writes the QA viewer HTML.
func RenderQAViewer(w io.Writer, v *QAViewer) error {
	return execute(w, "qa_viewer.html.tmpl", v)
}

// RenderCorrectedViewer writes the corrected viewer HTML.
func RenderCorrectedViewer(w io.Writer, v *CorrectedViewer) error {
	return execute(w, "corrected_viewer.html.tmpl", v)
}

func execute(w io.Writer, name string, data any) error {
	if err := viewerTemplates.ExecuteTemplate(w, name, data); err != nil {
		return &TemplateError{Template: name, Cause: err}
	}
	return nil
}

func colorOr(colors map[string]string, key string) string {
	if c, ok := colors[key]; ok {
		return c
	}
	return "#999"
}
