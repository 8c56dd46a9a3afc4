package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/ocr-review/internal/correction"
	"github.com/jonathan/ocr-review/internal/document"
)

const sampleReport = `{
  "page": 3,
  "book_page": "39",
  "overall_quality": "fair",
  "summary": "two wrong words",
  "issues": [
    {"type": "wrong_text", "severity": "major", "location": "section 2", "description": "typo",
     "original_text": "the cat sat", "corrected_text": "the dog sat"},
    {"type": "missing_section", "severity": "critical", "location": "end", "description": "section 3 missing"},
    "not an issue",
    {"type": "other", "severity": "minor", "original_text": 12, "corrected_text": 13}
  ],
  "corrected_json": null
}`

func TestParseReport(t *testing.T) {
	r, err := ParseReport(document.MustParse(sampleReport))
	require.NoError(t, err)

	assert.Equal(t, 3, r.Page)
	assert.Equal(t, 39, r.BookPage)
	assert.Equal(t, QualityFair, r.Quality())
	assert.Equal(t, "two wrong words", r.Summary)
	assert.Nil(t, r.CorrectedJSON)
	require.Len(t, r.Issues, 3)
	assert.Equal(t, "the cat sat", r.Issues[0].OriginalText)
	assert.Empty(t, r.Issues[1].OriginalText)
	assert.Equal(t, "12", r.Issues[2].OriginalText)
}

func TestParseReport_NotAnObject(t *testing.T) {
	for _, in := range []string{`[]`, `"text"`, `null`} {
		_, err := ParseReport(document.MustParse(in))
		assert.Error(t, err, in)
	}
}

func TestParseReport_MissingFields(t *testing.T) {
	r, err := ParseReport(document.MustParse(`{}`))
	require.NoError(t, err)

	assert.Equal(t, QualityUnknown, r.Quality())
	assert.Empty(t, r.Issues)
	assert.Empty(t, r.Directives())
}

func TestReport_Directives(t *testing.T) {
	t.Run("fragments only", func(t *testing.T) {
		r, err := ParseReport(document.MustParse(sampleReport))
		require.NoError(t, err)

		ds := r.Directives()
		require.Len(t, ds, 3)
		assert.False(t, ds[0].IsNoOp())
		assert.True(t, ds[1].IsNoOp())
		assert.Equal(t, "critical", ds[1].Severity)

		base := document.MustParse(`{"data": [{"text": "the cat sat down"}]}`)
		result := correction.Merge(base, ds)
		assert.Equal(t, correction.MethodTextReplacement, result.Method)
		assert.Equal(t, "the dog sat down", result.Document.Get("data").Index(0).Get("text").Text())
	})

	t.Run("corrected json comes first", func(t *testing.T) {
		r, err := ParseReport(document.MustParse(`{
			"overall_quality": "poor",
			"issues": [{"original_text": "a", "corrected_text": "b"}],
			"corrected_json": {"data": [{"text": "fixed"}]}
		}`))
		require.NoError(t, err)

		ds := r.Directives()
		require.Len(t, ds, 2)
		assert.True(t, ds[0].IsReplacement())

		result := correction.Merge(document.MustParse(`{"data": []}`), ds)
		assert.Equal(t, correction.MethodCorrectedJSON, result.Method)
		assert.True(t, document.Equal(r.CorrectedJSON, result.Document))
	})

	t.Run("empty corrected json is dropped", func(t *testing.T) {
		r, err := ParseReport(document.MustParse(`{"corrected_json": {}}`))
		require.NoError(t, err)
		assert.Empty(t, r.Directives())

		result := correction.Merge(document.MustParse(`{"a": "b"}`), r.Directives())
		assert.Equal(t, correction.MethodNoCorrectionsNeeded, result.Method)
	})
}

func TestComputeStats(t *testing.T) {
	good, err := ParseReport(document.MustParse(`{"overall_quality": "good", "issues": [{"severity": "minor"}]}`))
	require.NoError(t, err)
	fair, err := ParseReport(document.MustParse(sampleReport))
	require.NoError(t, err)

	s := ComputeStats([]*Report{good, fair, nil})

	assert.Equal(t, 3, s.Pages)
	assert.Equal(t, 2, s.Reviewed)
	assert.Equal(t, 4, s.TotalIssues)
	assert.Equal(t, 1, s.Quality[QualityGood])
	assert.Equal(t, 1, s.Quality[QualityFair])
	assert.Equal(t, 0, s.Quality[QualityExcellent])
	assert.Equal(t, 2, s.Severity[SeverityMinor])
	assert.Equal(t, 1, s.Severity[SeverityMajor])
	assert.Equal(t, 1, s.Severity[SeverityCritical])
}

func TestBuildPrompt(t *testing.T) {
	ocr := document.MustParse(`{"data": [{"text": "hello"}]}`)

	p, err := BuildPrompt(5, 41, "OCR RULES", ocr)
	require.NoError(t, err)

	assert.Contains(t, p.System, "Quality Assurance reviewer")
	assert.Contains(t, p.User, "Page 5 of the PDF (book page 41)")
	assert.Contains(t, p.User, "OCR RULES")
	assert.Contains(t, p.User, "\"text\": \"hello\"")
	assert.NotContains(t, p.User, "{{.")
}
