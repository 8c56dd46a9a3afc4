package recovery

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/jonathan/ocr-review/internal/document"
)

// Strategy names, in the order DefaultStrategies applies them.
const (
	StrategyDirect         = "direct"
	StrategyTrailingComma  = "trailing_comma"
	StrategyBalancedBraces = "balanced_braces"
	StrategyTruncation     = "truncation"
)

const (
	// maxTruncationRepairs bounds the parse/append loop of the truncation repair.
	maxTruncationRepairs = 10
	// closingGuess is appended on every truncation repair step. It does not
	// track real nesting depth and may fail.
	closingGuess = "]}"
)

// Strategy is one recovery attempt. Apply reports whether it produced a document.
type Strategy struct {
	Name  string
	Apply func(text string) (*document.Value, bool)
}

// DefaultStrategies lists the fallbacks from least to most invasive. Each one
// is only tried after all earlier ones failed.
var DefaultStrategies = []Strategy{
	{Name: StrategyDirect, Apply: parseDirect},
	{Name: StrategyTrailingComma, Apply: repairTrailingCommas},
	{Name: StrategyBalancedBraces, Apply: extractBalancedObject},
	{Name: StrategyTruncation, Apply: repairTruncation},
}

var trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)

func parseDirect(text string) (*document.Value, bool) {
	doc, err := document.ParseString(text)
	if err != nil {
		return nil, false
	}
	return doc, true
}

// repairTrailingCommas drops separators that directly precede a closing
// brace or bracket.
func repairTrailingCommas(text string) (*document.Value, bool) {
	fixed := trailingCommaPattern.ReplaceAllString(text, "$1")
	if fixed == text {
		return nil, false
	}
	return parseDirect(fixed)
}

// extractBalancedObject parses the first structurally complete object that
// starts at the first opening brace, ignoring whatever follows it.
func extractBalancedObject(text string) (*document.Value, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, false
	}
	end := objectEnd(text, start)
	if end < 0 {
		return nil, false
	}
	return parseDirect(text[start : end+1])
}

// repairTruncation handles output cut off by a length limit. It only runs on
// text that starts with an opening brace and never balances.
func repairTruncation(text string) (*document.Value, bool) {
	candidate := strings.TrimSpace(text)
	if !strings.HasPrefix(candidate, "{") || objectEnd(candidate, 0) >= 0 {
		return nil, false
	}

	for i := 0; i < maxTruncationRepairs; i++ {
		doc, err := document.ParseString(candidate)
		if err == nil {
			return doc, true
		}
		if !isTruncated(err) {
			return nil, false
		}
		candidate = strings.TrimRight(candidate, " \t\r\n")
		candidate = strings.TrimSuffix(candidate, ",")
		candidate += closingGuess
	}
	return nil, false
}

// objectEnd returns the index of the brace that closes the object opened at
// start, or -1 when the object never closes. Braces inside string literals
// are ignored.
func objectEnd(text string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// isTruncated reports whether a parse error means the input ended inside an
// unterminated array, object or string.
func isTruncated(err error) bool {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return strings.Contains(syntaxErr.Error(), "unexpected end of JSON input")
	}
	return false
}
