package recovery

import (
	"strings"

	"github.com/jonathan/ocr-review/internal/document"
)

// Result is a successfully recovered document.
type Result struct {
	Document *document.Value
	// Strategy names the fallback that produced Document.
	Strategy string
	// Fenced is true when the text came out of a fenced code block.
	Fenced bool
}

// Engine applies an ordered list of strategies to model output.
type Engine struct {
	Strategies []Strategy
}

// NewEngine returns an engine using DefaultStrategies.
func NewEngine() *Engine {
	return &Engine{Strategies: DefaultStrategies}
}

// Recover extracts a fenced block if there is one, then tries each strategy
// in order and returns the first document produced. The fence is extracted
// once: if the fenced content fails every strategy, the surrounding text is
// not retried.
func (e *Engine) Recover(raw string) (*Result, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &Error{Message: "nothing to recover", Raw: raw, Cause: ErrEmptyInput}
	}

	text, fenced := ExtractFenced(raw)

	for _, s := range e.Strategies {
		if doc, ok := s.Apply(text); ok {
			return &Result{Document: doc, Strategy: s.Name, Fenced: fenced}, nil
		}
	}

	return nil, &Error{Message: "all strategies failed", Raw: raw, Cause: ErrUnrecoverable}
}

var defaultEngine = NewEngine()

// Recover runs the default engine on raw.
func Recover(raw string) (*Result, error) {
	return defaultEngine.Recover(raw)
}
