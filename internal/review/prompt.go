package review

import (
	"strconv"

	"github.com/jonathan/ocr-review/internal/document"
	"github.com/jonathan/ocr-review/internal/prompts"
)

// Prompt is the system and user text sent to the reviewer for one page.
type Prompt struct {
	System string
	User   string
}

// BuildPrompt assembles the reviewer prompt from the OCR instructions that
// produced the page and the recovered OCR document.
func BuildPrompt(page, bookPage int, ocrInstructions string, ocrResult *document.Value) (*Prompt, error) {
	system, err := prompts.Get(prompts.QAFile, prompts.KeySystem)
	if err != nil {
		return nil, err
	}
	user, err := prompts.Get(prompts.QAFile, prompts.KeyUser)
	if err != nil {
		return nil, err
	}

	result, err := ocrResult.MarshalIndent("", "  ")
	if err != nil {
		return nil, err
	}

	return &Prompt{
		System: system,
		User: prompts.Format(user, map[string]string{
			"Page":      strconv.Itoa(page),
			"BookPage":  strconv.Itoa(bookPage),
			"OCRPrompt": ocrInstructions,
			"OCRResult": string(result),
		}),
	}, nil
}
