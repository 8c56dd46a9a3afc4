package recovery

import (
	"regexp"
	"strings"
)

const fence = "```"

// fencePattern matches the first fenced block. The language tag is only
// consumed when it sits alone on the opening line.
var fencePattern = regexp.MustCompile("(?s)```(?:[\\w+.-]*[ \\t]*\\r?\\n)?(.*?)```")

// ExtractFenced returns the content of the first fenced code block in text and
// true, or text unchanged and false when there is no fence. An opening fence
// without a closing one (output cut off mid-block) yields everything after the
// opening line.
func ExtractFenced(text string) (string, bool) {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}

	idx := strings.Index(text, fence)
	if idx < 0 {
		return text, false
	}
	rest := text[idx+len(fence):]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		tag := strings.TrimSpace(rest[:nl])
		if !strings.ContainsAny(tag, "{[\" ") {
			rest = rest[nl+1:]
		}
	}
	return strings.TrimSpace(rest), true
}
