// Package llmjson extracts JSON payloads from language-model replies.
package llmjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var fenceExpr = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// ErrEmpty is returned when the reply has no content.
var ErrEmpty = errors.New("empty model reply")

// StripFences removes a surrounding Markdown code fence, if present.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if m := fenceExpr.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	// Unterminated fence: drop the opening line.
	if idx := strings.Index(text, "\n"); idx >= 0 {
		return strings.TrimSpace(strings.TrimSuffix(text[idx+1:], "```"))
	}
	return ""
}

// Decode strips fences and decodes a single JSON object into v.
// Trailing data after the object is rejected.
func Decode(text string, v any) error {
	text = StripFences(text)
	if text == "" {
		return ErrEmpty
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode model json: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("decode model json: trailing data after object")
	}
	return nil
}
