// Package llmjson decodes JSON out of LLM completions. Models wrap their
// output in markdown fences or surround it with prose often enough that
// every consumer strips before parsing.
package llmjson

import (
	"encoding/json"
	"strings"

	"github.com/openrepro/repro-audit/pkg/anthropic"
)

// FormatError means the response arrived but its body could not be parsed
// as a JSON object.
type FormatError struct {
	Err error
}

func (e *FormatError) Error() string {
	return "llmjson: response is not valid JSON: " + e.Err.Error()
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// SchemaError means the response parsed as JSON but a field is missing, has
// the wrong type, or holds a value outside its allowed set.
type SchemaError struct {
	Field string
	Msg   string
}

func (e *SchemaError) Error() string {
	return "llmjson: field " + e.Field + ": " + e.Msg
}

// Text concatenates all text content blocks of a response.
func Text(resp *anthropic.MessageResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "" || b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// Clean strips markdown fences and extracts the JSON object.
func Clean(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// Decode cleans text and unmarshals it into v, returning a FormatError when
// the body is not JSON.
func Decode(text string, v any) error {
	if err := json.Unmarshal([]byte(Clean(text)), v); err != nil {
		return &FormatError{Err: err}
	}
	return nil
}
