package llmjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrepro/repro-audit/pkg/anthropic"
)

func TestClean(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"prose around object", `Here is the result: {"a": 1} hope that helps`, `{"a": 1}`},
		{"whitespace", "  \n{\"a\": 1}\n  ", `{"a": 1}`},
		{"nested braces", `{"a": {"b": 2}}`, `{"a": {"b": 2}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	t.Run("decodes fenced object", func(t *testing.T) {
		t.Parallel()
		var out struct {
			Compliance string `json:"compliance"`
		}
		err := Decode("```json\n{\"compliance\": \"Yes\"}\n```", &out)
		require.NoError(t, err)
		assert.Equal(t, "Yes", out.Compliance)
	})

	t.Run("non-JSON yields FormatError", func(t *testing.T) {
		t.Parallel()
		var out map[string]any
		err := Decode("I cannot answer that.", &out)
		require.Error(t, err)
		var fe *FormatError
		assert.ErrorAs(t, err, &fe)
	})
}

func TestText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", Text(nil))

	resp := &anthropic.MessageResponse{Content: []anthropic.ContentBlock{
		{Type: "text", Text: "hello "},
		{Type: "tool_use", Text: "ignored"},
		{Type: "", Text: "world"},
	}}
	assert.Equal(t, "hello world", Text(resp))
}
