package metadata

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrepro/repro-audit/internal/llmjson"
	"github.com/openrepro/repro-audit/internal/tokenbudget"
	"github.com/openrepro/repro-audit/pkg/anthropic"
)

// fakeClient returns canned responses and records the requests it saw.
type fakeClient struct {
	responses []string
	err       error
	requests  []anthropic.MessageRequest
}

func (f *fakeClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	text := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}, nil
}

const validMetadataJSON = `{
  "title": "Effect of X on Y",
  "authors": ["Doe J", "Roe R"],
  "design": "randomized controlled trial",
  "doi": "10.1000/xyz123",
  "abstract": "We studied X.",
  "email": "doe@example.org",
  "discipline": "epidemiology"
}`

func TestExtract(t *testing.T) {
	t.Parallel()

	budget := tokenbudget.Default()

	t.Run("parses a valid response", func(t *testing.T) {
		t.Parallel()
		client := &fakeClient{responses: []string{"```json\n" + validMetadataJSON + "\n```"}}
		ex := New(client, budget, Config{Model: "test-model"})

		meta, err := ex.Extract(context.Background(), "Effect of X on Y. Doe J, Roe R. Abstract: We studied X.")
		require.NoError(t, err)
		assert.Equal(t, "Effect of X on Y", meta.Title)
		assert.Equal(t, []string{"Doe J", "Roe R"}, meta.Authors)
		assert.Equal(t, "10.1000/xyz123", meta.DOI)
		assert.Equal(t, "epidemiology", meta.Discipline)

		require.Len(t, client.requests, 1)
		req := client.requests[0]
		assert.Equal(t, "test-model", req.Model)
		require.NotNil(t, req.Temperature)
		assert.InDelta(t, 0.1, *req.Temperature, 0.001)
	})

	t.Run("sends only the head of a long manuscript", func(t *testing.T) {
		t.Parallel()
		small := tokenbudget.New(100, 4) // head budget: 25 tokens = 100 chars
		client := &fakeClient{responses: []string{validMetadataJSON}}
		ex := New(client, small, Config{})

		text := strings.Repeat("a", 100) + strings.Repeat("b", 500)
		_, err := ex.Extract(context.Background(), text)
		require.NoError(t, err)

		sent := client.requests[0].Messages[0].Content
		assert.Contains(t, sent, strings.Repeat("a", 100))
		assert.NotContains(t, sent, "b")
	})

	t.Run("empty text fails at templating", func(t *testing.T) {
		t.Parallel()
		ex := New(&fakeClient{responses: []string{validMetadataJSON}}, budget, Config{})
		_, err := ex.Extract(context.Background(), "")
		var ee *ExtractionError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, StepTemplate, ee.Step)
	})

	t.Run("template without placeholder fails at templating", func(t *testing.T) {
		t.Parallel()
		ex := New(&fakeClient{responses: []string{validMetadataJSON}}, budget, Config{Template: "no placeholder here"})
		_, err := ex.Extract(context.Background(), "some text")
		var ee *ExtractionError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, StepTemplate, ee.Step)
	})

	t.Run("transport failure is classified", func(t *testing.T) {
		t.Parallel()
		ex := New(&fakeClient{err: &anthropic.APIError{StatusCode: 529, Err: assert.AnError}}, budget, Config{})
		_, err := ex.Extract(context.Background(), "some text")
		var ee *ExtractionError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, StepTransport, ee.Step)
	})

	t.Run("prose response fails at parse", func(t *testing.T) {
		t.Parallel()
		ex := New(&fakeClient{responses: []string{"The title appears to be Effect of X on Y."}}, budget, Config{})
		_, err := ex.Extract(context.Background(), "some text")
		var ee *ExtractionError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, StepParse, ee.Step)
	})

	t.Run("missing required key fails at schema", func(t *testing.T) {
		t.Parallel()
		ex := New(&fakeClient{responses: []string{`{"title": "T", "authors": ["A"], "design": "", "doi": ""}`}}, budget, Config{})
		_, err := ex.Extract(context.Background(), "some text")
		var ee *ExtractionError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, StepSchema, ee.Step)
	})

	t.Run("authors of wrong type fail at schema", func(t *testing.T) {
		t.Parallel()
		bad := `{"title": "T", "authors": "Doe J", "design": "", "doi": "", "abstract": ""}`
		ex := New(&fakeClient{responses: []string{bad}}, budget, Config{})
		_, err := ex.Extract(context.Background(), "some text")
		var ee *ExtractionError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, StepSchema, ee.Step)
		var se *llmjson.SchemaError
		assert.ErrorAs(t, err, &se)
	})
}

func TestValidateFields(t *testing.T) {
	t.Parallel()

	t.Run("optional fields default to empty", func(t *testing.T) {
		t.Parallel()
		raw := map[string]any{
			"title":    "T",
			"authors":  []any{"A"},
			"design":   "cohort",
			"doi":      "",
			"abstract": "abs",
		}
		meta, err := validateFields(raw)
		require.NoError(t, err)
		assert.Equal(t, "", meta.Email)
		assert.Equal(t, "", meta.Discipline)
	})

	t.Run("empty title rejected", func(t *testing.T) {
		t.Parallel()
		raw := map[string]any{
			"title": "", "authors": []any{"A"}, "design": "", "doi": "", "abstract": "",
		}
		_, err := validateFields(raw)
		assert.Error(t, err)
	})

	t.Run("empty author list rejected", func(t *testing.T) {
		t.Parallel()
		raw := map[string]any{
			"title": "T", "authors": []any{}, "design": "", "doi": "", "abstract": "",
		}
		_, err := validateFields(raw)
		assert.Error(t, err)
	})
}
