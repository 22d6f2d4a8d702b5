package analyzer

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrepro/repro-audit/internal/model"
	"github.com/openrepro/repro-audit/internal/resilience"
	"github.com/openrepro/repro-audit/internal/tokenbudget"
	"github.com/openrepro/repro-audit/pkg/anthropic"
)

// fakeClient answers via a caller-supplied function and records requests.
type fakeClient struct {
	mu      sync.Mutex
	calls   int
	reqs    []anthropic.MessageRequest
	respond func(call int, req anthropic.MessageRequest) (string, error)
}

func (f *fakeClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	text, err := f.respond(call, req)
	if err != nil {
		return nil, err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}, nil
}

// memStore collects upserted results keyed by (doi, item_id).
type memStore struct {
	mu      sync.Mutex
	results map[string]model.ComplianceResult
	err     error
}

func newMemStore() *memStore {
	return &memStore{results: make(map[string]model.ComplianceResult)}
}

func (s *memStore) UpsertResult(ctx context.Context, r model.ComplianceResult) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[r.DOI+"|"+r.ItemID] = r
	return nil
}

const goodVerdict = `{"compliance": "partial", "explanation": "Randomization is mentioned but the method is not described.", "quote": "participants were randomized", "section": "Methods"}`

var (
	testMeta  = model.ManuscriptMetadata{Title: "T", Authors: []string{"A"}, DOI: "10.1/abc"}
	testItems = []model.ChecklistItem{
		{ItemID: "1a", Category: "Design", Question: "Is the design stated?", Original: "State the study design."},
		{ItemID: "1b", Category: "Design", Question: "Is randomization described?"},
		{ItemID: "2", Category: "Statistics", Question: "Are statistical methods described?"},
	}
)

func testConfig() Config {
	return Config{Model: "test-model", Retry: resilience.FixedDelay(2, 0)}
}

func TestAnalyzeItem(t *testing.T) {
	t.Parallel()

	t.Run("stamps identity fields and normalizes the verdict", func(t *testing.T) {
		t.Parallel()
		client := &fakeClient{respond: func(int, anthropic.MessageRequest) (string, error) {
			return "```json\n" + goodVerdict + "\n```", nil
		}}
		a := New(client, nil, tokenbudget.Default(), testConfig())

		res, err := a.AnalyzeItem(context.Background(), testMeta, "manuscript text", testItems[0])
		require.NoError(t, err)
		assert.Equal(t, "10.1/abc", res.DOI)
		assert.Equal(t, "1a", res.ItemID)
		assert.Equal(t, "Is the design stated?", res.Question)
		assert.Equal(t, "State the study design.", res.Description)
		assert.Equal(t, model.CompliancePartial, res.Compliance)
		assert.Equal(t, "participants were randomized", res.Quote)
		assert.False(t, res.CreatedAt.IsZero())
	})

	t.Run("sends the trailing text when over budget", func(t *testing.T) {
		t.Parallel()
		client := &fakeClient{respond: func(int, anthropic.MessageRequest) (string, error) {
			return goodVerdict, nil
		}}
		small := tokenbudget.New(100, 4) // 400 chars
		a := New(client, nil, small, testConfig())

		text := strings.Repeat("H", 500) + strings.Repeat("T", 400)
		_, err := a.AnalyzeItem(context.Background(), testMeta, text, testItems[0])
		require.NoError(t, err)

		sent := client.reqs[0].Messages[0].Content
		assert.Contains(t, sent, strings.Repeat("T", 400))
		assert.NotContains(t, sent, "H")
	})

	t.Run("invalid compliance value is a schema failure", func(t *testing.T) {
		t.Parallel()
		client := &fakeClient{respond: func(int, anthropic.MessageRequest) (string, error) {
			return `{"compliance": "maybe", "explanation": "unsure"}`, nil
		}}
		a := New(client, nil, tokenbudget.Default(), testConfig())
		_, err := a.AnalyzeItem(context.Background(), testMeta, "text", testItems[0])
		assert.Error(t, err)
	})

	t.Run("empty explanation is rejected", func(t *testing.T) {
		t.Parallel()
		client := &fakeClient{respond: func(int, anthropic.MessageRequest) (string, error) {
			return `{"compliance": "Yes", "explanation": "  "}`, nil
		}}
		a := New(client, nil, tokenbudget.Default(), testConfig())
		_, err := a.AnalyzeItem(context.Background(), testMeta, "text", testItems[0])
		assert.Error(t, err)
	})

	t.Run("system prompt is cached", func(t *testing.T) {
		t.Parallel()
		client := &fakeClient{respond: func(int, anthropic.MessageRequest) (string, error) {
			return goodVerdict, nil
		}}
		a := New(client, nil, tokenbudget.Default(), testConfig())
		_, err := a.AnalyzeItem(context.Background(), testMeta, "text", testItems[0])
		require.NoError(t, err)
		require.Len(t, client.reqs[0].System, 1)
		require.NotNil(t, client.reqs[0].System[0].CacheControl)
	})
}

func TestAnalyzeManuscript(t *testing.T) {
	t.Parallel()

	t.Run("all items succeed in checklist order", func(t *testing.T) {
		t.Parallel()
		client := &fakeClient{respond: func(int, anthropic.MessageRequest) (string, error) {
			return goodVerdict, nil
		}}
		store := newMemStore()
		a := New(client, store, tokenbudget.Default(), testConfig())

		run, err := a.AnalyzeManuscript(context.Background(), testMeta, "text", testItems)
		require.NoError(t, err)
		require.Len(t, run.Results, 3)
		assert.Empty(t, run.Errors)
		assert.NotEmpty(t, run.ID)

		ids := make([]string, len(run.Results))
		for i, r := range run.Results {
			ids[i] = r.ItemID
		}
		assert.Equal(t, []string{"1a", "1b", "2"}, ids)
		assert.Len(t, store.results, 3)
	})

	t.Run("a failing item is retried once and recorded, siblings continue", func(t *testing.T) {
		t.Parallel()
		var mu sync.Mutex
		failed := map[string]int{}
		client := &fakeClient{respond: func(_ int, req anthropic.MessageRequest) (string, error) {
			if strings.Contains(req.Messages[0].Content, "randomization") {
				mu.Lock()
				failed["1b"]++
				mu.Unlock()
				return "", &anthropic.APIError{StatusCode: 529, Err: eris.New("overloaded")}
			}
			return goodVerdict, nil
		}}
		a := New(client, nil, tokenbudget.Default(), testConfig())

		run, err := a.AnalyzeManuscript(context.Background(), testMeta, "text", testItems)
		require.NoError(t, err)
		assert.Len(t, run.Results, 2)
		assert.Equal(t, 2, failed["1b"]) // first attempt plus exactly one retry
		require.Len(t, run.Errors, 2)   // one entry per failed attempt
		for _, e := range run.Errors {
			assert.Contains(t, e, "item 1b")
		}
	})

	t.Run("malformed responses are retried like transport failures", func(t *testing.T) {
		t.Parallel()
		var mu sync.Mutex
		attempts := 0
		client := &fakeClient{respond: func(_ int, req anthropic.MessageRequest) (string, error) {
			if strings.Contains(req.Messages[0].Content, "randomization") {
				mu.Lock()
				attempts++
				n := attempts
				mu.Unlock()
				if n == 1 {
					return "not json at all", nil
				}
			}
			return goodVerdict, nil
		}}
		a := New(client, nil, tokenbudget.Default(), testConfig())

		run, err := a.AnalyzeManuscript(context.Background(), testMeta, "text", testItems)
		require.NoError(t, err)
		assert.Len(t, run.Results, 3)
		require.Len(t, run.Errors, 1)
		assert.Contains(t, run.Errors[0], "item 1b")
	})

	t.Run("zero results is a batch error carrying the failures", func(t *testing.T) {
		t.Parallel()
		client := &fakeClient{respond: func(int, anthropic.MessageRequest) (string, error) {
			return "", &anthropic.APIError{StatusCode: 500, Err: eris.New("boom")}
		}}
		a := New(client, nil, tokenbudget.Default(), testConfig())

		run, err := a.AnalyzeManuscript(context.Background(), testMeta, "text", testItems)
		require.Error(t, err)
		var be *BatchError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, "10.1/abc", be.DOI)
		assert.Len(t, be.Errors, 6) // 3 items × 2 attempts
		assert.Empty(t, run.Results)
	})

	t.Run("store failure is recorded but the verdict is kept", func(t *testing.T) {
		t.Parallel()
		client := &fakeClient{respond: func(int, anthropic.MessageRequest) (string, error) {
			return goodVerdict, nil
		}}
		store := newMemStore()
		store.err = eris.New("db down")
		a := New(client, store, tokenbudget.Default(), testConfig())

		run, err := a.AnalyzeManuscript(context.Background(), testMeta, "text", testItems)
		require.NoError(t, err)
		assert.Len(t, run.Results, 3)
		assert.Len(t, run.Errors, 3)
		assert.Contains(t, run.Errors[0], "store:")
	})

	t.Run("empty checklist is an error", func(t *testing.T) {
		t.Parallel()
		a := New(&fakeClient{respond: func(int, anthropic.MessageRequest) (string, error) {
			return goodVerdict, nil
		}}, nil, tokenbudget.Default(), testConfig())
		_, err := a.AnalyzeManuscript(context.Background(), testMeta, "text", nil)
		assert.Error(t, err)
	})
}
