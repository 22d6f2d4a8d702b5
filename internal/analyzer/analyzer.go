// Package analyzer runs a reporting-guideline checklist against manuscript
// text, one LLM call per item, and aggregates the verdicts into a run.
package analyzer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/openrepro/repro-audit/internal/model"
	"github.com/openrepro/repro-audit/internal/resilience"
	"github.com/openrepro/repro-audit/internal/tokenbudget"
	"github.com/openrepro/repro-audit/pkg/anthropic"
)

const (
	// defaultConcurrency limits parallel per-item API calls.
	defaultConcurrency = 4

	// defaultRetryAttempts and defaultRetryDelay: one retry after a fixed
	// pause, applied per item.
	defaultRetryAttempts = 2
	defaultRetryDelay    = 5 * time.Second
)

// BatchError means a manuscript analysis produced no verdict at all: every
// item failed both attempts. Partial runs do not produce a BatchError; their
// failures are listed on the run.
type BatchError struct {
	DOI    string
	Errors []string
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("analyzer: no results for %s (%d errors): %s",
		e.DOI, len(e.Errors), strings.Join(e.Errors, "; "))
}

// ResultStore persists verdicts as they are produced. UpsertResult replaces
// any prior row for the same (DOI, item) pair.
type ResultStore interface {
	UpsertResult(ctx context.Context, r model.ComplianceResult) error
}

// Config tunes the analyzer. Zero values fall back to defaults.
type Config struct {
	Model           string
	SystemPrompt    string
	Template        string // placeholders {question}, {description}, {text}
	MaxOutputTokens int64

	// Concurrency bounds the number of in-flight item calls.
	Concurrency int

	// RequestsPerSecond caps the request issue rate. 0 means unlimited.
	RequestsPerSecond float64

	// Retry is the per-item retry policy. The zero value becomes two
	// attempts separated by a fixed five-second delay, retrying any error.
	Retry resilience.RetryConfig
}

// Analyzer evaluates checklist items against manuscript text.
type Analyzer struct {
	client  anthropic.Client
	store   ResultStore // nil disables persistence
	budget  tokenbudget.Budget
	cfg     Config
	limiter *rate.Limiter
}

// New constructs an Analyzer, applying defaults for unset config fields.
// store may be nil when verdicts should not be persisted.
func New(client anthropic.Client, store ResultStore, budget tokenbudget.Budget, cfg Config) *Analyzer {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Template == "" {
		cfg.Template = DefaultTemplate
	}
	if cfg.MaxOutputTokens == 0 {
		cfg.MaxOutputTokens = 2000
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = resilience.FixedDelay(defaultRetryAttempts, defaultRetryDelay)
	}

	a := &Analyzer{client: client, store: store, budget: budget, cfg: cfg}
	if cfg.RequestsPerSecond > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return a
}

// AnalyzeItem evaluates a single checklist item against the manuscript text.
// Long manuscripts are truncated to the input budget, keeping the trailing
// content. One call, no retries; AnalyzeManuscript owns the retry policy.
func (a *Analyzer) AnalyzeItem(ctx context.Context, meta model.ManuscriptMetadata, text string, item model.ChecklistItem) (model.ComplianceResult, error) {
	var zero model.ComplianceResult

	if err := item.Validate(); err != nil {
		return zero, err
	}
	if text == "" {
		return zero, eris.Errorf("analyzer: empty manuscript text for item %s", item.ItemID)
	}

	prompt := renderPrompt(a.cfg.Template, item.Question, item.Description(), a.budget.Truncate(text))

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return zero, eris.Wrap(err, "analyzer: rate limit wait")
		}
	}

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxOutputTokens,
		Temperature: anthropic.Float(0),
		System:      anthropic.BuildCachedSystemBlocks(a.cfg.SystemPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return zero, err
	}

	result, err := parseVerdict(resp)
	if err != nil {
		return zero, err
	}

	result.DOI = meta.DOI
	result.ItemID = item.ItemID
	result.Question = item.Question
	result.Description = item.Description()
	result.CreatedAt = time.Now().UTC()

	zap.L().Debug("item analyzed",
		zap.String("doi", meta.DOI),
		zap.String("item_id", item.ItemID),
		zap.String("compliance", string(result.Compliance)),
	)
	return result, nil
}

// AnalyzeManuscript evaluates every checklist item with a bounded worker
// pool. Each item gets the configured retry policy; both the first failure
// and the retry failure are recorded on the run, and the item is skipped
// rather than failing its siblings. Successful verdicts are upserted as they
// arrive when a store is configured. A run where nothing succeeded returns a
// BatchError.
func (a *Analyzer) AnalyzeManuscript(ctx context.Context, meta model.ManuscriptMetadata, text string, items []model.ChecklistItem) (*model.AnalysisRun, error) {
	start := time.Now()
	run := &model.AnalysisRun{
		ID:        uuid.New().String(),
		DOI:       meta.DOI,
		CreatedAt: start.UTC(),
	}
	if len(items) == 0 {
		return run, eris.Errorf("analyzer: empty checklist for %s", meta.DOI)
	}

	log := zap.L().With(zap.String("doi", meta.DOI), zap.String("run_id", run.ID))
	log.Info("starting manuscript analysis", zap.Int("items", len(items)))

	var (
		mu      sync.Mutex
		results = make([]*model.ComplianceResult, len(items))
		errs    []string
	)
	record := func(format string, args ...any) {
		mu.Lock()
		errs = append(errs, fmt.Sprintf(format, args...))
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)

	for i, item := range items {
		g.Go(func() error {
			retry := a.cfg.Retry
			retry.OnRetry = func(attempt int, err error) {
				record("item %s: attempt %d: %v", item.ItemID, attempt, err)
				log.Warn("retrying item analysis",
					zap.String("item_id", item.ItemID),
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
			}

			res, err := resilience.DoVal(gctx, retry, func(ctx context.Context) (model.ComplianceResult, error) {
				return a.AnalyzeItem(ctx, meta, text, item)
			})
			if err != nil {
				record("item %s: %v", item.ItemID, err)
				log.Warn("item analysis failed", zap.String("item_id", item.ItemID), zap.Error(err))
				return nil // don't fail the group
			}

			if a.store != nil {
				if err := a.store.UpsertResult(gctx, res); err != nil {
					record("item %s: store: %v", item.ItemID, err)
					log.Error("failed to persist verdict", zap.String("item_id", item.ItemID), zap.Error(err))
				}
			}

			mu.Lock()
			results[i] = &res
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return run, eris.Wrap(err, "analyzer: analyze manuscript")
	}

	for _, r := range results {
		if r != nil {
			run.Results = append(run.Results, *r)
		}
	}
	run.Errors = errs
	run.Duration = time.Since(start)

	log.Info("manuscript analysis finished",
		zap.Int("results", len(run.Results)),
		zap.Int("errors", len(run.Errors)),
		zap.Duration("duration", run.Duration),
	)

	if len(run.Results) == 0 {
		return run, &BatchError{DOI: meta.DOI, Errors: errs}
	}
	return run, nil
}
