package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/openrepro/repro-audit/internal/analyzer"
	"github.com/openrepro/repro-audit/internal/checklist"
	"github.com/openrepro/repro-audit/internal/metadata"
	"github.com/openrepro/repro-audit/internal/model"
	"github.com/openrepro/repro-audit/internal/resilience"
	"github.com/openrepro/repro-audit/internal/store"
	"github.com/openrepro/repro-audit/internal/summarize"
	"github.com/openrepro/repro-audit/internal/tokenbudget"
	"github.com/openrepro/repro-audit/pkg/anthropic"
)

// env bundles the wired dependencies shared by the commands.
type env struct {
	store  store.Store
	client anthropic.Client
	budget tokenbudget.Budget
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "audit.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	if cfg.Anthropic.Key == "" {
		st.Close()
		return nil, eris.New("anthropic API key is required (AUDIT_ANTHROPIC_KEY)")
	}

	return &env{
		store:  st,
		client: anthropic.NewClient(cfg.Anthropic.Key),
		budget: tokenbudget.New(cfg.Budget.MaxInputTokens, cfg.Budget.CharsPerToken),
	}, nil
}

func (e *env) Close() {
	_ = e.store.Close()
}

func (e *env) newExtractor() *metadata.Extractor {
	return metadata.New(e.client, e.budget, metadata.Config{
		Model: cfg.Anthropic.Model,
	})
}

func (e *env) newAnalyzer() *analyzer.Analyzer {
	return analyzer.New(e.client, e.store, e.budget, analyzer.Config{
		Model:             cfg.Anthropic.Model,
		Concurrency:       cfg.Analyzer.Concurrency,
		RequestsPerSecond: cfg.Analyzer.RequestsPerSecond,
		Retry:             analyzerRetry(),
	})
}

func (e *env) newSummarizer() *summarize.Summarizer {
	m := cfg.Anthropic.SummaryModel
	if m == "" {
		m = cfg.Anthropic.Model
	}
	return summarize.New(e.client, summarize.Config{Model: m})
}

func analyzerRetry() resilience.RetryConfig {
	return resilience.FixedDelay(cfg.Analyzer.RetryAttempts,
		time.Duration(cfg.Analyzer.RetryDelaySecs)*time.Second)
}

// loadChecklist returns the checklist from the given file, or the stored
// checklist when no file is given.
func loadChecklist(ctx context.Context, st store.Store, path string) ([]model.ChecklistItem, error) {
	if path != "" {
		return checklist.LoadFile(path)
	}
	items, err := st.ListChecklist(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, eris.New("no checklist loaded: import one with `repro-audit checklist import` or pass --checklist")
	}
	return items, nil
}
