// Package store persists manuscripts, checklist items, compliance verdicts,
// runs, and summaries. Verdicts are keyed by (doi, item_id): re-analysis
// replaces the prior row for the pair, and there is never more than one
// current verdict per pair. SQLite and Postgres backends implement the same
// contract.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/openrepro/repro-audit/internal/model"
)

// ErrNotFound is returned by lookups when the keyed row does not exist.
var ErrNotFound = eris.New("store: not found")

// RunRecord is the stored trace of one analysis run: which items failed and
// why, without duplicating the verdicts themselves.
type RunRecord struct {
	ID          string        `json:"id"`
	DOI         string        `json:"doi"`
	ResultCount int           `json:"result_count"`
	Errors      []string      `json:"errors,omitempty"`
	Duration    time.Duration `json:"duration"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Store is the persistence contract shared by both backends.
type Store interface {
	Migrate(ctx context.Context) error
	Close() error

	// SaveManuscript upserts metadata keyed by DOI.
	SaveManuscript(ctx context.Context, meta model.ManuscriptMetadata) error
	GetManuscript(ctx context.Context, doi string) (*model.ManuscriptMetadata, error)

	// SaveChecklist replaces the stored checklist, preserving item order.
	SaveChecklist(ctx context.Context, items []model.ChecklistItem) error
	ListChecklist(ctx context.Context) ([]model.ChecklistItem, error)

	// UpsertResult replaces any prior verdict for (doi, item_id). Each call
	// is its own write; a batch of items is not a transaction.
	UpsertResult(ctx context.Context, r model.ComplianceResult) error
	GetResults(ctx context.Context, doi string) ([]model.ComplianceResult, error)

	SaveRun(ctx context.Context, run *model.AnalysisRun) error
	ListRuns(ctx context.Context, doi string) ([]RunRecord, error)

	// SaveSummary upserts the summary keyed by DOI; regenerated summaries
	// supersede stored ones.
	SaveSummary(ctx context.Context, s model.ComplianceSummary) error
	GetSummary(ctx context.Context, doi string) (*model.ComplianceSummary, error)
}

func runRecord(run *model.AnalysisRun) RunRecord {
	return RunRecord{
		ID:          run.ID,
		DOI:         run.DOI,
		ResultCount: len(run.Results),
		Errors:      run.Errors,
		Duration:    run.Duration,
		CreatedAt:   run.CreatedAt,
	}
}
