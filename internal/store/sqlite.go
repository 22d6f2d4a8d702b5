package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/openrepro/repro-audit/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS manuscripts (
	doi        TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	authors    TEXT NOT NULL,
	design     TEXT NOT NULL DEFAULT '',
	abstract   TEXT NOT NULL DEFAULT '',
	email      TEXT NOT NULL DEFAULT '',
	discipline TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS checklist_items (
	item_id  TEXT PRIMARY KEY,
	category TEXT NOT NULL DEFAULT '',
	question TEXT NOT NULL,
	original TEXT NOT NULL DEFAULT '',
	section  TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS compliance_results (
	doi         TEXT NOT NULL,
	item_id     TEXT NOT NULL,
	question    TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	compliance  TEXT NOT NULL,
	explanation TEXT NOT NULL,
	quote       TEXT NOT NULL DEFAULT '',
	section     TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL,
	PRIMARY KEY (doi, item_id)
);

CREATE TABLE IF NOT EXISTS analysis_runs (
	id           TEXT PRIMARY KEY,
	doi          TEXT NOT NULL,
	result_count INTEGER NOT NULL,
	errors       TEXT NOT NULL DEFAULT '[]',
	duration_ms  INTEGER NOT NULL,
	created_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS summaries (
	doi        TEXT PRIMARY KEY,
	overview   TEXT NOT NULL,
	categories TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_doi ON compliance_results(doi);
CREATE INDEX IF NOT EXISTS idx_runs_doi ON analysis_runs(doi);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveManuscript(ctx context.Context, meta model.ManuscriptMetadata) error {
	if meta.DOI == "" {
		return eris.New("sqlite: manuscript missing doi")
	}
	authorsJSON, err := json.Marshal(meta.Authors)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal authors")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO manuscripts (doi, title, authors, design, abstract, email, discipline, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (doi) DO UPDATE SET
		   title = excluded.title, authors = excluded.authors, design = excluded.design,
		   abstract = excluded.abstract, email = excluded.email, discipline = excluded.discipline`,
		meta.DOI, meta.Title, string(authorsJSON), meta.Design, meta.Abstract,
		meta.Email, meta.Discipline, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save manuscript %s", meta.DOI)
}

func (s *SQLiteStore) GetManuscript(ctx context.Context, doi string) (*model.ManuscriptMetadata, error) {
	var meta model.ManuscriptMetadata
	var authorsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT doi, title, authors, design, abstract, email, discipline FROM manuscripts WHERE doi = ?`,
		doi,
	).Scan(&meta.DOI, &meta.Title, &authorsJSON, &meta.Design, &meta.Abstract, &meta.Email, &meta.Discipline)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get manuscript %s", doi)
	}
	if err := json.Unmarshal([]byte(authorsJSON), &meta.Authors); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal authors")
	}
	return &meta, nil
}

func (s *SQLiteStore) SaveChecklist(ctx context.Context, items []model.ChecklistItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin checklist tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM checklist_items`); err != nil {
		return eris.Wrap(err, "sqlite: clear checklist")
	}
	for i, it := range items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO checklist_items (item_id, category, question, original, section, position)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			it.ItemID, it.Category, it.Question, it.Original, it.Section, i,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert checklist item %s", it.ItemID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit checklist")
}

func (s *SQLiteStore) ListChecklist(ctx context.Context) ([]model.ChecklistItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, category, question, original, section FROM checklist_items ORDER BY position`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list checklist")
	}
	defer rows.Close()

	var items []model.ChecklistItem
	for rows.Next() {
		var it model.ChecklistItem
		if err := rows.Scan(&it.ItemID, &it.Category, &it.Question, &it.Original, &it.Section); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan checklist item")
		}
		items = append(items, it)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: list checklist iterate")
}

func (s *SQLiteStore) UpsertResult(ctx context.Context, r model.ComplianceResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO compliance_results (doi, item_id, question, description, compliance, explanation, quote, section, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (doi, item_id) DO UPDATE SET
		   question = excluded.question, description = excluded.description,
		   compliance = excluded.compliance, explanation = excluded.explanation,
		   quote = excluded.quote, section = excluded.section, created_at = excluded.created_at`,
		r.DOI, r.ItemID, r.Question, r.Description, string(r.Compliance),
		r.Explanation, r.Quote, r.Section, r.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert result %s/%s", r.DOI, r.ItemID)
}

func (s *SQLiteStore) GetResults(ctx context.Context, doi string) ([]model.ComplianceResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doi, item_id, question, description, compliance, explanation, quote, section, created_at
		 FROM compliance_results WHERE doi = ? ORDER BY item_id`,
		doi,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get results %s", doi)
	}
	defer rows.Close()

	var results []model.ComplianceResult
	for rows.Next() {
		var r model.ComplianceResult
		var compliance string
		if err := rows.Scan(&r.DOI, &r.ItemID, &r.Question, &r.Description, &compliance,
			&r.Explanation, &r.Quote, &r.Section, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		r.Compliance = model.Compliance(compliance)
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: get results iterate")
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.AnalysisRun) error {
	rec := runRecord(run)
	errsJSON, err := json.Marshal(rec.Errors)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run errors")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analysis_runs (id, doi, result_count, errors, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DOI, rec.ResultCount, string(errsJSON), rec.Duration.Milliseconds(), rec.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: save run %s", rec.ID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, doi string) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, doi, result_count, errors, duration_ms, created_at
		 FROM analysis_runs WHERE doi = ? ORDER BY created_at DESC`,
		doi,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list runs %s", doi)
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		var rec RunRecord
		var errsJSON string
		var durationMS int64
		if err := rows.Scan(&rec.ID, &rec.DOI, &rec.ResultCount, &errsJSON, &durationMS, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if err := json.Unmarshal([]byte(errsJSON), &rec.Errors); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run errors")
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveSummary(ctx context.Context, sum model.ComplianceSummary) error {
	if sum.DOI == "" {
		return eris.New("sqlite: summary missing doi")
	}
	overviewJSON, err := json.Marshal(sum.Overview)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal overview")
	}
	categoriesJSON, err := json.Marshal(sum.Categories)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal categories")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO summaries (doi, overview, categories, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (doi) DO UPDATE SET
		   overview = excluded.overview, categories = excluded.categories, created_at = excluded.created_at`,
		sum.DOI, string(overviewJSON), string(categoriesJSON), sum.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: save summary %s", sum.DOI)
}

func (s *SQLiteStore) GetSummary(ctx context.Context, doi string) (*model.ComplianceSummary, error) {
	var sum model.ComplianceSummary
	var overviewJSON, categoriesJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT doi, overview, categories, created_at FROM summaries WHERE doi = ?`,
		doi,
	).Scan(&sum.DOI, &overviewJSON, &categoriesJSON, &sum.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get summary %s", doi)
	}
	if err := json.Unmarshal([]byte(overviewJSON), &sum.Overview); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal overview")
	}
	if err := json.Unmarshal([]byte(categoriesJSON), &sum.Categories); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal categories")
	}
	return &sum, nil
}
