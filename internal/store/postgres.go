package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/openrepro/repro-audit/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool, used by tests.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS manuscripts (
	doi        TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	authors    JSONB NOT NULL,
	design     TEXT NOT NULL DEFAULT '',
	abstract   TEXT NOT NULL DEFAULT '',
	email      TEXT NOT NULL DEFAULT '',
	discipline TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
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
	created_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (doi, item_id)
);

CREATE TABLE IF NOT EXISTS analysis_runs (
	id           TEXT PRIMARY KEY,
	doi          TEXT NOT NULL,
	result_count INTEGER NOT NULL,
	errors       JSONB NOT NULL DEFAULT '[]',
	duration_ms  BIGINT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS summaries (
	doi        TEXT PRIMARY KEY,
	overview   JSONB NOT NULL,
	categories JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_doi ON compliance_results(doi);
CREATE INDEX IF NOT EXISTS idx_runs_doi ON analysis_runs(doi);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveManuscript(ctx context.Context, meta model.ManuscriptMetadata) error {
	if meta.DOI == "" {
		return eris.New("postgres: manuscript missing doi")
	}
	authorsJSON, err := json.Marshal(meta.Authors)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal authors")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO manuscripts (doi, title, authors, design, abstract, email, discipline, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (doi) DO UPDATE SET
		   title = EXCLUDED.title, authors = EXCLUDED.authors, design = EXCLUDED.design,
		   abstract = EXCLUDED.abstract, email = EXCLUDED.email, discipline = EXCLUDED.discipline`,
		meta.DOI, meta.Title, authorsJSON, meta.Design, meta.Abstract,
		meta.Email, meta.Discipline, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save manuscript %s", meta.DOI)
}

func (s *PostgresStore) GetManuscript(ctx context.Context, doi string) (*model.ManuscriptMetadata, error) {
	var meta model.ManuscriptMetadata
	var authorsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doi, title, authors, design, abstract, email, discipline FROM manuscripts WHERE doi = $1`,
		doi,
	).Scan(&meta.DOI, &meta.Title, &authorsJSON, &meta.Design, &meta.Abstract, &meta.Email, &meta.Discipline)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get manuscript %s", doi)
	}
	if err := json.Unmarshal(authorsJSON, &meta.Authors); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal authors")
	}
	return &meta, nil
}

func (s *PostgresStore) SaveChecklist(ctx context.Context, items []model.ChecklistItem) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM checklist_items`); err != nil {
		return eris.Wrap(err, "postgres: clear checklist")
	}
	for i, it := range items {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO checklist_items (item_id, category, question, original, section, position)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			it.ItemID, it.Category, it.Question, it.Original, it.Section, i,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert checklist item %s", it.ItemID)
		}
	}
	return nil
}

func (s *PostgresStore) ListChecklist(ctx context.Context) ([]model.ChecklistItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT item_id, category, question, original, section FROM checklist_items ORDER BY position`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list checklist")
	}
	defer rows.Close()

	var items []model.ChecklistItem
	for rows.Next() {
		var it model.ChecklistItem
		if err := rows.Scan(&it.ItemID, &it.Category, &it.Question, &it.Original, &it.Section); err != nil {
			return nil, eris.Wrap(err, "postgres: scan checklist item")
		}
		items = append(items, it)
	}
	return items, eris.Wrap(rows.Err(), "postgres: list checklist iterate")
}

func (s *PostgresStore) UpsertResult(ctx context.Context, r model.ComplianceResult) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO compliance_results (doi, item_id, question, description, compliance, explanation, quote, section, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (doi, item_id) DO UPDATE SET
		   question = EXCLUDED.question, description = EXCLUDED.description,
		   compliance = EXCLUDED.compliance, explanation = EXCLUDED.explanation,
		   quote = EXCLUDED.quote, section = EXCLUDED.section, created_at = EXCLUDED.created_at`,
		r.DOI, r.ItemID, r.Question, r.Description, string(r.Compliance),
		r.Explanation, r.Quote, r.Section, r.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert result %s/%s", r.DOI, r.ItemID)
}

func (s *PostgresStore) GetResults(ctx context.Context, doi string) ([]model.ComplianceResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT doi, item_id, question, description, compliance, explanation, quote, section, created_at
		 FROM compliance_results WHERE doi = $1 ORDER BY item_id`,
		doi,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get results %s", doi)
	}
	defer rows.Close()

	var results []model.ComplianceResult
	for rows.Next() {
		var r model.ComplianceResult
		var compliance string
		if err := rows.Scan(&r.DOI, &r.ItemID, &r.Question, &r.Description, &compliance,
			&r.Explanation, &r.Quote, &r.Section, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		r.Compliance = model.Compliance(compliance)
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: get results iterate")
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *model.AnalysisRun) error {
	rec := runRecord(run)
	errsJSON, err := json.Marshal(rec.Errors)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run errors")
	}
	if rec.Errors == nil {
		errsJSON = []byte("[]")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analysis_runs (id, doi, result_count, errors, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.DOI, rec.ResultCount, errsJSON, rec.Duration.Milliseconds(), rec.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: save run %s", rec.ID)
}

func (s *PostgresStore) ListRuns(ctx context.Context, doi string) ([]RunRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, doi, result_count, errors, duration_ms, created_at
		 FROM analysis_runs WHERE doi = $1 ORDER BY created_at DESC`,
		doi,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list runs %s", doi)
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		var rec RunRecord
		var errsJSON []byte
		var durationMS int64
		if err := rows.Scan(&rec.ID, &rec.DOI, &rec.ResultCount, &errsJSON, &durationMS, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := json.Unmarshal(errsJSON, &rec.Errors); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run errors")
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) SaveSummary(ctx context.Context, sum model.ComplianceSummary) error {
	if sum.DOI == "" {
		return eris.New("postgres: summary missing doi")
	}
	overviewJSON, err := json.Marshal(sum.Overview)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal overview")
	}
	categoriesJSON, err := json.Marshal(sum.Categories)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal categories")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO summaries (doi, overview, categories, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (doi) DO UPDATE SET
		   overview = EXCLUDED.overview, categories = EXCLUDED.categories, created_at = EXCLUDED.created_at`,
		sum.DOI, overviewJSON, categoriesJSON, sum.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: save summary %s", sum.DOI)
}

func (s *PostgresStore) GetSummary(ctx context.Context, doi string) (*model.ComplianceSummary, error) {
	var sum model.ComplianceSummary
	var overviewJSON, categoriesJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doi, overview, categories, created_at FROM summaries WHERE doi = $1`,
		doi,
	).Scan(&sum.DOI, &overviewJSON, &categoriesJSON, &sum.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get summary %s", doi)
	}
	if err := json.Unmarshal(overviewJSON, &sum.Overview); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal overview")
	}
	if err := json.Unmarshal(categoriesJSON, &sum.Categories); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal categories")
	}
	return &sum, nil
}
