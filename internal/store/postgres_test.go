package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrepro/repro-audit/internal/model"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewPostgresFromPool(mock), mock
}

func TestPostgresSaveManuscript(t *testing.T) {
	t.Parallel()
	s, mock := newMockPostgresStore(t)

	meta := model.ManuscriptMetadata{
		DOI: "10.1/abc", Title: "Effect of X", Authors: []string{"Doe J"},
		Design: "RCT", Abstract: "We studied X.",
	}
	mock.ExpectExec(`INSERT INTO manuscripts`).
		WithArgs(meta.DOI, meta.Title, pgxmock.AnyArg(), meta.Design, meta.Abstract,
			"", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveManuscript(context.Background(), meta))
	assert.Error(t, s.SaveManuscript(context.Background(), model.ManuscriptMetadata{Title: "no doi"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetManuscript(t *testing.T) {
	t.Parallel()

	t.Run("found", func(t *testing.T) {
		t.Parallel()
		s, mock := newMockPostgresStore(t)

		mock.ExpectQuery(`SELECT doi, title, authors, design, abstract, email, discipline FROM manuscripts`).
			WithArgs("10.1/abc").
			WillReturnRows(pgxmock.NewRows(
				[]string{"doi", "title", "authors", "design", "abstract", "email", "discipline"},
			).AddRow("10.1/abc", "Effect of X", []byte(`["Doe J","Roe R"]`), "RCT", "We studied X.", "", ""))

		meta, err := s.GetManuscript(context.Background(), "10.1/abc")
		require.NoError(t, err)
		assert.Equal(t, "Effect of X", meta.Title)
		assert.Equal(t, []string{"Doe J", "Roe R"}, meta.Authors)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		s, mock := newMockPostgresStore(t)

		mock.ExpectQuery(`SELECT .* FROM manuscripts`).
			WithArgs("10.1/missing").
			WillReturnError(pgx.ErrNoRows)

		_, err := s.GetManuscript(context.Background(), "10.1/missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresSaveChecklist(t *testing.T) {
	t.Parallel()
	s, mock := newMockPostgresStore(t)

	items := []model.ChecklistItem{
		{ItemID: "1a", Category: "Design", Question: "q1"},
		{ItemID: "2", Category: "Statistics", Question: "q2"},
	}
	mock.ExpectExec(`DELETE FROM checklist_items`).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO checklist_items`).
		WithArgs("1a", "Design", "q1", "", "", 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO checklist_items`).
		WithArgs("2", "Statistics", "q2", "", "", 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveChecklist(context.Background(), items))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertResult(t *testing.T) {
	t.Parallel()
	s, mock := newMockPostgresStore(t)

	r := testResult("10.1/abc", "1a", model.CompliancePartial)
	mock.ExpectExec(`INSERT INTO compliance_results`).
		WithArgs(r.DOI, r.ItemID, r.Question, r.Description, "Partial",
			r.Explanation, r.Quote, r.Section, r.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.UpsertResult(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetResults(t *testing.T) {
	t.Parallel()
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM compliance_results WHERE doi`).
		WithArgs("10.1/abc").
		WillReturnRows(pgxmock.NewRows(
			[]string{"doi", "item_id", "question", "description", "compliance", "explanation", "quote", "section", "created_at"},
		).
			AddRow("10.1/abc", "1a", "q1", "d1", "Yes", "stated", "quoted", "Methods", now).
			AddRow("10.1/abc", "2", "q2", "d2", "No", "absent", "", "", now))

	results, err := s.GetResults(context.Background(), "10.1/abc")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, model.ComplianceYes, results[0].Compliance)
	assert.Equal(t, "2", results[1].ItemID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRuns(t *testing.T) {
	t.Parallel()
	s, mock := newMockPostgresStore(t)

	run := &model.AnalysisRun{
		ID:        "run-1",
		DOI:       "10.1/abc",
		Results:   []model.ComplianceResult{testResult("10.1/abc", "1a", model.ComplianceYes)},
		Duration:  90 * time.Second,
		CreatedAt: time.Now().UTC(),
	}
	mock.ExpectExec(`INSERT INTO analysis_runs`).
		WithArgs(run.ID, run.DOI, 1, []byte("[]"), int64(90_000), run.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveRun(context.Background(), run))

	mock.ExpectQuery(`FROM analysis_runs WHERE doi`).
		WithArgs("10.1/abc").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "doi", "result_count", "errors", "duration_ms", "created_at"},
		).AddRow("run-1", "10.1/abc", 1, []byte(`["item 2: schema"]`), int64(90_000), run.CreatedAt))

	recs, err := s.ListRuns(context.Background(), "10.1/abc")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"item 2: schema"}, recs[0].Errors)
	assert.Equal(t, 90*time.Second, recs[0].Duration)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSummaries(t *testing.T) {
	t.Parallel()
	s, mock := newMockPostgresStore(t)

	sum := model.ComplianceSummary{
		DOI: "10.1/abc",
		Overview: model.OverviewSummary{
			Overview:        "Mostly compliant.",
			Recommendations: []string{"Describe randomization."},
		},
		Categories: []model.CategorySummary{
			{Category: "Design", Summary: "Randomization missing.", Severity: model.SeverityHigh},
		},
		CreatedAt: time.Now().UTC(),
	}
	mock.ExpectExec(`INSERT INTO summaries`).
		WithArgs(sum.DOI, pgxmock.AnyArg(), pgxmock.AnyArg(), sum.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveSummary(context.Background(), sum))

	overviewJSON, err := json.Marshal(sum.Overview)
	require.NoError(t, err)
	categoriesJSON, err := json.Marshal(sum.Categories)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT doi, overview, categories, created_at FROM summaries`).
		WithArgs("10.1/abc").
		WillReturnRows(pgxmock.NewRows(
			[]string{"doi", "overview", "categories", "created_at"},
		).AddRow("10.1/abc", overviewJSON, categoriesJSON, sum.CreatedAt))

	got, err := s.GetSummary(context.Background(), "10.1/abc")
	require.NoError(t, err)
	assert.Equal(t, sum.Overview, got.Overview)
	assert.Equal(t, sum.Categories, got.Categories)

	mock.ExpectQuery(`SELECT .* FROM summaries`).
		WithArgs("10.1/missing").
		WillReturnError(pgx.ErrNoRows)
	_, err = s.GetSummary(context.Background(), "10.1/missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
