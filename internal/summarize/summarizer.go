// Package summarize condenses per-item compliance verdicts into a
// manuscript-level overview and per-category severity grades. Summaries are
// read-only over the verdicts and safe to regenerate at any time.
package summarize

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/openrepro/repro-audit/internal/llmjson"
	"github.com/openrepro/repro-audit/internal/model"
	"github.com/openrepro/repro-audit/pkg/anthropic"
)

// Config tunes the summarizer. Zero values fall back to defaults.
type Config struct {
	Model                  string
	OverviewSystemPrompt   string
	CategoriesSystemPrompt string
	OverviewTemperature    float64
	MaxOutputTokens        int64
}

// Summarizer produces compliance summaries from verdicts.
type Summarizer struct {
	client anthropic.Client
	cfg    Config
}

// New constructs a Summarizer, applying defaults for unset config fields.
func New(client anthropic.Client, cfg Config) *Summarizer {
	if cfg.OverviewSystemPrompt == "" {
		cfg.OverviewSystemPrompt = DefaultOverviewSystemPrompt
	}
	if cfg.CategoriesSystemPrompt == "" {
		cfg.CategoriesSystemPrompt = DefaultCategoriesSystemPrompt
	}
	if cfg.OverviewTemperature == 0 {
		cfg.OverviewTemperature = 0.3
	}
	if cfg.MaxOutputTokens == 0 {
		cfg.MaxOutputTokens = 1500
	}
	return &Summarizer{client: client, cfg: cfg}
}

// Overview produces the manuscript-level narrative with 1-3 recommendations.
func (s *Summarizer) Overview(ctx context.Context, results []model.ComplianceResult) (model.OverviewSummary, error) {
	var zero model.OverviewSummary
	if len(results) == 0 {
		return zero, eris.New("summarize: no verdicts to summarize")
	}

	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       s.cfg.Model,
		MaxTokens:   s.cfg.MaxOutputTokens,
		Temperature: anthropic.Float(s.cfg.OverviewTemperature),
		System:      []anthropic.SystemBlock{{Text: s.cfg.OverviewSystemPrompt}},
		Messages:    []anthropic.Message{{Role: "user", Content: overviewUserMessage(results)}},
	})
	if err != nil {
		return zero, eris.Wrap(err, "summarize: overview call")
	}
	resp.Usage.LogCost(s.cfg.Model, "summarize_overview")

	var overview model.OverviewSummary
	if err := llmjson.Decode(llmjson.Text(resp), &overview); err != nil {
		return zero, err
	}
	if err := overview.Validate(); err != nil {
		return zero, err
	}
	return overview, nil
}

// Categories grades every checklist category in a single shared call. The
// response must contain a grade for each category derived from items; a
// missing category fails validation rather than being silently defaulted.
func (s *Summarizer) Categories(ctx context.Context, results []model.ComplianceResult, items []model.ChecklistItem) ([]model.CategorySummary, error) {
	if len(results) == 0 {
		return nil, eris.New("summarize: no verdicts to summarize")
	}
	categories := model.Categories(items)
	if len(categories) == 0 {
		return nil, eris.New("summarize: checklist has no categories")
	}

	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       s.cfg.Model,
		MaxTokens:   s.cfg.MaxOutputTokens,
		Temperature: anthropic.Float(0),
		System:      []anthropic.SystemBlock{{Text: s.cfg.CategoriesSystemPrompt}},
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: categoriesUserMessage(results, categories, model.CategoryByItem(items)),
		}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "summarize: categories call")
	}
	resp.Usage.LogCost(s.cfg.Model, "summarize_categories")

	var raw struct {
		Categories map[string]struct {
			Summary  string `json:"summary"`
			Severity string `json:"severity"`
		} `json:"categories"`
	}
	if err := llmjson.Decode(llmjson.Text(resp), &raw); err != nil {
		return nil, err
	}

	out := make([]model.CategorySummary, 0, len(categories))
	for _, cat := range categories {
		entry, ok := raw.Categories[cat]
		if !ok {
			return nil, &llmjson.SchemaError{Field: "categories." + cat, Msg: "category missing from response"}
		}
		if entry.Summary == "" {
			return nil, &llmjson.SchemaError{Field: "categories." + cat + ".summary", Msg: "must be non-empty"}
		}
		severity, err := model.NormalizeSeverity(entry.Severity)
		if err != nil {
			return nil, &llmjson.SchemaError{Field: "categories." + cat + ".severity", Msg: err.Error()}
		}
		out = append(out, model.CategorySummary{Category: cat, Summary: entry.Summary, Severity: severity})
	}
	return out, nil
}

// Summarize runs both summary calls and assembles the stored form.
func (s *Summarizer) Summarize(ctx context.Context, doi string, results []model.ComplianceResult, items []model.ChecklistItem) (model.ComplianceSummary, error) {
	var zero model.ComplianceSummary

	overview, err := s.Overview(ctx, results)
	if err != nil {
		return zero, err
	}
	categories, err := s.Categories(ctx, results, items)
	if err != nil {
		return zero, err
	}

	zap.L().Info("summaries generated",
		zap.String("doi", doi),
		zap.Int("categories", len(categories)),
	)
	return model.ComplianceSummary{
		DOI:        doi,
		Overview:   overview,
		Categories: categories,
		CreatedAt:  time.Now().UTC(),
	}, nil
}
