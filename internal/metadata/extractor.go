// Package metadata extracts bibliographic metadata (title, authors, DOI,
// abstract) from the head of a manuscript via a single low-temperature LLM
// call. Extraction is not retried; the caller decides whether a failure is
// worth another run.
package metadata

import (
	"context"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/openrepro/repro-audit/internal/llmjson"
	"github.com/openrepro/repro-audit/internal/model"
	"github.com/openrepro/repro-audit/internal/tokenbudget"
	"github.com/openrepro/repro-audit/pkg/anthropic"
)

// Step names the pipeline stage where an extraction failed.
type Step string

const (
	StepTemplate  Step = "prompt_templating"
	StepTransport Step = "llm_call"
	StepParse     Step = "json_parse"
	StepSchema    Step = "schema_validation"
)

// ExtractionError reports which stage of the extraction failed. Each stage
// produces a distinct Step so callers can tell a dead API from a model that
// answered in prose.
type ExtractionError struct {
	Step Step
	Err  error
}

func (e *ExtractionError) Error() string {
	return "metadata: " + string(e.Step) + ": " + e.Err.Error()
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Config tunes the extractor. Zero values fall back to defaults.
type Config struct {
	Model           string
	SystemPrompt    string
	Template        string // must contain the {text} placeholder
	Temperature     float64
	MaxOutputTokens int64
}

// Extractor runs metadata extraction against an LLM client.
type Extractor struct {
	client anthropic.Client
	budget tokenbudget.Budget
	cfg    Config
}

// New constructs an Extractor, applying defaults for unset config fields.
func New(client anthropic.Client, budget tokenbudget.Budget, cfg Config) *Extractor {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Template == "" {
		cfg.Template = DefaultTemplate
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.1
	}
	if cfg.MaxOutputTokens == 0 {
		cfg.MaxOutputTokens = 2000
	}
	return &Extractor{client: client, budget: budget, cfg: cfg}
}

// Extract pulls metadata from the head of the manuscript text. Bibliographic
// fields live on the first pages, so only the first quarter of the input
// budget is sent.
func (e *Extractor) Extract(ctx context.Context, text string) (model.ManuscriptMetadata, error) {
	var zero model.ManuscriptMetadata

	prompt, err := e.renderPrompt(text)
	if err != nil {
		return zero, &ExtractionError{Step: StepTemplate, Err: err}
	}

	temp := e.cfg.Temperature
	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       e.cfg.Model,
		MaxTokens:   e.cfg.MaxOutputTokens,
		Temperature: &temp,
		System:      []anthropic.SystemBlock{{Text: e.cfg.SystemPrompt}},
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return zero, &ExtractionError{Step: StepTransport, Err: err}
	}
	resp.Usage.LogCost(e.cfg.Model, "metadata")

	var raw map[string]any
	if err := llmjson.Decode(llmjson.Text(resp), &raw); err != nil {
		return zero, &ExtractionError{Step: StepParse, Err: err}
	}

	meta, err := validateFields(raw)
	if err != nil {
		return zero, &ExtractionError{Step: StepSchema, Err: err}
	}

	zap.L().Info("metadata extracted",
		zap.String("title", meta.Title),
		zap.Int("authors", len(meta.Authors)),
		zap.String("doi", meta.DOI),
	)
	return meta, nil
}

// renderPrompt substitutes the manuscript head into the user template.
func (e *Extractor) renderPrompt(text string) (string, error) {
	if text == "" {
		return "", eris.New("metadata: empty manuscript text")
	}
	if !utf8.ValidString(text) {
		return "", eris.New("metadata: manuscript text is not valid UTF-8")
	}
	if !containsPlaceholder(e.cfg.Template) {
		return "", eris.Errorf("metadata: template missing %s placeholder", textPlaceholder)
	}

	head := e.budget.Head(norm.NFC.String(text), e.budget.MaxInputTokens/4)
	return replacePlaceholder(e.cfg.Template, head), nil
}
