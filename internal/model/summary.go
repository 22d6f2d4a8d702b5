package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Severity grades how concerning a category's compliance picture is.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// NormalizeSeverity maps a raw severity string onto the canonical set.
func NormalizeSeverity(raw string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high":
		return SeverityHigh, nil
	case "medium":
		return SeverityMedium, nil
	case "low":
		return SeverityLow, nil
	default:
		return "", eris.Errorf("model: invalid severity value %q", raw)
	}
}

// OverviewSummary is the manuscript-level compliance narrative.
type OverviewSummary struct {
	Overview        string   `json:"overview"`
	Recommendations []string `json:"recommendations"`
}

// Validate enforces the overview contract: a narrative plus one to three
// recommendations.
func (o OverviewSummary) Validate() error {
	if o.Overview == "" {
		return eris.New("model: overview summary missing narrative")
	}
	if len(o.Recommendations) == 0 {
		return eris.New("model: overview summary has no recommendations")
	}
	if len(o.Recommendations) > 3 {
		return eris.Errorf("model: overview summary has %d recommendations, want at most 3", len(o.Recommendations))
	}
	return nil
}

// CategorySummary grades one checklist category.
type CategorySummary struct {
	Category string   `json:"category"`
	Summary  string   `json:"summary"`
	Severity Severity `json:"severity"`
}

// ComplianceSummary is the stored summary for a manuscript. Regeneration
// replaces the prior row for the DOI.
type ComplianceSummary struct {
	DOI        string            `json:"doi"`
	Overview   OverviewSummary   `json:"overview"`
	Categories []CategorySummary `json:"categories"`
	CreatedAt  time.Time         `json:"created_at"`
}
