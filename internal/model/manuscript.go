package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// ManuscriptMetadata holds bibliographic fields extracted from the head of a
// manuscript. Title and authors are mandatory; the rest may be empty when the
// text does not state them.
type ManuscriptMetadata struct {
	Title      string   `json:"title"`
	Authors    []string `json:"authors"`
	Design     string   `json:"design"`
	DOI        string   `json:"doi"`
	Abstract   string   `json:"abstract"`
	Email      string   `json:"email"`
	Discipline string   `json:"discipline"`
}

// Validate checks the mandatory metadata fields.
func (m ManuscriptMetadata) Validate() error {
	if m.Title == "" {
		return eris.New("model: metadata missing title")
	}
	if len(m.Authors) == 0 {
		return eris.New("model: metadata missing authors")
	}
	return nil
}

// AnalysisRun aggregates the outcome of one manuscript analysis: every
// verdict that was produced plus a descriptive entry for every item attempt
// that failed. A run with failures is still usable as long as Results is
// non-empty.
type AnalysisRun struct {
	ID        string             `json:"id"`
	DOI       string             `json:"doi"`
	Results   []ComplianceResult `json:"results"`
	Errors    []string           `json:"errors,omitempty"`
	Duration  time.Duration      `json:"duration"`
	CreatedAt time.Time          `json:"created_at"`
}
