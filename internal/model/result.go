package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Compliance is the verdict for one checklist item.
type Compliance string

// Canonical verdict values. Model responses arrive in arbitrary casing and
// are normalized at the validation boundary; everything downstream sees only
// these four forms.
const (
	ComplianceYes     Compliance = "Yes"
	ComplianceNo      Compliance = "No"
	CompliancePartial Compliance = "Partial"
	ComplianceNA      Compliance = "N/A"
)

// NormalizeCompliance maps a raw verdict string onto the canonical set,
// accepting any casing and the bare "na" spelling.
func NormalizeCompliance(raw string) (Compliance, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes":
		return ComplianceYes, nil
	case "no":
		return ComplianceNo, nil
	case "partial":
		return CompliancePartial, nil
	case "n/a", "na":
		return ComplianceNA, nil
	default:
		return "", eris.Errorf("model: invalid compliance value %q", raw)
	}
}

// ComplianceResult is the verdict for one checklist item against one
// manuscript, with the supporting evidence the model cited. (DOI, ItemID)
// identifies a result; re-analysis replaces the prior row for the pair.
type ComplianceResult struct {
	DOI         string     `json:"doi"`
	ItemID      string     `json:"item_id"`
	Question    string     `json:"question"`
	Description string     `json:"description,omitempty"`
	Compliance  Compliance `json:"compliance"`
	Explanation string     `json:"explanation"`
	Quote       string     `json:"quote,omitempty"`
	Section     string     `json:"section,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
