package analyzer

import (
	"strings"

	"github.com/openrepro/repro-audit/internal/llmjson"
	"github.com/openrepro/repro-audit/internal/model"
	"github.com/openrepro/repro-audit/pkg/anthropic"
)

// verdict is the wire shape of a per-item model response.
type verdict struct {
	Compliance  string `json:"compliance"`
	Explanation string `json:"explanation"`
	Quote       string `json:"quote"`
	Section     string `json:"section"`
}

// parseVerdict decodes and validates a model response into a result with the
// compliance value normalized. Identity fields (DOI, item) are stamped by the
// caller.
func parseVerdict(resp *anthropic.MessageResponse) (model.ComplianceResult, error) {
	var zero model.ComplianceResult

	var v verdict
	if err := llmjson.Decode(llmjson.Text(resp), &v); err != nil {
		return zero, err
	}

	compliance, err := model.NormalizeCompliance(v.Compliance)
	if err != nil {
		return zero, &llmjson.SchemaError{Field: "compliance", Msg: err.Error()}
	}
	if strings.TrimSpace(v.Explanation) == "" {
		return zero, &llmjson.SchemaError{Field: "explanation", Msg: "must be non-empty"}
	}

	return model.ComplianceResult{
		Compliance:  compliance,
		Explanation: strings.TrimSpace(v.Explanation),
		Quote:       strings.TrimSpace(v.Quote),
		Section:     strings.TrimSpace(v.Section),
	}, nil
}
