package summarize

import (
	"fmt"
	"strings"

	"github.com/openrepro/repro-audit/internal/model"
)

// DefaultOverviewSystemPrompt frames the manuscript-level narrative call.
// The wire contract is {"overview": "...", "recommendations": ["..."]}.
const DefaultOverviewSystemPrompt = `You are an editor summarizing how well a scientific manuscript complies with a reporting guideline, based on per-item verdicts.

Rules:
- Return valid JSON and nothing else
- "overview" is a short narrative (3-5 sentences) of the overall compliance picture
- "recommendations" lists the 1 to 3 most impactful improvements, most important first
- Base everything on the verdicts provided; do not speculate beyond them`

// DefaultCategoriesSystemPrompt frames the per-category grading call. All
// categories are graded in one request; the wire contract is
// {"categories": {"<name>": {"summary": "...", "severity": "high|medium|low"}}}.
const DefaultCategoriesSystemPrompt = `You are an editor grading a scientific manuscript's compliance with a reporting guideline, one grade per checklist category.

Rules:
- Return valid JSON and nothing else
- Include EVERY category you are asked about, even ones with no issues
- "summary" is at most 50 words describing the category's compliance issues; write "No issues found." when everything complies
- "severity" is high, medium, or low; use low for categories with no issues`

// overviewUserMessage builds the user message for the overview call.
func overviewUserMessage(results []model.ComplianceResult) string {
	return fmt.Sprintf(`Here are the per-item compliance verdicts for a manuscript:

%s

Respond with ONLY valid JSON in this format:
{
  "overview": "<narrative summary>",
  "recommendations": ["<most important improvement>", "..."]
}`, formatResults(results))
}

// categoriesUserMessage builds the user message for the category call.
func categoriesUserMessage(results []model.ComplianceResult, categories []string, byItem map[string]string) string {
	var sb strings.Builder
	for _, cat := range categories {
		fmt.Fprintf(&sb, "## %s\n", cat)
		n := 0
		for _, r := range results {
			if byItem[r.ItemID] != cat {
				continue
			}
			writeResult(&sb, r)
			n++
		}
		if n == 0 {
			sb.WriteString("(no verdicts recorded for this category)\n")
		}
		sb.WriteString("\n")
	}

	return fmt.Sprintf(`Here are the per-item compliance verdicts for a manuscript, grouped by checklist category:

%s
Grade each of these categories: %s

Respond with ONLY valid JSON in this format:
{
  "categories": {
    "<category name>": {"summary": "<at most 50 words>", "severity": "<high|medium|low>"}
  }
}`, sb.String(), strings.Join(categories, ", "))
}

// formatResults renders verdicts as a compact list for prompts.
func formatResults(results []model.ComplianceResult) string {
	var sb strings.Builder
	for _, r := range results {
		writeResult(&sb, r)
	}
	return sb.String()
}

func writeResult(sb *strings.Builder, r model.ComplianceResult) {
	fmt.Fprintf(sb, "- [%s] %s (%s): %s\n", r.Compliance, r.Question, r.ItemID, r.Explanation)
}
