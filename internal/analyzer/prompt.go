package analyzer

import "strings"

// DefaultSystemPrompt frames the model as a reporting-guideline reviewer.
// It is shared by every item in a batch and sent with a cache breakpoint.
const DefaultSystemPrompt = `You are an expert reviewer assessing whether a scientific manuscript complies with a reporting guideline.

Rules:
- Judge ONLY from the manuscript text provided
- Return valid JSON for every response
- "compliance" must be exactly one of: Yes, No, Partial, N/A
- Use N/A when the item does not apply to this study design
- "quote" must be copied verbatim from the manuscript when compliance is Yes or Partial; otherwise leave it empty
- "section" names where in the manuscript the evidence appears (e.g. Methods), empty if unknown
- Keep the explanation to two or three sentences`

// DefaultTemplate is the per-item user message. Placeholders: {question},
// {description}, {text}.
const DefaultTemplate = `Checklist item: {question}

Guideline wording: {description}

Manuscript text:
{text}

Respond with ONLY valid JSON in this format:
{
  "compliance": "<Yes|No|Partial|N/A>",
  "explanation": "<why you reached this verdict>",
  "quote": "<verbatim supporting quote, or empty>",
  "section": "<manuscript section containing the evidence, or empty>"
}`

// renderPrompt substitutes the item and manuscript text into the template.
func renderPrompt(template, question, description, text string) string {
	return strings.NewReplacer(
		"{question}", question,
		"{description}", description,
		"{text}", text,
	).Replace(template)
}
