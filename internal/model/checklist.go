package model

import "github.com/rotisserie/eris"

// ChecklistItem is one question from a reporting guideline. Category groups
// items for summarization (e.g. "Design", "Statistics"); Original carries the
// guideline's full wording when the question is a shortened form.
type ChecklistItem struct {
	ItemID   string `json:"item_id" yaml:"item_id"`
	Category string `json:"category" yaml:"category"`
	Question string `json:"question" yaml:"question"`
	Original string `json:"original,omitempty" yaml:"original,omitempty"`
	Section  string `json:"section,omitempty" yaml:"section,omitempty"`
}

// Validate checks the mandatory item fields.
func (c ChecklistItem) Validate() error {
	if c.ItemID == "" {
		return eris.New("model: checklist item missing item_id")
	}
	if c.Question == "" {
		return eris.Errorf("model: checklist item %s missing question", c.ItemID)
	}
	return nil
}

// Description returns the text shown to the model alongside the question:
// the guideline's original wording when present, otherwise the question.
func (c ChecklistItem) Description() string {
	if c.Original != "" {
		return c.Original
	}
	return c.Question
}

// Categories returns the distinct categories of items, in first-seen order.
func Categories(items []ChecklistItem) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, it := range items {
		cat := it.Category
		if cat == "" || seen[cat] {
			continue
		}
		seen[cat] = true
		out = append(out, cat)
	}
	return out
}

// CategoryByItem maps item IDs to their categories.
func CategoryByItem(items []ChecklistItem) map[string]string {
	out := make(map[string]string, len(items))
	for _, it := range items {
		out[it.ItemID] = it.Category
	}
	return out
}
