// Package tokenbudget sizes manuscript text to fit a model context window
// without invoking a tokenizer. Token counts are estimated from a fixed
// characters-per-token ratio, which is conservative for English prose.
package tokenbudget

import "unicode/utf8"

const (
	// ContextWindowTokens is the model context window assumed by the budget.
	ContextWindowTokens = 128_000

	// DefaultInputTokens is the portion of the window reserved for input.
	DefaultInputTokens = 100_000

	// DefaultOutputTokens is the reserve kept for the model's response.
	DefaultOutputTokens = 4_000

	// DefaultCharsPerToken is the estimation ratio.
	DefaultCharsPerToken = 4
)

// Budget estimates token counts and truncates text to fit an input budget.
// The zero value is unusable; construct with Default or New.
type Budget struct {
	MaxInputTokens int
	CharsPerToken  int
}

// Default returns the standard budget: 100K input tokens at 4 chars/token.
func Default() Budget {
	return Budget{
		MaxInputTokens: DefaultInputTokens,
		CharsPerToken:  DefaultCharsPerToken,
	}
}

// New returns a budget with the given input-token limit, falling back to
// defaults for non-positive values.
func New(maxInputTokens, charsPerToken int) Budget {
	if maxInputTokens <= 0 {
		maxInputTokens = DefaultInputTokens
	}
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	return Budget{MaxInputTokens: maxInputTokens, CharsPerToken: charsPerToken}
}

// EstimateTokens returns the estimated token count for text.
func (b Budget) EstimateTokens(text string) int {
	return len(text) / b.CharsPerToken
}

// Truncate fits text into the full input budget. See TruncateTo.
func (b Budget) Truncate(text string) string {
	return b.TruncateTo(text, b.MaxInputTokens)
}

// TruncateTo returns text unchanged when it fits within maxTokens, otherwise
// the trailing portion of the text that fits. Methods, results, and
// discussion sections sit at the end of a manuscript, so the tail is kept
// and the head discarded. Never fails; a non-positive limit yields "".
func (b Budget) TruncateTo(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	maxChars := maxTokens * b.CharsPerToken
	if len(text) <= maxChars {
		return text
	}
	cut := len(text) - maxChars
	// Advance past a split rune so the suffix stays valid UTF-8.
	for cut < len(text) && !utf8.RuneStart(text[cut]) {
		cut++
	}
	return text[cut:]
}

// Head returns the leading portion of text that fits within maxTokens.
// Title, authors, abstract, and identifiers appear at the front of a
// manuscript, so metadata extraction reads the head rather than the tail.
func (b Budget) Head(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	maxChars := maxTokens * b.CharsPerToken
	if len(text) <= maxChars {
		return text
	}
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
