package llm

import "unicode/utf8"

// EstimateTokens approximates a token count as ceil(charCount / 4).
// Used only when the vendor does not report usage metadata.
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// estimateInputTokens applies the heuristic to the concatenation of the
// system instruction and all input turn contents.
func estimateInputTokens(system string, turns []Turn) int {
	n := utf8.RuneCountInString(system)
	for _, t := range turns {
		n += utf8.RuneCountInString(t.Content)
	}
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
