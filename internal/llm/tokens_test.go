package llm

import "testing"

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "short word rounds up", text: "hi", want: 1},
		{name: "exact multiple", text: "abcdefgh", want: 2},
		{name: "one over multiple", text: "abcdefghi", want: 3},
		{name: "multibyte runes counted once", text: "日本語です", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokens(tt.text); got != tt.want {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestEstimateInputTokens(t *testing.T) {
	turns := []Turn{
		{Role: "user", Content: "ab"},
		{Role: "assistant", Content: "cd"},
	}
	// 2+2+2 runes over a 4-chars-per-token heuristic, rounded up once.
	if got := estimateInputTokens("xy", turns); got != 2 {
		t.Errorf("estimateInputTokens() = %d, want 2", got)
	}
}
