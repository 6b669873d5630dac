package costs

import (
	"testing"
)

func TestEstimateSessionCosts(t *testing.T) {
	tests := []struct {
		name    string
		metrics SessionMetrics
		want    SessionCosts
	}{
		{
			name: "typical 30 minute session",
			metrics: SessionMetrics{
				AudioSeconds:    1800, // 30 minutes
				LLMInputTokens:  20000,
				LLMOutputTokens: 5000,
			},
			// STT: 30 * 0.77 = 23.1 -> 23 cents
			// LLM: (20000/1000)*0.015 + (5000/1000)*0.06 = 0.3 + 0.3 = 0.6 -> 1 cent
			want: SessionCosts{
				STTCostCents:   23,
				LLMCostCents:   1,
				TotalCostCents: 24,
			},
		},
		{
			name: "short session",
			metrics: SessionMetrics{
				AudioSeconds:    60,
				LLMInputTokens:  500,
				LLMOutputTokens: 200,
			},
			// STT: 1 * 0.77 = 0.77 -> 1 cent
			// LLM: negligible -> 0 cents
			want: SessionCosts{
				STTCostCents:   1,
				LLMCostCents:   0,
				TotalCostCents: 1,
			},
		},
		{
			name:    "zero usage",
			metrics: SessionMetrics{},
			want:    SessionCosts{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateSessionCosts(tt.metrics)
			if got != tt.want {
				t.Errorf("EstimateSessionCosts(%+v) = %+v, want %+v", tt.metrics, got, tt.want)
			}
		})
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		chars int
		want  int
	}{
		{0, 0},
		{3, 0},
		{4, 1},
		{400, 100},
	}

	for _, tt := range tests {
		if got := EstimateTokens(tt.chars); got != tt.want {
			t.Errorf("EstimateTokens(%d) = %d, want %d", tt.chars, got, tt.want)
		}
	}
}

func TestRoundToInt(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0.4, 0},
		{0.5, 1},
		{1.49, 1},
		{-0.5, -1},
	}

	for _, tt := range tests {
		if got := roundToInt(tt.in); got != tt.want {
			t.Errorf("roundToInt(%f) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
