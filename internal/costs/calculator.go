// Package costs provides provider cost estimation for interview sessions.
package costs

import (
	"os"
	"strconv"
)

// Pricing constants (in cents per unit for precision).
// These are based on current market rates and can be overridden via environment variables.
var (
	// DeepgramCentsPerMinute is the cost per minute for Deepgram Nova-3 streaming STT.
	// Default: $0.0077/min = 0.77 cents/min
	DeepgramCentsPerMinute = getEnvFloat("COST_DEEPGRAM_CENTS_PER_MIN", 0.77)

	// LLMCentsPerThousandInputTokens is the cost per 1K input tokens for the
	// default completion model routed through OpenRouter.
	// Default: $0.15/1M = 0.015 cents/1K tokens
	LLMCentsPerThousandInputTokens = getEnvFloat("COST_LLM_INPUT_CENTS_PER_1K", 0.015)

	// LLMCentsPerThousandOutputTokens is the cost per 1K output tokens.
	// Default: $0.60/1M = 0.06 cents/1K tokens
	LLMCentsPerThousandOutputTokens = getEnvFloat("COST_LLM_OUTPUT_CENTS_PER_1K", 0.06)
)

// SessionMetrics contains the raw usage metrics from one interview session.
type SessionMetrics struct {
	AudioSeconds    int // Audio streamed through STT
	LLMInputTokens  int // Tokens sent to the LLM
	LLMOutputTokens int // Tokens received from the LLM
}

// SessionCosts contains the estimated costs for a session in cents.
type SessionCosts struct {
	STTCostCents   int
	LLMCostCents   int
	TotalCostCents int
}

// EstimateSessionCosts computes the provider spend for a session from usage metrics.
func EstimateSessionCosts(m SessionMetrics) SessionCosts {
	sttMinutes := float64(m.AudioSeconds) / 60.0
	sttCents := sttMinutes * DeepgramCentsPerMinute

	llmInputCents := (float64(m.LLMInputTokens) / 1000.0) * LLMCentsPerThousandInputTokens
	llmOutputCents := (float64(m.LLMOutputTokens) / 1000.0) * LLMCentsPerThousandOutputTokens
	llmCents := llmInputCents + llmOutputCents

	// Round to nearest cent (we store as integers)
	costs := SessionCosts{
		STTCostCents: roundToInt(sttCents),
		LLMCostCents: roundToInt(llmCents),
	}
	costs.TotalCostCents = costs.STTCostCents + costs.LLMCostCents

	return costs
}

// EstimateTokens approximates token counts from text length. Good enough for
// cost tracking; not a tokenizer.
func EstimateTokens(chars int) int {
	return chars / 4
}

// roundToInt rounds a float to the nearest integer.
func roundToInt(f float64) int {
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}

// getEnvFloat returns an environment variable as float64, or the default if not set.
func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
