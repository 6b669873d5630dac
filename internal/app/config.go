package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr      string
	PublicBaseURL string
	DatabaseURL   string
	LogLevel      string
	SentryDSN     string

	// Speech and generation providers
	DeepgramAPIKey   string
	OpenRouterAPIKey string
	LLMModel         string
	STTLanguage      string

	// Utterance segmentation
	SilenceThresholdMs int
	MinUtteranceWords  int

	// Prepaid minutes
	CountdownInterval time.Duration
	StartingMinutes   int

	// JWT Authentication
	JWTSecret string
	JWTExpiry time.Duration
}

func LoadConfigFromEnv() Config {
	jwtExpiry, err := time.ParseDuration(getenv("JWT_EXPIRY", "24h"))
	if err != nil {
		jwtExpiry = 24 * time.Hour
	}

	countdownInterval, err := time.ParseDuration(getenv("COUNTDOWN_INTERVAL", "1m"))
	if err != nil {
		countdownInterval = time.Minute
	}

	return Config{
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		PublicBaseURL: getenv("PUBLIC_BASE_URL", "http://localhost:8080"),
		DatabaseURL:   getenv("DATABASE_URL", ""),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		SentryDSN:     getenv("SENTRY_DSN", ""),

		// Speech and generation providers
		DeepgramAPIKey:   getenv("DEEPGRAM_API_KEY", ""),
		OpenRouterAPIKey: getenv("OPENROUTER_API_KEY", ""),
		LLMModel:         getenv("LLM_MODEL", "openai/gpt-4o-mini"),
		STTLanguage:      getenv("STT_LANGUAGE", "en"),

		// Utterance segmentation
		SilenceThresholdMs: getenvIntClamped("SILENCE_THRESHOLD_MS", 2500, 500, 10000),
		MinUtteranceWords:  getenvIntClamped("MIN_UTTERANCE_WORDS", 2, 1, 10),

		// Prepaid minutes
		CountdownInterval: countdownInterval,
		StartingMinutes:   getenvIntClamped("STARTING_MINUTES", 20, 0, 600),

		// JWT Authentication
		JWTSecret: os.Getenv("JWT_SECRET"), // Required - no fallback for security
		JWTExpiry: jwtExpiry,
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getenvIntClamped reads an integer env var and clamps it to [min, max].
// Missing or unparseable values fall back to def.
func getenvIntClamped(k string, def, min, max int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
