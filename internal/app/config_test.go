package app

import (
	"os"
	"testing"
	"time"
)

func TestGetenv(t *testing.T) {
	tests := []struct {
		name     string
		envKey   string
		envValue string
		defValue string
		want     string
	}{
		{
			name:     "env set",
			envKey:   "TEST_ENV_VAR",
			envValue: "custom_value",
			defValue: "default",
			want:     "custom_value",
		},
		{
			name:     "env not set",
			envKey:   "TEST_ENV_VAR_NOTSET",
			envValue: "",
			defValue: "default",
			want:     "default",
		},
		{
			name:     "empty default",
			envKey:   "TEST_ENV_VAR_EMPTY",
			envValue: "",
			defValue: "",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.envKey, tt.envValue)
				defer os.Unsetenv(tt.envKey)
			}

			got := getenv(tt.envKey, tt.defValue)
			if got != tt.want {
				t.Errorf("getenv(%q, %q) = %q, want %q", tt.envKey, tt.defValue, got, tt.want)
			}
		})
	}
}

func TestGetenvIntClamped(t *testing.T) {
	tests := []struct {
		name     string
		envKey   string
		envValue string
		def      int
		min      int
		max      int
		want     int
	}{
		{
			name:     "value within range",
			envKey:   "TEST_INT_NORMAL",
			envValue: "500",
			def:      100,
			min:      0,
			max:      1000,
			want:     500,
		},
		{
			name:     "value below min - clamp to min",
			envKey:   "TEST_INT_LOW",
			envValue: "-100",
			def:      100,
			min:      0,
			max:      1000,
			want:     0,
		},
		{
			name:     "value above max - clamp to max",
			envKey:   "TEST_INT_HIGH",
			envValue: "2000",
			def:      100,
			min:      0,
			max:      1000,
			want:     1000,
		},
		{
			name:     "env not set - use default",
			envKey:   "TEST_INT_NOTSET",
			envValue: "",
			def:      100,
			min:      0,
			max:      1000,
			want:     100,
		},
		{
			name:     "invalid value - use default",
			envKey:   "TEST_INT_INVALID",
			envValue: "not_a_number",
			def:      100,
			min:      0,
			max:      1000,
			want:     100,
		},
		{
			name:     "boundary: exactly min",
			envKey:   "TEST_INT_MIN",
			envValue: "200",
			def:      500,
			min:      200,
			max:      800,
			want:     200,
		},
		{
			name:     "boundary: exactly max",
			envKey:   "TEST_INT_MAX",
			envValue: "800",
			def:      500,
			min:      200,
			max:      800,
			want:     800,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.envKey, tt.envValue)
				defer os.Unsetenv(tt.envKey)
			}

			got := getenvIntClamped(tt.envKey, tt.def, tt.min, tt.max)
			if got != tt.want {
				t.Errorf("getenvIntClamped(%q, %d, %d, %d) = %d, want %d",
					tt.envKey, tt.def, tt.min, tt.max, got, tt.want)
			}
		})
	}
}

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	// Clear any existing env vars that might interfere
	keysToClean := []string{
		"HTTP_ADDR", "PUBLIC_BASE_URL", "DATABASE_URL", "LOG_LEVEL",
		"SILENCE_THRESHOLD_MS", "MIN_UTTERANCE_WORDS",
		"COUNTDOWN_INTERVAL", "STARTING_MINUTES", "LLM_MODEL", "STT_LANGUAGE",
	}
	for _, key := range keysToClean {
		os.Unsetenv(key)
	}

	cfg := LoadConfigFromEnv()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}

	if cfg.PublicBaseURL != "http://localhost:8080" {
		t.Errorf("PublicBaseURL = %q, want %q", cfg.PublicBaseURL, "http://localhost:8080")
	}

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}

	// Segmentation defaults
	if cfg.SilenceThresholdMs != 2500 {
		t.Errorf("SilenceThresholdMs = %d, want %d", cfg.SilenceThresholdMs, 2500)
	}

	if cfg.MinUtteranceWords != 2 {
		t.Errorf("MinUtteranceWords = %d, want %d", cfg.MinUtteranceWords, 2)
	}

	// Prepaid minute defaults
	if cfg.CountdownInterval != time.Minute {
		t.Errorf("CountdownInterval = %v, want %v", cfg.CountdownInterval, time.Minute)
	}

	if cfg.StartingMinutes != 20 {
		t.Errorf("StartingMinutes = %d, want %d", cfg.StartingMinutes, 20)
	}

	if cfg.LLMModel != "openai/gpt-4o-mini" {
		t.Errorf("LLMModel = %q, want %q", cfg.LLMModel, "openai/gpt-4o-mini")
	}

	if cfg.STTLanguage != "en" {
		t.Errorf("STTLanguage = %q, want %q", cfg.STTLanguage, "en")
	}
}

func TestLoadConfigFromEnvCustomValues(t *testing.T) {
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("PUBLIC_BASE_URL", "https://api.example.com")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("SILENCE_THRESHOLD_MS", "1800")
	os.Setenv("MIN_UTTERANCE_WORDS", "3")
	os.Setenv("COUNTDOWN_INTERVAL", "30s")
	os.Setenv("STARTING_MINUTES", "45")

	defer func() {
		os.Unsetenv("HTTP_ADDR")
		os.Unsetenv("PUBLIC_BASE_URL")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("SILENCE_THRESHOLD_MS")
		os.Unsetenv("MIN_UTTERANCE_WORDS")
		os.Unsetenv("COUNTDOWN_INTERVAL")
		os.Unsetenv("STARTING_MINUTES")
	}()

	cfg := LoadConfigFromEnv()

	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}

	if cfg.PublicBaseURL != "https://api.example.com" {
		t.Errorf("PublicBaseURL = %q, want %q", cfg.PublicBaseURL, "https://api.example.com")
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}

	if cfg.SilenceThresholdMs != 1800 {
		t.Errorf("SilenceThresholdMs = %d, want %d", cfg.SilenceThresholdMs, 1800)
	}

	if cfg.MinUtteranceWords != 3 {
		t.Errorf("MinUtteranceWords = %d, want %d", cfg.MinUtteranceWords, 3)
	}

	if cfg.CountdownInterval != 30*time.Second {
		t.Errorf("CountdownInterval = %v, want %v", cfg.CountdownInterval, 30*time.Second)
	}

	if cfg.StartingMinutes != 45 {
		t.Errorf("StartingMinutes = %d, want %d", cfg.StartingMinutes, 45)
	}
}

func TestLoadConfigInvalidDurationsFallBack(t *testing.T) {
	os.Setenv("COUNTDOWN_INTERVAL", "not-a-duration")
	os.Setenv("JWT_EXPIRY", "soon")
	defer func() {
		os.Unsetenv("COUNTDOWN_INTERVAL")
		os.Unsetenv("JWT_EXPIRY")
	}()

	cfg := LoadConfigFromEnv()

	if cfg.CountdownInterval != time.Minute {
		t.Errorf("CountdownInterval = %v, want fallback %v", cfg.CountdownInterval, time.Minute)
	}
	if cfg.JWTExpiry != 24*time.Hour {
		t.Errorf("JWTExpiry = %v, want fallback %v", cfg.JWTExpiry, 24*time.Hour)
	}
}
