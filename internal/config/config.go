package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AnalysisFailurePolicy controls what happens when one of the two
// photo analysis calls fails before generation.
type AnalysisFailurePolicy string

const (
	// FailureAbort stops the workflow and reports the error to the user.
	FailureAbort AnalysisFailurePolicy = "abort"
	// FailureDegrade substitutes an empty description and continues.
	FailureDegrade AnalysisFailurePolicy = "degrade"
)

type Config struct {
	GeminiAPIKey string

	LogLevel string
	Debug    bool

	PreferIPv4 bool

	WebAddr        string
	RequestTimeout time.Duration
	HTTPTimeout    time.Duration

	GeminiBaseURL    string
	GeminiAPIVersion string
	AnalysisModel    string
	ImageModel       string

	SessionTTL        time.Duration
	MaxConcurrent     int
	GenerateInterval  time.Duration
	MaxUploadBytes    int64
	OnAnalysisFailure AnalysisFailurePolicy
}

func Load() (Config, error) {
	cfg := Config{
		LogLevel:         strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info"))),
		Debug:            getEnvBool("DEBUG", false),
		PreferIPv4:       getEnvBool("PREFER_IPV4", true),
		WebAddr:          strings.TrimSpace(getEnv("WEB_ADDR", ":8080")),
		RequestTimeout:   time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 240)) * time.Second,
		HTTPTimeout:      time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 180)) * time.Second,
		GeminiBaseURL:    strings.TrimSpace(getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")),
		GeminiAPIVersion: strings.TrimSpace(getEnv("GEMINI_API_VERSION", "v1beta")),
		AnalysisModel:    strings.TrimSpace(getEnv("ANALYSIS_MODEL", "gemini-2.5-flash")),
		ImageModel:       strings.TrimSpace(getEnv("IMAGE_MODEL", "gemini-3-pro-image-preview")),
		SessionTTL:       time.Duration(getEnvInt("SESSION_TTL_MINUTES", 30)) * time.Minute,
		MaxConcurrent:    getEnvInt("MAX_CONCURRENT", 4),
		GenerateInterval: time.Duration(getEnvInt("GENERATE_INTERVAL_SECONDS", 0)) * time.Second,
		MaxUploadBytes:   int64(getEnvInt("MAX_UPLOAD_MB", 25)) << 20,
	}

	cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if cfg.GeminiAPIKey == "" {
		return Config{}, errors.New("GEMINI_API_KEY is required")
	}

	policy := AnalysisFailurePolicy(strings.ToLower(strings.TrimSpace(getEnv("ON_ANALYSIS_FAILURE", string(FailureAbort)))))
	switch policy {
	case FailureAbort, FailureDegrade:
		cfg.OnAnalysisFailure = policy
	default:
		return Config{}, fmt.Errorf("ON_ANALYSIS_FAILURE must be %q or %q, got %q", FailureAbort, FailureDegrade, policy)
	}

	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 240 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 180 * time.Second
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 25 << 20
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
