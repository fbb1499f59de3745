package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Provider (OpenAI Videos API)
	OpenAIAPIKey            string
	OpenAIAPIBase           string
	SoraModel               string
	ProviderTimeout         time.Duration
	ProviderDownloadTimeout time.Duration
	ReferenceMaxBytes       int64

	// Supabase
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseJWTSecret     string
	SupabaseStorageBucket string

	// Record store: postgres | supabase | sqlite
	RecordStore string
	DatabaseURL string
	SQLitePath  string

	// Redis (optional; poll lock and event publishing)
	RedisURL string

	// Generation policy
	PollLockTTL             time.Duration
	GenerationMaxProcessing time.Duration // 0 means no limit
	PromptMaxLength         int

	// Rate limiting
	RateRPS   float64
	RateBurst int

	// Server
	Port               string
	BaseURL            string
	Environment        string
	LogLevel           string
	LogPretty          bool
	CORSAllowedOrigins []string

	// Tracing
	OTELEnabled     bool
	OTELEndpoint    string
	OTELInsecure    bool
	OTELServiceName string
	OTELSampleRatio float64
}

// Load reads the process environment, after merging a .env file if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		OpenAIAPIKey:            getEnv("OPENAI_API_KEY", ""),
		OpenAIAPIBase:           getEnv("OPENAI_API_BASE", "https://api.openai.com/v1"),
		SoraModel:               getEnv("SORA_MODEL", "sora-2"),
		ProviderTimeout:         getDuration("PROVIDER_TIMEOUT", 60*time.Second),
		ProviderDownloadTimeout: getDuration("PROVIDER_DOWNLOAD_TIMEOUT", 5*time.Minute),
		ReferenceMaxBytes:       int64(getInt("REFERENCE_MAX_BYTES", 20<<20)),

		SupabaseURL:           strings.TrimSuffix(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseJWTSecret:     getEnv("SUPABASE_JWT_SECRET", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "generated-videos"),

		RecordStore: strings.ToLower(getEnv("RECORD_STORE", "")),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "sora2api.db"),

		RedisURL: getEnv("REDIS_URL", ""),

		PollLockTTL:             getDuration("POLL_LOCK_TTL", 0),
		GenerationMaxProcessing: getDuration("GENERATION_MAX_PROCESSING", 0),
		PromptMaxLength:         getInt("PROMPT_MAX_LENGTH", 4000),

		RateRPS:   getFloat("RATE_RPS", 2),
		RateBurst: getInt("RATE_BURST", 5),

		Port:               getEnv("PORT", "8080"),
		BaseURL:            getEnv("BASE_URL", ""),
		Environment:        getEnv("ENVIRONMENT", "development"),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogPretty:          getBool("LOG_PRETTY", false),
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),

		OTELEnabled:     getBool("OTEL_ENABLED", false),
		OTELEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELInsecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELServiceName: getEnv("OTEL_SERVICE_NAME", "sora2api"),
		OTELSampleRatio: getFloat("OTEL_SAMPLE_RATIO", 1.0),
	}

	// A completing poll downloads and uploads the video while holding the
	// lock, so the lock has to outlive the download.
	if cfg.PollLockTTL == 0 {
		cfg.PollLockTTL = cfg.ProviderDownloadTimeout + time.Minute
	}

	if cfg.RecordStore == "" {
		if cfg.DatabaseURL != "" {
			cfg.RecordStore = "postgres"
		} else {
			cfg.RecordStore = "sqlite"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseServiceKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_KEY is required")
	}
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	switch c.RecordStore {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when RECORD_STORE=postgres")
		}
	case "supabase":
	case "sqlite":
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH must not be empty")
		}
	default:
		return fmt.Errorf("RECORD_STORE must be one of: postgres, supabase, sqlite")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}
	if c.ProviderTimeout <= 0 || c.ProviderDownloadTimeout <= 0 || c.PollLockTTL <= 0 {
		return fmt.Errorf("timeouts must be positive durations")
	}
	if c.PollLockTTL < c.ProviderDownloadTimeout {
		return fmt.Errorf("POLL_LOCK_TTL (%s) must be at least PROVIDER_DOWNLOAD_TIMEOUT (%s)",
			c.PollLockTTL, c.ProviderDownloadTimeout)
	}
	if c.GenerationMaxProcessing < 0 {
		return fmt.Errorf("GENERATION_MAX_PROCESSING must be >= 0")
	}
	if c.ReferenceMaxBytes <= 0 {
		return fmt.Errorf("REFERENCE_MAX_BYTES must be > 0")
	}
	if c.PromptMaxLength <= 0 {
		return fmt.Errorf("PROMPT_MAX_LENGTH must be > 0")
	}
	if c.RateRPS <= 0 {
		return fmt.Errorf("RATE_RPS must be > 0")
	}
	if c.OTELSampleRatio < 0 || c.OTELSampleRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATIO must be between 0 and 1")
	}
	if c.RateBurst < 1 {
		return fmt.Errorf("RATE_BURST must be >= 1")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
