// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, store backend selection, the Telegram and
// language-model credentials, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backend identifiers accepted by STORE_BACKEND.
const (
	StoreBackendSQLite   = "sqlite"
	StoreBackendAppwrite = "appwrite"
)

// TelegramConfig holds the messaging-platform credentials.
type TelegramConfig struct {
	BotToken      string // TELEGRAM_BOT_TOKEN (required)
	WebhookSecret string // TELEGRAM_WEBHOOK_SECRET (optional, checked against X-Telegram-Bot-Api-Secret-Token)
}

// GeminiConfig holds the language-model endpoint settings. The API key is
// carried as a query parameter on the generateContent call.
type GeminiConfig struct {
	APIKey  string // GEMINI_API_KEY (required)
	Model   string // GEMINI_MODEL (e.g. "gemini-1.5-flash")
	BaseURL string // GEMINI_BASE_URL (override for tests/proxies)
}

// AppwriteConfig holds the managed document-store settings. All fields are
// required when STORE_BACKEND=appwrite.
type AppwriteConfig struct {
	Endpoint   string // APPWRITE_ENDPOINT (e.g. "https://cloud.appwrite.io/v1")
	ProjectID  string // APPWRITE_PROJECT_ID
	APIKey     string // APPWRITE_API_KEY
	DatabaseID string // APPWRITE_DATABASE_ID
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-telegram-bridge")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Webhook
	WebhookPath string // route the webhook is mounted on

	// Pipeline
	HistoryLimit  int    // turns fetched for the history window
	FallbackReply string // reply used when the language model fails

	// Store
	StoreBackend string // sqlite|appwrite
	DBPath       string // SQLite path (sqlite backend)
	Appwrite     AppwriteConfig

	// External services
	Telegram TelegramConfig
	Gemini   GeminiConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Observability
	OTEL OTELConfig
}

// DefaultFallbackReply is sent (and persisted as the model turn) when the
// language-model call fails. Users never see raw error text.
const DefaultFallbackReply = "Sorry, I'm having trouble responding right now. Please try again in a moment."

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// Webhook
		WebhookPath: normalizePath(getenv("WEBHOOK_PATH", "/webhook/telegram")),

		// Pipeline
		HistoryLimit:  getint("HISTORY_LIMIT", 10),
		FallbackReply: getenv("FALLBACK_REPLY", DefaultFallbackReply),

		// Store
		StoreBackend: strings.ToLower(getenv("STORE_BACKEND", StoreBackendSQLite)),
		DBPath:       getenv("DB_PATH", "app.db"),
		Appwrite: AppwriteConfig{
			Endpoint:   strings.TrimRight(getenv("APPWRITE_ENDPOINT", ""), "/"),
			ProjectID:  getenv("APPWRITE_PROJECT_ID", ""),
			APIKey:     getenv("APPWRITE_API_KEY", ""),
			DatabaseID: getenv("APPWRITE_DATABASE_ID", ""),
		},

		// External services
		Telegram: TelegramConfig{
			BotToken:      getenv("TELEGRAM_BOT_TOKEN", ""),
			WebhookSecret: getenv("TELEGRAM_WEBHOOK_SECRET", ""),
		},
		Gemini: GeminiConfig{
			APIKey:  getenv("GEMINI_API_KEY", ""),
			Model:   getenv("GEMINI_MODEL", "gemini-1.5-flash"),
			BaseURL: strings.TrimRight(getenv("GEMINI_BASE_URL", ""), "/"),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-telegram-bridge"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.Telegram.BotToken) == "" {
		return cfg, errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	if strings.TrimSpace(cfg.Gemini.APIKey) == "" {
		return cfg, errors.New("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Gemini.Model) == "" {
		return cfg, errors.New("GEMINI_MODEL must not be empty")
	}
	switch cfg.StoreBackend {
	case StoreBackendSQLite:
		if strings.TrimSpace(cfg.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case StoreBackendAppwrite:
		if cfg.Appwrite.Endpoint == "" || cfg.Appwrite.ProjectID == "" ||
			cfg.Appwrite.APIKey == "" || cfg.Appwrite.DatabaseID == "" {
			return cfg, errors.New("APPWRITE_ENDPOINT, APPWRITE_PROJECT_ID, APPWRITE_API_KEY and APPWRITE_DATABASE_ID are required when STORE_BACKEND=appwrite")
		}
	default:
		return cfg, errors.New("STORE_BACKEND must be one of: sqlite, appwrite")
	}
	if cfg.HistoryLimit < 1 {
		return cfg, errors.New("HISTORY_LIMIT must be >= 1")
	}
	if strings.TrimSpace(cfg.FallbackReply) == "" {
		return cfg, errors.New("FALLBACK_REPLY must not be empty")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// normalizePath ensures a leading '/' and strips trailing '/' (except root).
func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
