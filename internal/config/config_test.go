package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// setRequired sets the minimum env for Load() to succeed. Individual tests
// override whatever they exercise on top of this baseline.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123456:test-token")
	t.Setenv("GEMINI_API_KEY", "test-key")
}

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	setRequired(t)
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestMustLoad_Success_NoPanic(t *testing.T) {
	setRequired(t)
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on valid defaults, got: %v", r)
		}
	}()
	cfg := MustLoad()
	if cfg.WebhookPath == "" {
		t.Fatalf("unexpected empty config from MustLoad")
	}
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	setRequired(t)

	// Server timeouts / sizes (valid)
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"

	// Logging
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")

	// Webhook / pipeline
	t.Setenv("WEBHOOK_PATH", "hooks/telegram/") // no leading slash + trailing slash -> "/hooks/telegram"
	t.Setenv("HISTORY_LIMIT", "25")
	t.Setenv("FALLBACK_REPLY", "brb")

	// Store
	t.Setenv("STORE_BACKEND", "SQLITE") // case-insensitive
	t.Setenv("DB_PATH", "db.sqlite")

	// External services
	t.Setenv("GEMINI_MODEL", "gemini-1.5-pro")
	t.Setenv("GEMINI_BASE_URL", "https://llm.example.com/") // trailing slash trimmed
	t.Setenv("TELEGRAM_WEBHOOK_SECRET", "s3cret")

	// Rate limiting (use invalids for parse to fall back to defaults)
	t.Setenv("RATE_RPS", "x")      // -> default 5.0
	t.Setenv("RATE_BURST", "nope") // -> default 10

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Server
	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}

	// Logging
	if cfg.LogLevel != "warn" || !cfg.LogPretty {
		t.Fatalf("logging unexpected: %+v", cfg)
	}

	// Webhook / pipeline
	if cfg.WebhookPath != "/hooks/telegram" || cfg.HistoryLimit != 25 || cfg.FallbackReply != "brb" {
		t.Fatalf("webhook/pipeline unexpected: %+v", cfg)
	}

	// Store
	if cfg.StoreBackend != StoreBackendSQLite || cfg.DBPath != "db.sqlite" {
		t.Fatalf("store fields unexpected: %+v", cfg)
	}

	// External services
	if cfg.Telegram.BotToken != "123456:test-token" || cfg.Telegram.WebhookSecret != "s3cret" {
		t.Fatalf("telegram fields unexpected: %+v", cfg.Telegram)
	}
	if cfg.Gemini.Model != "gemini-1.5-pro" || cfg.Gemini.BaseURL != "https://llm.example.com" {
		t.Fatalf("gemini fields unexpected: %+v", cfg.Gemini)
	}

	// Rate limiting (parse fallback to defaults)
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate limiting unexpected: %+v", cfg)
	}

	// OTEL
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.WebhookPath != "/webhook/telegram" {
		t.Fatalf("WEBHOOK_PATH default expected '/webhook/telegram', got %q", cfg.WebhookPath)
	}
	if cfg.HistoryLimit != 10 {
		t.Fatalf("HISTORY_LIMIT default expected 10, got %d", cfg.HistoryLimit)
	}
	if cfg.FallbackReply != DefaultFallbackReply {
		t.Fatalf("FALLBACK_REPLY default unexpected: %q", cfg.FallbackReply)
	}
	if cfg.StoreBackend != StoreBackendSQLite || cfg.DBPath != "app.db" {
		t.Fatalf("store defaults unexpected: %+v", cfg)
	}
	if cfg.Gemini.Model != "gemini-1.5-flash" || cfg.Gemini.BaseURL != "" {
		t.Fatalf("gemini defaults unexpected: %+v", cfg.Gemini)
	}
	// Secret is optional; empty disables webhook auth.
	if cfg.Telegram.WebhookSecret != "" {
		t.Fatalf("expected empty webhook secret by default, got %q", cfg.Telegram.WebhookSecret)
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	t.Run("invalid LOG_LEVEL", func(t *testing.T) {
		setRequired(t)
		t.Setenv("LOG_LEVEL", "verbose")
		if _, err := Load(); err == nil {
			t.Fatalf("expected LOG_LEVEL validation error")
		}
	})
	t.Run("empty PORT via spaces", func(t *testing.T) {
		setRequired(t)
		t.Setenv("PORT", "   ")
		if _, err := Load(); err == nil || !containsErr(err, "PORT must not be empty") {
			t.Fatalf("expected port validation error, got: %v", err)
		}
	})
	t.Run("non-positive timeouts", func(t *testing.T) {
		setRequired(t)
		t.Setenv("READ_TIMEOUT", "0s")
		if _, err := Load(); err == nil || !containsErr(err, "timeouts must be positive") {
			t.Fatalf("expected timeouts validation error, got: %v", err)
		}
	})
	t.Run("max header bytes <= 0", func(t *testing.T) {
		setRequired(t)
		t.Setenv("MAX_HEADER_BYTES", "0")
		if _, err := Load(); err == nil || !containsErr(err, "MAX_HEADER_BYTES") {
			t.Fatalf("expected MAX_HEADER_BYTES validation error, got: %v", err)
		}
	})
	t.Run("missing TELEGRAM_BOT_TOKEN", func(t *testing.T) {
		t.Setenv("TELEGRAM_BOT_TOKEN", "")
		t.Setenv("GEMINI_API_KEY", "test-key")
		if _, err := Load(); err == nil || !containsErr(err, "TELEGRAM_BOT_TOKEN") {
			t.Fatalf("expected TELEGRAM_BOT_TOKEN validation error, got: %v", err)
		}
	})
	t.Run("missing GEMINI_API_KEY", func(t *testing.T) {
		t.Setenv("TELEGRAM_BOT_TOKEN", "123456:test-token")
		t.Setenv("GEMINI_API_KEY", "")
		if _, err := Load(); err == nil || !containsErr(err, "GEMINI_API_KEY") {
			t.Fatalf("expected GEMINI_API_KEY validation error, got: %v", err)
		}
	})
	t.Run("empty GEMINI_MODEL", func(t *testing.T) {
		setRequired(t)
		t.Setenv("GEMINI_MODEL", "   ")
		if _, err := Load(); err == nil || !containsErr(err, "GEMINI_MODEL") {
			t.Fatalf("expected GEMINI_MODEL validation error, got: %v", err)
		}
	})
	t.Run("unknown STORE_BACKEND", func(t *testing.T) {
		setRequired(t)
		t.Setenv("STORE_BACKEND", "dynamo")
		if _, err := Load(); err == nil || !containsErr(err, "STORE_BACKEND") {
			t.Fatalf("expected STORE_BACKEND validation error, got: %v", err)
		}
	})
	t.Run("empty DB_PATH", func(t *testing.T) {
		setRequired(t)
		t.Setenv("DB_PATH", "   ")
		if _, err := Load(); err == nil || !containsErr(err, "DB_PATH must not be empty") {
			t.Fatalf("expected DB_PATH validation error, got: %v", err)
		}
	})
	t.Run("appwrite backend with missing settings", func(t *testing.T) {
		setRequired(t)
		t.Setenv("STORE_BACKEND", "appwrite")
		t.Setenv("APPWRITE_ENDPOINT", "https://cloud.appwrite.io/v1")
		// project id / api key / database id intentionally unset
		if _, err := Load(); err == nil || !containsErr(err, "APPWRITE_PROJECT_ID") {
			t.Fatalf("expected appwrite validation error, got: %v", err)
		}
	})
	t.Run("history limit < 1", func(t *testing.T) {
		setRequired(t)
		t.Setenv("HISTORY_LIMIT", "0")
		if _, err := Load(); err == nil || !containsErr(err, "HISTORY_LIMIT") {
			t.Fatalf("expected HISTORY_LIMIT validation error, got: %v", err)
		}
	})
	t.Run("empty FALLBACK_REPLY", func(t *testing.T) {
		setRequired(t)
		t.Setenv("FALLBACK_REPLY", "   ")
		if _, err := Load(); err == nil || !containsErr(err, "FALLBACK_REPLY") {
			t.Fatalf("expected FALLBACK_REPLY validation error, got: %v", err)
		}
	})
	t.Run("rate rps negative", func(t *testing.T) {
		setRequired(t)
		t.Setenv("RATE_RPS", "-1")
		if _, err := Load(); err == nil || !containsErr(err, "RATE_RPS") {
			t.Fatalf("expected RATE_RPS validation error, got: %v", err)
		}
	})
	t.Run("rate burst < 1", func(t *testing.T) {
		setRequired(t)
		t.Setenv("RATE_BURST", "0")
		if _, err := Load(); err == nil || !containsErr(err, "RATE_BURST") {
			t.Fatalf("expected RATE_BURST validation error, got: %v", err)
		}
	})
	t.Run("otel sample ratio out of range", func(t *testing.T) {
		setRequired(t)
		t.Setenv("OTEL_TRACES_SAMPLER_ARG", "1.5")
		if _, err := Load(); err == nil || !containsErr(err, "OTEL_TRACES_SAMPLER_ARG") {
			t.Fatalf("expected OTEL_TRACES_SAMPLER_ARG validation error, got: %v", err)
		}
	})

	// Note: WEBHOOK_PATH validation is effectively unreachable because
	// normalizePath always ensures a leading '/' and returns "/" for empty input.
}

// --- helpers ---

func TestHelpers_getenv(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	if getenv("X_EMPTY", "d") != "d" {
		t.Fatalf("getenv should fall back to default on empty var")
	}
	t.Setenv("X_SET", "val")
	if getenv("X_SET", "d") != "val" {
		t.Fatalf("getenv should read set value")
	}
}

func TestHelpers_getfloat_getint_getdur(t *testing.T) {
	t.Setenv("F_VALID", "3.14")
	if getfloat("F_VALID", 0) != 3.14 {
		t.Fatalf("getfloat parse failed")
	}
	t.Setenv("F_BAD", "nope")
	if getfloat("F_BAD", 1.23) != 1.23 {
		t.Fatalf("getfloat default on bad parse failed")
	}

	t.Setenv("I_VALID", "42")
	if getint("I_VALID", 0) != 42 {
		t.Fatalf("getint parse failed")
	}
	t.Setenv("I_BAD", "x")
	if getint("I_BAD", 7) != 7 {
		t.Fatalf("getint default on bad parse failed")
	}

	t.Setenv("D_VALID", "150ms")
	if getdur("D_VALID", time.Second) != 150*time.Millisecond {
		t.Fatalf("getdur parse failed")
	}
	t.Setenv("D_BAD", "zzz")
	if getdur("D_BAD", 2*time.Second) != 2*time.Second {
		t.Fatalf("getdur default on bad parse failed")
	}
}

func TestHelpers_getbool(t *testing.T) {
	trueVals := []string{"1", "true", "TRUE", " yes ", "Y", "on", "On"}
	for i, v := range trueVals {
		k := "B_T_" + config_strconv(i)
		t.Setenv(k, v)
		if !getbool(k, false) {
			t.Fatalf("getbool(%q) = false; want true", v)
		}
	}
	falseVals := []string{"0", "false", "FALSE", " no ", "N", "off", "Off"}
	for i, v := range falseVals {
		k := "B_F_" + config_strconv(i)
		t.Setenv(k, v)
		if getbool(k, true) {
			t.Fatalf("getbool(%q) = true; want false", v)
		}
	}
	// default on unset/empty
	t.Setenv("B_EMPTY", "")
	if !getbool("B_EMPTY", true) || getbool("B_EMPTY", false) {
		t.Fatalf("getbool default behavior unexpected")
	}
}

func TestHelpers_normalizePath(t *testing.T) {
	if normalizePath("") != "/" {
		t.Fatalf("normalizePath empty -> '/' failed")
	}
	if normalizePath("webhook") != "/webhook" {
		t.Fatalf("normalizePath missing leading slash failed")
	}
	if normalizePath("/webhook/") != "/webhook" {
		t.Fatalf("normalizePath trailing slash trim failed")
	}
	if normalizePath(" / ") != "/" {
		t.Fatalf("normalizePath whitespace failed")
	}
}

// small helper (avoid fmt just for ints)
func config_strconv(i int) string { return string('a' + rune(i)) }

// Ensure tests don't leak env to others.
func TestMain(m *testing.M) {
	os.Unsetenv("PORT")
	os.Exit(m.Run())
}

// containsErr reports whether err's message contains the given substring.
func containsErr(err error, want string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), want)
}
