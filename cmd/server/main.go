// Command server runs the Telegram webhook bridge: it receives Bot API
// updates over HTTP, routes them through the language-model pipeline, and
// persists conversation turns in the configured store backend.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-telegram-bridge/internal/config"
	httpapi "github.com/tbourn/go-telegram-bridge/internal/http"
	"github.com/tbourn/go-telegram-bridge/internal/llm"
	"github.com/tbourn/go-telegram-bridge/internal/observability"
	"github.com/tbourn/go-telegram-bridge/internal/services"
	"github.com/tbourn/go-telegram-bridge/internal/store"
	"github.com/tbourn/go-telegram-bridge/internal/sysutil"
	"github.com/tbourn/go-telegram-bridge/internal/telegram"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Global logger
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx := context.Background()

	// Tracing
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	// Store backend
	st, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("store initialization failed")
	}
	defer st.Close()
	log.Info().Str("backend", cfg.StoreBackend).Msg("store ready")

	// Pipeline dependencies
	svc := &services.BridgeService{
		Store:         st,
		LLM:           llm.NewGeminiClient(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.BaseURL),
		Messenger:     telegram.NewClient(cfg.Telegram.BotToken),
		HistoryLimit:  cfg.HistoryLimit,
		FallbackReply: cfg.FallbackReply,
	}

	// HTTP transport
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, svc, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("webhook_path", cfg.WebhookPath).
			Str("version", version).
			Msg("starting webhook bridge")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// openStore selects the persistence backend from configuration. Both
// backends satisfy store.Store; the pipeline never knows which one it got.
func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendAppwrite:
		return store.NewAppwriteStore(cfg.Appwrite), nil
	default:
		return store.OpenSQLite(cfg.DBPath)
	}
}
