// Package main is the entry point for the cash-flow ledger API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/yelinaung/cashflow-ledger/internal/api"
	"gitlab.com/yelinaung/cashflow-ledger/internal/authz"
	"gitlab.com/yelinaung/cashflow-ledger/internal/config"
	"gitlab.com/yelinaung/cashflow-ledger/internal/database"
	"gitlab.com/yelinaung/cashflow-ledger/internal/events"
	"gitlab.com/yelinaung/cashflow-ledger/internal/exchange"
	"gitlab.com/yelinaung/cashflow-ledger/internal/extraction"
	"gitlab.com/yelinaung/cashflow-ledger/internal/gemini"
	"gitlab.com/yelinaung/cashflow-ledger/internal/ledger"
	"gitlab.com/yelinaung/cashflow-ledger/internal/logger"
	"gitlab.com/yelinaung/cashflow-ledger/internal/openai"
	"gitlab.com/yelinaung/cashflow-ledger/internal/repository"
	"gitlab.com/yelinaung/cashflow-ledger/internal/telemetry"
	"gitlab.com/yelinaung/cashflow-ledger/internal/transcription"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const shutdownTimeout = 10 * time.Second

// collaborator extracts fields from prompts and transcribes audio.
type collaborator interface {
	extraction.Extractor
	transcription.Transcriber
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("cashflow-ledger %s (commit: %s, built: %s)\n", version, commit, date)
		return
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.SetLevel(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		logger.SetJSON()
	}

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Options{
		Exporter: cfg.OTelExporter,
		Endpoint: cfg.OTelEndpoint,
		Version:  version,
	})
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to set up telemetry")
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Log.Error().Err(err).Msg("Failed to flush telemetry")
		}
	}()

	metrics, err := telemetry.NewMetrics(otel.Meter(telemetry.ServiceName))
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to create metrics")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	roles, err := database.LoadRoles(cfg.RolesFile)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load roles")
	}
	if err := database.SeedRoles(ctx, pool, roles); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to seed roles")
	}

	logger.Log.Info().Int("roles", len(roles)).Msg("Database initialized successfully")

	collab, err := newCollaborator(ctx, cfg)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to create extraction provider")
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.KafkaEnabled() {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		logger.Log.Info().Str("topic", cfg.KafkaTopic).Msg("Publishing record events to Kafka")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Log.Error().Err(err).Msg("Failed to close event publisher")
		}
	}()

	policy := cfg.Policy()
	opts := []ledger.Option{
		ledger.WithTranscriber(transcription.NewService(collab)),
		ledger.WithPublisher(publisher),
		ledger.WithMetrics(metrics),
	}
	if cfg.ExchangeEnabled() {
		rates := exchange.NewCachedSource(exchange.NewFrankfurterSource(cfg.ExchangeAPIURL, 0), cfg.ExchangeRateTTL)
		opts = append(opts, ledger.WithRates(rates))
	}

	memberships := repository.NewMembershipRepository(pool)
	guard := authz.NewGuard(memberships)
	svc := ledger.NewService(
		repository.NewRecordRepository(pool),
		guard,
		extraction.New(collab, policy),
		policy,
		opts...,
	)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.NewHandler(svc, guard, memberships), []byte(cfg.JWTSecret))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, telemetry.ServiceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info().
			Str("addr", cfg.HTTPAddr).
			Str("provider", cfg.ExtractionProvider).
			Str("policy", policy.Version).
			Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error().Err(err).Msg("HTTP server failed")
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Log.Info().Msg("Shutting down...")

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Failed to shut down HTTP server")
	}
}

func newCollaborator(ctx context.Context, cfg *config.Config) (collaborator, error) {
	switch cfg.ExtractionProvider {
	case config.ProviderOpenAI:
		client, err := openai.NewClient(openai.Config{
			APIKey:   cfg.OpenAIAPIKey,
			BaseURL:  cfg.OpenAIBaseURL,
			Model:    cfg.OpenAIModel,
			Language: cfg.TranscriptionLanguage,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		client.SetLanguage(cfg.TranscriptionLanguage)
		return client, nil
	}
}
