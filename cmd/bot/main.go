// cmd/bot/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	aiservice "sighunt/internal/ai/service"
	bybitservice "sighunt/internal/bybit/service"
	"sighunt/internal/config"
	"sighunt/internal/metrics"
	opshttp "sighunt/internal/ops/transport/http"
	pipelineservice "sighunt/internal/pipeline/service"
	signalservice "sighunt/internal/signal/service"
	telegramservice "sighunt/internal/telegram/service"
	tradingservice "sighunt/internal/trading/service"
	"sighunt/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logger.New("info")
		l.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(cfg.LogLevel)
	log.Info().Msg("sighunt starting")

	metrics.InitMetrics()

	// --- ИНИЦИАЛИЗАЦИЯ СЛОЁВ ---
	bybitClient := bybitservice.NewBybitHTTPClient(cfg.BybitAPIKey, cfg.BybitAPISecret, logger.Component(log, "bybit"))
	exchange := bybitservice.NewExchange(bybitClient, logger.Component(log, "bybit"))

	strategy := tradingservice.NewStrategy(exchange, cfg.AccountBalance, cfg.RiskPercent, logger.Component(log, "trading"))
	if err := strategy.InitCache(); err != nil {
		log.Fatal().Err(err).Msg("failed to load instrument cache")
	}

	classifier := aiservice.NewClassifier(cfg.OpenRouterAPIKey, cfg.OpenRouterModel, logger.Component(log, "classifier"))
	parser := signalservice.NewParser(logger.Component(log, "parser"))
	pipeline := pipelineservice.NewPipeline(classifier, parser, strategy, logger.Component(log, "pipeline"))

	stats := pipelineservice.NewStats()
	handler := pipelineservice.Wrap(pipeline.Process, stats, logger.Component(log, "pipeline"))

	channel, err := telegramservice.NewBotChannel(cfg.TelegramBotToken, cfg.TelegramChannelID, logger.Component(log, "telegram"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to telegram")
	}

	ingestor := telegramservice.NewIngestor(
		channel,
		handler,
		cfg.IngestMode,
		time.Duration(cfg.PollIntervalSec)*time.Second,
		cfg.PollLimit,
		time.Duration(cfg.ConnectivityIntervalSec)*time.Second,
		logger.Component(log, "ingest"),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Служебный HTTP: health, stats, metrics
	opsHandler := opshttp.NewHandler(stats, ingestor, bybitClient.GetCircuitBreaker())
	server := &http.Server{
		Addr:    cfg.OpsAddr,
		Handler: opsHandler.Routes(),
	}
	go func() {
		log.Info().Str("addr", cfg.OpsAddr).Msg("ops server running")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("ops server failed")
		}
	}()

	log.Info().Str("mode", cfg.IngestMode).Msg("ingestion starting")
	if err := ingestor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("ingestion stopped with error")
	}

	log.Info().Msg("shutdown signal received, starting graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("ops server shutdown failed")
	}

	log.Info().Msg("sighunt stopped")
}
