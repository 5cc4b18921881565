package main

import (
	"context"

	"github.com/tournevent/fulfillment/internal/config"
	"github.com/tournevent/fulfillment/internal/events"
	"github.com/tournevent/fulfillment/internal/store"
	"github.com/tournevent/fulfillment/internal/telemetry"
	"github.com/tournevent/fulfillment/pkg/carrier"
	"github.com/tournevent/fulfillment/pkg/carrier/shiprocket"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(level string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level)
}

func initTracer(ctx context.Context, cfg *config.Config) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return noop.NewTracerProvider().Tracer(cfg.ServiceName), func(context.Context) error { return nil }, nil
	}

	return telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version, cfg.Attributes()...)
}

func initCarrier(cfg *config.Config, logger *otelzap.Logger, tracer trace.Tracer) carrier.Carrier {
	return shiprocket.New(shiprocket.Config{
		Email:              cfg.ShiprocketEmail,
		Password:           cfg.ShiprocketPassword,
		BaseURL:            cfg.ShiprocketBaseURL,
		Timeout:            cfg.ShiprocketTimeout,
		TokenTTL:           cfg.ShiprocketTokenTTL,
		TokenRefreshMargin: cfg.ShiprocketTokenRefreshMargin,
		UseMock:            cfg.ShiprocketUseMock,
	}, logger, tracer)
}

func initStore(ctx context.Context, cfg *config.Config, logger *otelzap.Logger) (store.Store, error) {
	return store.Open(ctx, store.Config{
		Backend:         cfg.StoreBackend,
		PostgresDSN:     cfg.PostgresDSN,
		PostgresTable:   cfg.PostgresTable,
		MongoURI:        cfg.MongoURI,
		MongoDatabase:   cfg.MongoDatabase,
		MongoCollection: cfg.MongoCollection,
		RedisAddr:       cfg.RedisAddr,
	}, logger)
}

func initPublisher(cfg *config.Config, logger *otelzap.Logger) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("Kafka brokers not configured; shipment events disabled")
		return events.Nop{}
	}

	logger.Info("Publishing shipment events",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaTopic),
	)
	return events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
}
