package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/tournevent/fulfillment/internal/server"
	"github.com/tournevent/fulfillment/internal/shipment"
	"github.com/tournevent/fulfillment/internal/telemetry"
	"go.uber.org/zap"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "fulfillment",
	Short:   "Tournevent Fulfillment - shipment orchestration over the Shiprocket API",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Optional .env for local runs
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracer, tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		defer tracerShutdown(context.WithoutCancel(ctx))
	}

	st, err := initStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close(context.WithoutCancel(ctx))

	publisher := initPublisher(cfg, logger)
	defer publisher.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	orch := shipment.New(shipment.Config{
		PickupPincode:     cfg.PickupPincode,
		AutoAssign:        cfg.AutoAssignEnabled,
		AutoAssignTimeout: cfg.AutoAssignTimeout,
	}, initCarrier(cfg, logger, tracer), st, publisher, logger, metrics, tracer)

	logger.Info("Starting Tournevent Fulfillment",
		zap.Int("port", cfg.Port),
		zap.String("version", cfg.Version),
		zap.String("store", cfg.StoreBackend),
		zap.Bool("carrier_mock", cfg.ShiprocketUseMock),
	)

	srv := server.New(server.Config{Port: cfg.Port}, orch, logger, reg)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
