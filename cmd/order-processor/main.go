package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/jcmexdev/order-pipeline/internal/config"
	"github.com/jcmexdev/order-pipeline/internal/order-processor/app"
	"github.com/jcmexdev/order-pipeline/internal/order-processor/auditlog"
	"github.com/jcmexdev/order-pipeline/internal/order-processor/auditlog/sqlite"
	"github.com/jcmexdev/order-pipeline/internal/pkg/broker"
	"github.com/jcmexdev/order-pipeline/internal/pkg/store"
	"github.com/jcmexdev/order-pipeline/internal/pkg/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("order-processor stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("order-processor")
	if err != nil {
		return err
	}
	logger := telemetry.InitLogger(cfg.ServiceName, cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, telemetry.TracerConfig{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Error("tracer shutdown error", "error", err)
		}
	}()
	tracer := otel.Tracer(cfg.ServiceName)

	orders, closeStore, err := store.Open(ctx, cfg.StoreURL, cfg.ConnectPolicy(), logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var journal auditlog.Repository
	if cfg.AuditLogPath != "" {
		repo, err := sqlite.Open(cfg.AuditLogPath)
		if err != nil {
			return err
		}
		defer repo.Close()
		journal = repo
	}

	channel, err := broker.Open(cfg.BrokerURL, cfg.QueueName, cfg.ConnectPolicy(), logger)
	if err != nil {
		return err
	}
	if err := channel.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if err := channel.Close(); err != nil {
			logger.Error("broker close error", "error", err)
		}
	}()

	fulfiller := app.TraceFulfiller(app.NewFulfillment(app.NewRandomDecider(cfg.ShipRate, cfg.FulfillmentLatency)), tracer)
	worker := app.NewWorker(store.Trace(orders, tracer), fulfiller, journal, logger)

	logger.Info("order processor consuming", "queue", cfg.QueueName)
	return channel.Consume(ctx, app.TraceHandler(worker.Handle, tracer))
}
