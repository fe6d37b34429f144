package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/jcmexdev/order-pipeline/internal/config"
	"github.com/jcmexdev/order-pipeline/internal/order-api/app"
	"github.com/jcmexdev/order-pipeline/internal/order-api/infra/httpx"
	"github.com/jcmexdev/order-pipeline/internal/order-api/jobs"
	"github.com/jcmexdev/order-pipeline/internal/pkg/broker"
	"github.com/jcmexdev/order-pipeline/internal/pkg/cache"
	"github.com/jcmexdev/order-pipeline/internal/pkg/store"
	"github.com/jcmexdev/order-pipeline/internal/pkg/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("order-api stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("order-api")
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

	channel, err := broker.Open(cfg.BrokerURL, cfg.QueueName, cfg.ConnectPolicy(), logger)
	if err != nil {
		return err
	}
	// Exhausting the connect budget ends the process.
	if err := channel.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if err := channel.Close(); err != nil {
			logger.Error("broker close error", "error", err)
		}
	}()

	publisher := app.TracePublisher(broker.NewRequestPublisher(channel), tracer, cfg.QueueName)

	var opts []app.Option
	if cfg.RedisAddr != "" {
		client, err := cache.Dial(ctx, cfg.RedisAddr)
		if err != nil {
			// The cache is optional; reads go to the store without it.
			logger.Warn("order cache disabled", "error", err)
		} else {
			defer client.Close()
			opts = append(opts, app.WithCache(cache.NewOrders(cache.NewRedisCache(client, "order-api"), cfg.CacheTTL)))
		}
	}

	svc := app.TraceService(app.NewService(store.Trace(orders, tracer), publisher, logger, opts...), tracer)

	if cfg.RepublishSchedule != "" {
		job := jobs.NewRepublishJob(svc, cfg.RepublishSchedule, cfg.RepublishAfter, logger)
		if err := job.Start(); err != nil {
			return err
		}
		defer job.Stop()
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpx.NewRouter(httpx.NewHandler(svc, logger), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("order api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
