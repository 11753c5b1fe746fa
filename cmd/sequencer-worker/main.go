// Sequencer Worker — выполняет планы, поставленные в очередь.
//
// Worker:
//   - Получает run.pending из RabbitMQ
//   - Периодически забирает PENDING runs из БД (polling fallback)
//   - Выполняет план движком и сохраняет результат
//   - Публикует run.completed
//
// Workers масштабируются горизонтально. Без БД worker не запускается.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/Sequencer/internal/app"
	"github.com/shaiso/Sequencer/internal/config"
	"github.com/shaiso/Sequencer/internal/telemetry"
	"github.com/shaiso/Sequencer/internal/worker"
)

func main() {
	cfg, err := config.Load(os.Getenv("SEQUENCER_CONFIG"))
	if err != nil {
		telemetry.SetupLogger(telemetry.LogOptions{}).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(telemetry.LogOptions{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logger.Info("starting sequencer-worker")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, logger, app.Options{RequireDatabase: true})
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if a.Conn == nil {
		logger.Warn("running in polling-only mode")
	}

	w := worker.New(worker.Config{
		Processor:    a.Orchestrator,
		Pending:      a.Runs,
		Conn:         a.Conn,
		PollInterval: cfg.Worker.PollInterval,
		BatchSize:    cfg.Worker.BatchSize,
		Concurrency:  cfg.Worker.Concurrency,
		Logger:       logger,
	})

	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", a.Metrics.Handler())

	port := ":8082"
	if v := os.Getenv("WORKER_PORT"); v != "" {
		port = fmt.Sprintf(":%s", v)
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	w.Stop()
	logger.Info("sequencer-worker stopped")
}
