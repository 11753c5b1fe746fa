// Sequencer API — HTTP сервер для планирования и выполнения планов.
//
// Конфигурация читается из sequencer.yaml (или файла из SEQUENCER_CONFIG)
// и переменных окружения SEQUENCER_*. Без database.url сервер работает
// без истории runs, без rabbitmq.url не публикует события.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/Sequencer/internal/api"
	"github.com/shaiso/Sequencer/internal/app"
	"github.com/shaiso/Sequencer/internal/config"
	"github.com/shaiso/Sequencer/internal/telemetry"
)

func main() {
	cfg, err := config.Load(os.Getenv("SEQUENCER_CONFIG"))
	if err != nil {
		telemetry.SetupLogger(telemetry.LogOptions{}).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(telemetry.LogOptions{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logger.Info("starting sequencer-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	handlerCfg := api.Config{
		Functions:    a.Registry,
		Validator:    a.Engine,
		Orchestrator: a.Orchestrator,
		Planner:      a.Planner,
		LLM:          a.LLM,
		Metrics:      a.Metrics,
		Limiter:      a.Limiter,
		Logger:       logger,
	}
	if a.Runs != nil {
		handlerCfg.Runs = a.Runs
	}

	mux := http.NewServeMux()
	api.NewHandler(handlerCfg).RegisterRoutes(mux)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
