// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ca-schools-query/internal/bootstrap"
	"ca-schools-query/internal/common/camunda"
	"ca-schools-query/internal/common/config"
	"ca-schools-query/internal/common/logger"
	"ca-schools-query/internal/common/observability"

	aq "ca-schools-query/internal/workers/schools/answer-question"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("genai", cfg.APIs.GenAI.Provider),
	)

	if cfg.Camunda.BrokerAddress == "" {
		zapLog.Fatal("camunda.broker_address is required")
	}

	obs, err := observability.New(cfg.App.Name, observability.AsGlobal())
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Storage, language model and pipeline ---
	components, err := bootstrap.Build(ctx, cfg, zapLog, obs, bootstrap.Options{
		ConnectAttempts: 15,
		InitialDelay:    2 * time.Second,
	})
	if err != nil {
		zapLog.Fatal("pipeline init failed", zap.Error(err))
	}
	defer components.Close()

	// --- Zeebe client with retry ---
	zeebe, err := camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
	}, zapLog)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	components.AddCheck("zeebe", zeebe.HealthCheck)
	zapLog.Info("Zeebe client connected successfully")

	// --- Workers ---
	wcfg := config.GetWorkerConfig(cfg, aq.TaskType)
	handler := aq.NewHandler(&aq.Config{
		Timeout: config.GetDuration(wcfg.Timeout),
	}, components.Pipeline, log)
	answerWorker := camunda.NewWorker(zeebe.GetClient(), aq.TaskType, wcfg, handler, zapLog)

	// --- Health & Metrics Server ---
	srv := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           newMux(components),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", cfg.Metrics.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	answerWorker.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

type readiness interface {
	Ready(ctx context.Context) map[string]error
}

func newMux(r readiness) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
		defer cancel()

		failed := r.Ready(ctx)
		if len(failed) == 0 {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
			return
		}
		reasons := make(map[string]string, len(failed))
		for name, err := range failed {
			reasons[name] = err.Error()
		}
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not_ready",
			"failed": reasons,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
