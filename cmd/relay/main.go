package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/parksys/parking-service/internal/adapters/messaging"
	"github.com/parksys/parking-service/internal/adapters/outbox"
	"github.com/parksys/parking-service/internal/config"
	"github.com/parksys/parking-service/internal/logging"
)

const healthAddr = ":8090"

func main() {
	cfg, err := config.LoadRelayConfig()
	if err != nil {
		logging.Default().Fatal().Err(err).Msg("relay: invalid configuration")
	}

	logger := logging.NewFromConfig(cfg.LogLevel, "")
	logging.SetDefault(logger)
	logger.Info().Msg("starting outbox relay service")

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("relay: failed to open database")
	}
	defer db.Close()
	logger.Info().Msg("relay: database connection initialized, circuit breaker will validate on first operation")

	broker, err := messaging.NewRabbitMQBroker(cfg.RabbitMQURL, cfg.SessionQueueName)
	if err != nil {
		logger.Fatal().Err(err).Msg("relay: failed to connect to RabbitMQ")
	}
	defer broker.Close()
	logger.Info().Str("queue", cfg.SessionQueueName).Msg("relay: connected to RabbitMQ")

	relayWorker := outbox.NewRelay(db, cfg.DatabaseURL, broker, &logger)

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("GET /health", probe(relayWorker.IsHealthy))
	healthMux.HandleFunc("GET /health/live", probe(relayWorker.IsHealthy))
	healthMux.HandleFunc("GET /health/ready", probe(relayWorker.IsReady))

	healthServer := &http.Server{
		Addr:              healthAddr,
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", healthAddr).Msg("relay: starting health check server")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("relay: health server error")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		logger.Info().Msg("relay: starting event processing worker")
		if err := relayWorker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("relay: initiating shutdown")
	case err := <-errChan:
		logger.Error().Err(err).Msg("relay: fatal error, shutting down")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("relay: error shutting down health server")
	}

	logger.Info().Msg("relay: shutdown complete")
}

func probe(check func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "UP"
		httpStatus := http.StatusOK
		if !check() {
			status = "DOWN"
			httpStatus = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(httpStatus)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":    status,
			"component": "outbox-relay",
		})
	}
}
