package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/parksys/parking-service/internal/adapters/handler"
	"github.com/parksys/parking-service/internal/adapters/messaging"
	"github.com/parksys/parking-service/internal/adapters/metrics"
	"github.com/parksys/parking-service/internal/adapters/middleware"
	"github.com/parksys/parking-service/internal/adapters/remote"
	"github.com/parksys/parking-service/internal/adapters/repository"
	"github.com/parksys/parking-service/internal/adapters/socket"
	"github.com/parksys/parking-service/internal/config"
	"github.com/parksys/parking-service/internal/core/domain"
	"github.com/parksys/parking-service/internal/core/ports"
	"github.com/parksys/parking-service/internal/core/services"
	"github.com/parksys/parking-service/internal/logging"
)

// stores holds the backend-specific adapters.
type stores struct {
	sessions ports.SessionStore
	users    ports.UserRepository
	invoices ports.InvoiceRepository
	checks   []handler.Checker
	// relayed is true when session events reach the broker via the outbox.
	relayed bool
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Fatal().Err(err).Msg("invalid configuration")
	}

	logger := logging.NewFromConfig(cfg.Log.Level, cfg.Log.Format)
	logging.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logging.WithLogger(ctx, &logger)

	st, cleanup, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("failed to open store")
	}
	defer cleanup()

	blacklist, blacklistCheck, closeBlacklist := openBlacklist(ctx, cfg, &logger)
	defer closeBlacklist()
	if blacklistCheck != nil {
		st.checks = append(st.checks, *blacklistCheck)
	}

	hub := socket.NewHub(&logger, allowOrigins(cfg.Server.CORSOrigins))
	go hub.Run(ctx)

	collector := metrics.NewCollector()
	if active, err := st.sessions.Active(ctx); err == nil {
		collector.SetActive(len(active))
	}

	invoiceService := services.NewInvoiceService(st.invoices, cfg.Location)
	publishers := []ports.SessionEventPublisher{invoiceService, collector, hub}

	if cfg.RabbitMQ.URL != "" && !st.relayed {
		broker, err := messaging.NewRabbitMQBroker(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
		if err != nil {
			logger.Warn().Err(err).Msg("RabbitMQ unavailable, session events will not be published")
		} else {
			defer broker.Close()
			publishers = append(publishers, broker)
			logger.Info().Str("queue", cfg.RabbitMQ.Queue).Msg("publishing session events to RabbitMQ")
		}
	}

	registry := services.NewRegistry(
		st.sessions,
		services.WithRules(cfg.Rules()),
		services.WithRates(cfg.Rates()),
		services.WithLocation(cfg.Location),
		services.WithPublishers(publishers...),
	)
	form := services.NewFormController(registry, invoiceService, cfg.Rates())

	authService := services.NewAuthService(st.users, cfg.JWTPrivateKey, blacklist, cfg.JWT.TTL)
	registrationService := services.NewRegistrationService(st.users)

	if cfg.Admin.Password != "" {
		if err := registrationService.EnsureUser(ctx, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password, domain.RoleAdmin); err != nil {
			logger.Fatal().Err(err).Msg("failed to seed admin user")
		}
	} else {
		logger.Warn().Msg("ADMIN_PASSWORD not set, no admin user seeded")
	}

	router := handler.NewRouter(handler.Routes{
		Vehicles:       handler.NewVehicleHandler(registry, form),
		Auth:           handler.NewAuthHandler(authService),
		Registration:   handler.NewRegistrationHandler(registrationService),
		Invoices:       handler.NewInvoiceHandler(invoiceService),
		Health:         handler.NewHealthHandler(cfg.Server.Version, st.checks...),
		AuthMiddleware: middleware.NewAuthMiddleware(cfg.JWTPublicKey, blacklist),
		Metrics:        collector.Handler(),
		Socket:         hub,
		CORSOrigins:    cfg.Server.CORSOrigins,
		Logger:         &logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Info().
			Str("port", cfg.Server.Port).
			Str("backend", cfg.Store.Backend).
			Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("could not start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during server shutdown")
	}
	cancel()

	logger.Info().Msg("shutdown complete")
}

func openStores(ctx context.Context, cfg *config.Config) (stores, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			return stores{}, nil, err
		}
		if err := repository.Migrate(ctx, db); err != nil {
			db.Close()
			return stores{}, nil, err
		}
		return stores{
			sessions: repository.NewPostgresSessionStore(db),
			users:    repository.NewPostgresUserRepository(db),
			invoices: repository.NewPostgresInvoiceRepository(db),
			checks:   []handler.Checker{handler.DatabaseCheck(db)},
			relayed:  true,
		}, func() { db.Close() }, nil

	case config.BackendRemote:
		client := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Timeout, remote.WithToken(cfg.Remote.Token))
		return stores{
			sessions: client,
			users:    repository.NewMemoryUserRepository(),
			invoices: repository.NewMemoryInvoiceRepository(),
			checks: []handler.Checker{{
				Name:    "vehicle-service",
				Check:   client.Ping,
				Message: "Cannot reach the vehicle service",
			}},
		}, func() {}, nil

	default:
		return stores{
			sessions: repository.NewMemorySessionStore(),
			users:    repository.NewMemoryUserRepository(),
			invoices: repository.NewMemoryInvoiceRepository(),
		}, func() {}, nil
	}
}

// openBlacklist uses Redis when an address is configured. Without one,
// revoked tokens are only remembered by this process.
func openBlacklist(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (ports.TokenBlacklist, *handler.Checker, func()) {
	if cfg.Redis.Address == "" {
		logger.Warn().Msg("REDIS_ADDRESS not set, using in-memory token blacklist")
		return repository.NewMemoryTokenBlacklist(), nil, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis not reachable yet, circuit breaker will guard calls")
	} else {
		logger.Info().Msg("connected to Redis")
	}

	check := handler.RedisCheck(client)
	return repository.NewRedisTokenBlacklist(client), &check, func() { client.Close() }
}

func allowOrigins(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed["*"] || allowed[origin]
	}
}
