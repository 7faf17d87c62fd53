package config

import (
	"time"

	"github.com/sony/gobreaker"

	"github.com/parksys/parking-service/internal/logging"
)

// Breaker names shared by the adapters.
const (
	BreakerRedis          = "Redis-Auth"
	BreakerPostgres       = "PostgreSQL"
	BreakerRelayPostgres  = "Relay-PostgreSQL"
	BreakerRabbitMQ       = "RabbitMQ"
	BreakerVehicleService = "Vehicle-Service"
)

// NewCircuitBreaker creates a circuit breaker with standard settings.
// The name parameter uniquely identifies the circuit breaker instance.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(breakerSettings(name))
}

func breakerSettings(name string) gobreaker.Settings {
	var timeout time.Duration

	// Aligned with the 5s health check timeout.
	switch name {
	case BreakerRedis:
		timeout = 5 * time.Second
	case BreakerPostgres, BreakerRelayPostgres, BreakerVehicleService:
		timeout = 10 * time.Second
	default:
		timeout = 30 * time.Second
	}

	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Default().Error().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}
}
