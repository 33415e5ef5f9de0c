package config

import (
	"time"

	"github.com/sony/gobreaker"

	"github.com/AchilleasB/inrem/pulse-service/internal/logging"
)

const (
	BreakerRelayPostgres = "Relay-PostgreSQL"
	BreakerRedis         = "Redis-Invitations"
	BreakerRabbitMQ      = "RabbitMQ-Publisher"
	BreakerFCM           = "FCM"
	BreakerSMTP          = "SMTP"
)

// NewCircuitBreaker creates a circuit breaker with standard settings.
// The name parameter uniquely identifies the circuit breaker instance.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	var timeout time.Duration

	// Open-state timeouts line up with the per-call timeouts of each dependency.
	switch name {
	case BreakerRedis:
		timeout = time.Second * 5
	case BreakerRelayPostgres, BreakerFCM:
		timeout = time.Second * 10
	default:
		timeout = time.Second * 30
	}

	log := logging.WithComponent("circuit-breaker")
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Second * 10,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Open circuit after 3 consecutive failures
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Error().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
}
