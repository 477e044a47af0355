package breaker

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/nastyazhadan/spot-order-trigger/shared/config"
	zapLogger "github.com/nastyazhadan/spot-order-trigger/shared/interceptors/logger/zap"
)

// New builds a circuit breaker that trips after cfg.MaxFailures consecutive
// failures. Errors matched by ignore are not counted as failures.
func New[T any](name string, cfg config.CircuitBreakerConfig, ignore func(error) bool) *gobreaker.CircuitBreaker[T] {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zapLogger.Warn(context.Background(), "circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	if ignore != nil {
		settings.IsSuccessful = func(err error) bool {
			return err == nil || ignore(err)
		}
	}

	return gobreaker.NewCircuitBreaker[T](settings)
}

func DefaultConfig() config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		MaxFailures: 3,
	}
}
