package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"

	"github.com/nastyazhadan/spot-order-trigger/shared/config"
)

var errBoom = errors.New("boom")

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	cb := New[int]("test", config.CircuitBreakerConfig{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		MaxFailures: 2,
	}, nil)

	for range 2 {
		_, err := cb.Execute(func() (int, error) { return 0, errBoom })
		assert.ErrorIs(t, err, errBoom)
	}

	_, err := cb.Execute(func() (int, error) { return 1, nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, gobreaker.StateOpen, cb.State())
}

func TestBreakerIgnoresMatchedErrors(t *testing.T) {
	errClient := errors.New("client error")
	cb := New[int]("test", config.CircuitBreakerConfig{MaxRequests: 1, MaxFailures: 1, Timeout: time.Minute}, func(err error) bool {
		return errors.Is(err, errClient)
	})

	for range 3 {
		_, err := cb.Execute(func() (int, error) { return 0, errClient })
		assert.ErrorIs(t, err, errClient)
	}

	assert.Equal(t, gobreaker.StateClosed, cb.State())
}
