package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/wms-platform/reservation-service/pkg/logging"
)

func TestCircuitBreaker_TripsOnConsecutiveFailures(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("kafka")
	cfg.FailureThreshold = 3
	cfg.Timeout = time.Hour
	cb := NewCircuitBreaker(cfg, logging.NewNop(), nil)

	boom := errors.New("broker down")
	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	called := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_RecoversAfterTimeout(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("kafka")
	cfg.FailureThreshold = 1
	cfg.Timeout = 10 * time.Millisecond
	cb := NewCircuitBreaker(cfg, logging.NewNop(), nil)

	_ = cb.Execute(context.Background(), func(context.Context) error { return errors.New("fail") })
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	assert.Eventually(t, func() bool { return cb.State() == gobreaker.StateHalfOpen }, time.Second, 5*time.Millisecond)
	assert.NoError(t, cb.Execute(context.Background(), func(context.Context) error { return nil }))
	assert.Equal(t, "kafka", cb.Name())
}
