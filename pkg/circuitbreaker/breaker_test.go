package circuitbreaker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuchat/backend/pkg/circuitbreaker"
)

func TestExecute_PassesThroughWhileClosed(t *testing.T) {
	cb := circuitbreaker.New("test", circuitbreaker.Config{})

	err := cb.Execute(context.Background(), func() error { return nil })

	require.NoError(t, err)
	assert.Equal(t, circuitbreaker.StateClosed, cb.State())
}

func TestExecute_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := circuitbreaker.New("test", circuitbreaker.Config{
		FailureThreshold: 3,
		Timeout:          time.Minute,
	})
	boom := errors.New("upstream down")

	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), func() error { return boom })
		assert.ErrorIs(t, err, boom)
	}

	assert.Equal(t, circuitbreaker.StateOpen, cb.State())

	err := cb.Execute(context.Background(), func() error {
		t.Fatal("open breaker must not invoke the operation")
		return nil
	})
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
}

func TestExecute_SuccessResetsFailureStreak(t *testing.T) {
	cb := circuitbreaker.New("test", circuitbreaker.Config{
		FailureThreshold: 3,
		Timeout:          time.Minute,
	})
	boom := errors.New("upstream down")

	cb.Execute(context.Background(), func() error { return boom })
	cb.Execute(context.Background(), func() error { return boom })
	cb.Execute(context.Background(), func() error { return nil })
	cb.Execute(context.Background(), func() error { return boom })
	cb.Execute(context.Background(), func() error { return boom })

	assert.Equal(t, circuitbreaker.StateClosed, cb.State())
}

func TestExecute_HalfOpenProbeClosesBreaker(t *testing.T) {
	cb := circuitbreaker.New("test", circuitbreaker.Config{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          20 * time.Millisecond,
	})

	err := cb.Execute(context.Background(), func() error { return errors.New("down") })
	require.Error(t, err)
	require.Equal(t, circuitbreaker.StateOpen, cb.State())

	time.Sleep(30 * time.Millisecond)
	require.Equal(t, circuitbreaker.StateHalfOpen, cb.State())

	err = cb.Execute(context.Background(), func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, circuitbreaker.StateClosed, cb.State())
}

func TestExecute_HalfOpenFailureReopens(t *testing.T) {
	cb := circuitbreaker.New("test", circuitbreaker.Config{
		FailureThreshold: 1,
		Timeout:          20 * time.Millisecond,
	})

	cb.Execute(context.Background(), func() error { return errors.New("down") })
	time.Sleep(30 * time.Millisecond)

	cb.Execute(context.Background(), func() error { return errors.New("still down") })

	assert.Equal(t, circuitbreaker.StateOpen, cb.State())
}
