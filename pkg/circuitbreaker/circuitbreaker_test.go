package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	cb := New(Settings{MaxFailures: 3, Cooldown: time.Minute})
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		err := cb.Execute(func() error { return boom })
		require.ErrorIs(t, err, boom)
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called, "open breaker must not invoke the call")
}

func TestBreakerRecoversAfterCooldown(t *testing.T) {
	cb := New(Settings{MaxFailures: 1, Cooldown: 10 * time.Millisecond})

	require.Error(t, cb.Execute(func() error { return errors.New("boom") }))
	require.ErrorIs(t, cb.Execute(func() error { return nil }), ErrOpen)

	time.Sleep(20 * time.Millisecond)
	assert.NoError(t, cb.Execute(func() error { return nil }), "probe succeeds after cooldown")
	assert.NoError(t, cb.Execute(func() error { return nil }), "breaker closed again")
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	cb := New(Settings{MaxFailures: 1, Cooldown: 10 * time.Millisecond})

	require.Error(t, cb.Execute(func() error { return errors.New("boom") }))
	time.Sleep(20 * time.Millisecond)
	require.Error(t, cb.Execute(func() error { return errors.New("still down") }))

	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrOpen)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := New(Settings{MaxFailures: 2, Cooldown: time.Minute})

	require.Error(t, cb.Execute(func() error { return errors.New("boom") }))
	require.NoError(t, cb.Execute(func() error { return nil }))
	require.Error(t, cb.Execute(func() error { return errors.New("boom") }))

	assert.NoError(t, cb.Execute(func() error { return nil }), "single failures never trip the breaker")
}
