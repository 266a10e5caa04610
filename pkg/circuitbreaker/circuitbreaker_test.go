package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errBroker = errors.New("broker unavailable")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(maxFailures int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	cb := New("audit", maxFailures, 30*time.Second, time.Minute)
	cb.now = clock.now
	return cb, clock
}

func fail() error    { return errBroker }
func succeed() error { return nil }

func TestOpensAfterMaxFailures(t *testing.T) {
	cb, _ := newTestBreaker(2)

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, cb.Execute(fail), errBroker)
		assert.Equal(t, StateClosed, cb.State())
	}
	assert.ErrorIs(t, cb.Execute(fail), errBroker)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestHalfOpenProbe(t *testing.T) {
	cb, clock := newTestBreaker(0)

	assert.Error(t, cb.Execute(fail))
	assert.Equal(t, StateOpen, cb.State())

	clock.advance(31 * time.Second)
	assert.NoError(t, cb.Execute(succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestFailedProbeReopens(t *testing.T) {
	cb, clock := newTestBreaker(0)

	assert.Error(t, cb.Execute(fail))
	clock.advance(31 * time.Second)
	assert.ErrorIs(t, cb.Execute(fail), errBroker)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(succeed), ErrOpen)
}

func TestFailuresOutsideWindowAreForgotten(t *testing.T) {
	cb, clock := newTestBreaker(1)

	assert.Error(t, cb.Execute(fail))
	clock.advance(2 * time.Minute)
	assert.Error(t, cb.Execute(fail))
	assert.Equal(t, StateClosed, cb.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}
