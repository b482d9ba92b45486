package channel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffGrowsAndCaps(t *testing.T) {
	r := newReconnector(time.Second, 4*time.Second, 0)

	first := r.nextDelay()
	assert.GreaterOrEqual(t, first, time.Second)
	assert.Less(t, first, 2*time.Second)

	second := r.nextDelay()
	assert.GreaterOrEqual(t, second, 2*time.Second)

	for i := 0; i < 5; i++ {
		r.nextDelay()
	}
	assert.Equal(t, 4*time.Second, r.nextDelay())
}

func TestBackoffAttemptBudget(t *testing.T) {
	r := newReconnector(time.Second, time.Minute, 2)
	assert.True(t, r.shouldReconnect())
	r.nextDelay()
	assert.True(t, r.shouldReconnect())
	r.nextDelay()
	assert.False(t, r.shouldReconnect())
}

func TestBackoffUnlimitedWhenZero(t *testing.T) {
	r := newReconnector(time.Second, time.Minute, 0)
	for i := 0; i < 100; i++ {
		r.nextDelay()
	}
	assert.True(t, r.shouldReconnect())
}

func TestBackoffResetsAfterStableConnection(t *testing.T) {
	r := newReconnector(time.Second, time.Minute, 5)
	r.nextDelay()
	r.nextDelay()
	r.nextDelay()

	r.connectedAt = time.Now().Add(-2 * time.Minute)

	delay := r.nextDelay()
	assert.Less(t, delay, 2*time.Second)
	assert.Equal(t, 1, r.attempt)
}

func TestBackoffReset(t *testing.T) {
	r := newReconnector(time.Second, time.Minute, 5)
	r.nextDelay()
	r.markConnected()
	r.reset()
	assert.Equal(t, 0, r.attempt)
	assert.True(t, r.connectedAt.IsZero())
}
