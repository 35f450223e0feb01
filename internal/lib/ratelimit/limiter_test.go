package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_BurstThenDeny(t *testing.T) {
	l := New(1, 3, time.Minute)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := New(1, 1, time.Minute)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestLimiter_EvictsIdleKeys(t *testing.T) {
	l := New(1, 1, time.Minute)
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }

	l.Allow("10.0.0.1")
	l.Allow("10.0.0.2")
	assert.Equal(t, 2, l.Len())

	current = current.Add(2 * time.Minute)
	l.Allow("10.0.0.3")
	assert.Equal(t, 1, l.Len())
}

func TestLimiter_ConcurrentAccess(t *testing.T) {
	l := New(1000, 1000, time.Minute)
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				l.Allow("shared")
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Equal(t, 1, l.Len())
}
