package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterRejectsEleventhInWindow(t *testing.T) {
	l := New(10, time.Second)

	rejected := 0
	for i := 0; i < 11; i++ {
		if !l.Allow() {
			rejected++
		}
	}

	assert.Equal(t, 1, rejected)
}

func TestLimiterRefillsAfterWindow(t *testing.T) {
	l := New(2, 50*time.Millisecond)

	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())

	time.Sleep(60 * time.Millisecond)

	assert.True(t, l.Allow())
}

func TestLimiterDefaults(t *testing.T) {
	l := New(0, 0)

	for i := 0; i < DefaultLimit; i++ {
		assert.True(t, l.Allow())
	}
	assert.False(t, l.Allow())
}
