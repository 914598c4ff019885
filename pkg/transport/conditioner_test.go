package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/irctrakz/rudp/pkg/core"
)

func TestSimulatedLinkZeroValuePassesThrough(t *testing.T) {
	var l SimulatedLink
	for i := 0; i < 100; i++ {
		delay, ok := l.Intercept(core.Outbound, 100)
		assert.True(t, ok)
		assert.Equal(t, time.Duration(0), delay)
	}
}

func TestSimulatedLinkDropsEverythingAtRateOne(t *testing.T) {
	l := NewSimulatedLink(1.0, 0, 0, 42)
	for i := 0; i < 100; i++ {
		_, ok := l.Intercept(core.Inbound, 100)
		assert.False(t, ok)
	}
}

func TestSimulatedLinkDropRateRoughlyHolds(t *testing.T) {
	l := NewSimulatedLink(0.25, 0, 0, 42)
	dropped := 0
	for i := 0; i < 10000; i++ {
		if _, ok := l.Intercept(core.Outbound, 100); !ok {
			dropped++
		}
	}
	assert.InDelta(t, 2500, dropped, 300)
}

func TestSimulatedLinkDelayBounds(t *testing.T) {
	l := NewSimulatedLink(0, 20*time.Millisecond, 10*time.Millisecond, 7)
	for i := 0; i < 100; i++ {
		delay, ok := l.Intercept(core.Outbound, 100)
		assert.True(t, ok)
		assert.GreaterOrEqual(t, delay, 20*time.Millisecond)
		assert.Less(t, delay, 30*time.Millisecond)
	}
}

func TestSimulatedLinkDeterministicWithSeed(t *testing.T) {
	a := NewSimulatedLink(0.5, time.Millisecond, time.Millisecond, 99)
	b := NewSimulatedLink(0.5, time.Millisecond, time.Millisecond, 99)
	for i := 0; i < 200; i++ {
		delayA, okA := a.Intercept(core.Outbound, 100)
		delayB, okB := b.Intercept(core.Outbound, 100)
		assert.Equal(t, okA, okB)
		assert.Equal(t, delayA, delayB)
	}
}
