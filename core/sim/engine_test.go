package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineOrdering(t *testing.T) {
	e := NewEngine()
	var got []string

	e.After(10, func() { got = append(got, "b") })
	e.After(5, func() { got = append(got, "a") })
	e.After(10, func() { got = append(got, "c") })
	e.Run(100)

	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, int64(100), e.Now())
}

func TestEngineSameInstantFIFO(t *testing.T) {
	e := NewEngine()
	var got []int
	for i := 0; i < 8; i++ {
		i := i
		e.After(42, func() { got = append(got, i) })
	}
	e.Run(42)
	require.Len(t, got, 8)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestEngineZeroDelayStepBack(t *testing.T) {
	e := NewEngine()
	var got []string
	e.After(0, func() {
		got = append(got, "first")
		// Scheduled while t=0 events are firing: runs after the
		// remaining t=0 events of this batch.
		e.After(0, func() { got = append(got, "deferred") })
	})
	e.After(0, func() { got = append(got, "second") })
	e.Run(0)
	assert.Equal(t, []string{"first", "second", "deferred"}, got)
}

func TestEngineStop(t *testing.T) {
	e := NewEngine()
	fired := false
	timer := e.After(7, func() { fired = true })
	require.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports false")
	e.Run(100)
	assert.False(t, fired)
	assert.True(t, timer.Stopped())
}

func TestEngineHorizon(t *testing.T) {
	e := NewEngine()
	fired := 0
	e.After(50, func() { fired++ })
	e.After(51, func() { fired++ })
	e.Run(50)
	assert.Equal(t, 1, fired, "events at the horizon fire, later ones do not")
	assert.Equal(t, int64(50), e.Now())
	assert.Equal(t, 1, e.Pending())
	e.Run(60)
	assert.Equal(t, 2, fired)
}

func TestEngineNegativeDelayPanics(t *testing.T) {
	e := NewEngine()
	assert.Panics(t, func() { e.After(-1, func() {}) })
	assert.Panics(t, func() { e.After(1, nil) })
}
