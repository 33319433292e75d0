package utils

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerPhases(t *testing.T) {
	clock := NewMockClock(time.Now())
	timer := NewTimer("weave", WithClock(clock))

	pt := timer.Start("containers")
	clock.Advance(100 * time.Millisecond)
	pt.Stop()

	pt = timer.Start("targets")
	clock.Advance(200 * time.Millisecond)
	assert.Equal(t, 200*time.Millisecond, pt.Stop())

	phases := timer.Phases()
	require.Len(t, phases, 2)
	assert.Equal(t, "containers", phases[0].Name)
	assert.Equal(t, 100*time.Millisecond, phases[0].Duration)
	assert.Equal(t, 300*time.Millisecond, timer.Total())
}

func TestTimerStopIdempotent(t *testing.T) {
	clock := NewMockClock(time.Now())
	timer := NewTimer("weave", WithClock(clock))

	pt := timer.Start("p")
	clock.Advance(time.Second)
	first := pt.Stop()
	clock.Advance(time.Second)
	assert.Equal(t, first, pt.Stop())
}

func TestTimerDisabled(t *testing.T) {
	timer := NewTimer("weave", WithEnabled(false))
	assert.Equal(t, time.Duration(0), timer.Start("p").Stop())
	assert.Empty(t, timer.Phases())
}

func TestTimerTimeFuncWithError(t *testing.T) {
	timer := NewTimer("weave")
	_, err := timer.TimeFuncWithError("fail", func() error { return errors.New("boom") })
	assert.EqualError(t, err, "boom")
	assert.Len(t, timer.Phases(), 1)
}

func TestTimerPrintSummary(t *testing.T) {
	buf := &bytes.Buffer{}
	clock := NewMockClock(time.Now())
	timer := NewTimer("weave", WithClock(clock), WithLogger(NewDefaultLogger(LevelInfo, buf)))

	pt := timer.Start("metadata")
	clock.Advance(5 * time.Millisecond)
	pt.Stop()
	timer.PrintSummary()

	assert.Contains(t, buf.String(), "weave phase 1 - metadata: 5ms")
	assert.Contains(t, buf.String(), "weave total: 5ms")
}

func TestMockClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	clock.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), clock.Now())
	assert.Equal(t, time.Hour, clock.Since(start))

	var _ Clock = NewRealClock()
	assert.False(t, NewRealClock().Now().IsZero())
}
