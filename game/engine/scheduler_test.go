package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVirtualSchedulerOrdering(t *testing.T) {
	v := NewVirtualScheduler()
	var events []string

	v.After(40*time.Millisecond, func() { events = append(events, "timer40") })
	v.After(10*time.Millisecond, func() { events = append(events, "timer10") })
	v.RequestFrame(func(now time.Duration) {
		events = append(events, "frame")
		assert.Equal(t, FrameInterval, now)
	})

	require.True(t, v.RunUntilIdle(0))
	assert.Equal(t, []string{"timer10", "frame", "timer40"}, events)
	assert.Equal(t, 40*time.Millisecond, v.Now())
	assert.Equal(t, 3, v.Steps())
}

func TestVirtualSchedulerTimerBeatsFrameAtSameInstant(t *testing.T) {
	v := NewVirtualScheduler()
	var events []string

	v.RequestFrame(func(time.Duration) { events = append(events, "frame") })
	v.After(FrameInterval, func() { events = append(events, "timer") })

	v.RunUntilIdle(0)
	assert.Equal(t, []string{"timer", "frame"}, events)
}

func TestVirtualSchedulerBatchesFrames(t *testing.T) {
	v := NewVirtualScheduler()
	calls := 0
	for i := 0; i < 3; i++ {
		v.RequestFrame(func(time.Duration) { calls++ })
	}

	assert.True(t, v.Step())
	assert.Equal(t, 3, calls)
	assert.False(t, v.Pending())
	assert.False(t, v.Step())
}

func TestVirtualSchedulerCancel(t *testing.T) {
	v := NewVirtualScheduler()
	fired := false

	h := v.After(time.Second, func() { fired = true })
	f := v.RequestFrame(func(time.Duration) { fired = true })
	v.Cancel(h)
	v.Cancel(f)
	v.Cancel(0)
	v.Cancel(Handle(999))

	assert.False(t, v.Pending())
	v.RunUntilIdle(0)
	assert.False(t, fired)
}

func TestVirtualSchedulerLimit(t *testing.T) {
	v := NewVirtualScheduler()
	var loop FrameFunc
	loop = func(time.Duration) { v.RequestFrame(loop) }
	v.RequestFrame(loop)

	assert.False(t, v.RunUntilIdle(10))
	assert.Equal(t, 10, v.Steps())
}

func TestVirtualSchedulerRealtime(t *testing.T) {
	v := NewVirtualScheduler()
	fired := 0
	v.After(5*time.Millisecond, func() { fired++ })
	v.After(10*time.Millisecond, func() { fired++ })

	start := time.Now()
	require.NoError(t, v.RunRealtime(context.Background()))
	assert.Equal(t, 2, fired)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestVirtualSchedulerRealtimeCancelled(t *testing.T) {
	v := NewVirtualScheduler()
	v.After(time.Hour, func() {})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, v.RunRealtime(ctx), context.Canceled)
	assert.True(t, v.Pending())
}
