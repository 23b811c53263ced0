package engine

import (
	"context"
	"sort"
	"time"
)

// FrameInterval is the nominal frame period of the virtual scheduler
const FrameInterval = 16 * time.Millisecond

// Handle identifies a scheduled callback. The zero Handle is never issued.
type Handle uint64

// FrameFunc receives the scheduler time of the frame
type FrameFunc func(now time.Duration)

// Scheduler is the host-provided frame and timer primitive the engine
// suspends on. Callbacks must run one at a time on a single goroutine.
type Scheduler interface {
	// RequestFrame runs fn once on the next animation frame
	RequestFrame(fn FrameFunc) Handle
	// After runs fn once after d has elapsed
	After(d time.Duration, fn func()) Handle
	// Cancel drops a pending callback; unknown handles are ignored
	Cancel(h Handle)
}

type frameEntry struct {
	id Handle
	fn FrameFunc
}

type timerEntry struct {
	id  Handle
	due time.Duration
	fn  func()
}

// VirtualScheduler is a deterministic Scheduler driven by explicit stepping.
// Frames fire on FrameInterval boundaries; timers fire at their due time,
// before a frame that is due at the same instant.
type VirtualScheduler struct {
	now      time.Duration
	nextID   Handle
	frames   []frameEntry
	frameDue time.Duration
	timers   []timerEntry
	steps    int
}

// NewVirtualScheduler creates a scheduler starting at time zero
func NewVirtualScheduler() *VirtualScheduler {
	return &VirtualScheduler{}
}

// Now returns the current virtual time
func (v *VirtualScheduler) Now() time.Duration {
	return v.now
}

// Steps returns how many events have been dispatched
func (v *VirtualScheduler) Steps() int {
	return v.steps
}

// RequestFrame implements Scheduler
func (v *VirtualScheduler) RequestFrame(fn FrameFunc) Handle {
	v.nextID++
	if len(v.frames) == 0 {
		v.frameDue = (v.now/FrameInterval + 1) * FrameInterval
	}
	v.frames = append(v.frames, frameEntry{id: v.nextID, fn: fn})
	return v.nextID
}

// After implements Scheduler
func (v *VirtualScheduler) After(d time.Duration, fn func()) Handle {
	v.nextID++
	v.timers = append(v.timers, timerEntry{id: v.nextID, due: v.now + d, fn: fn})
	sort.SliceStable(v.timers, func(i, j int) bool {
		return v.timers[i].due < v.timers[j].due
	})
	return v.nextID
}

// Cancel implements Scheduler
func (v *VirtualScheduler) Cancel(h Handle) {
	if h == 0 {
		return
	}
	for i, f := range v.frames {
		if f.id == h {
			v.frames = append(v.frames[:i], v.frames[i+1:]...)
			return
		}
	}
	for i, t := range v.timers {
		if t.id == h {
			v.timers = append(v.timers[:i], v.timers[i+1:]...)
			return
		}
	}
}

// Pending reports whether any frame or timer is waiting
func (v *VirtualScheduler) Pending() bool {
	return len(v.frames) > 0 || len(v.timers) > 0
}

// NextEventTime returns when the next Step will dispatch
func (v *VirtualScheduler) NextEventTime() (time.Duration, bool) {
	if !v.Pending() {
		return 0, false
	}
	if len(v.timers) > 0 && (len(v.frames) == 0 || v.timers[0].due <= v.frameDue) {
		return v.timers[0].due, true
	}
	return v.frameDue, true
}

// Step advances virtual time to the next event and dispatches it. All frame
// callbacks requested before the step run together in one frame.
func (v *VirtualScheduler) Step() bool {
	at, ok := v.NextEventTime()
	if !ok {
		return false
	}
	v.steps++

	if len(v.timers) > 0 && v.timers[0].due == at {
		timer := v.timers[0]
		v.timers = v.timers[1:]
		if at > v.now {
			v.now = at
		}
		timer.fn()
		return true
	}

	v.now = at
	frames := v.frames
	v.frames = nil
	for _, f := range frames {
		f.fn(at)
	}
	return true
}

// RunUntilIdle steps until nothing is pending. A positive limit caps the
// number of steps; it returns false when the cap was hit.
func (v *VirtualScheduler) RunUntilIdle(limit int) bool {
	for n := 0; v.Pending(); n++ {
		if limit > 0 && n >= limit {
			return false
		}
		v.Step()
	}
	return true
}

// RunRealtime steps like RunUntilIdle but sleeps so virtual time tracks the
// wall clock. It returns ctx.Err() when cancelled.
func (v *VirtualScheduler) RunRealtime(ctx context.Context) error {
	started := time.Now()
	base := v.now
	for v.Pending() {
		at, _ := v.NextEventTime()
		wait := (at - base) - time.Since(started)
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		v.Step()
	}
	return nil
}
