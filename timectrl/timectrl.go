// Package timectrl drives the per-frame tick.
package timectrl

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval is the frame interval used when none is given (60 Hz).
const DefaultInterval = time.Second / 60

// Mode describes how the FrameClock paces frames when started.
type Mode int

const (
	// RealTime waits for a ticker between frames.
	RealTime Mode = iota
	// Accelerated emits frames as fast as listeners consume them, still
	// stepping the clock by Interval.
	Accelerated
)

// Frame is handed to listeners once per tick.
type Frame struct {
	Index int
	Time  time.Time
	Delta time.Duration
}

// FrameClock counts frames and notifies listeners on every tick.
type FrameClock struct {
	mu       sync.RWMutex
	start    time.Time
	interval time.Duration
	mode     Mode

	now    time.Time
	frames int

	listeners []func(Frame)
}

// Option customises a FrameClock.
type Option func(*FrameClock)

// WithMode selects real-time or accelerated pacing.
func WithMode(m Mode) Option {
	return func(fc *FrameClock) { fc.mode = m }
}

// NewFrameClock constructs a clock at start. A non-positive interval
// falls back to DefaultInterval.
func NewFrameClock(start time.Time, interval time.Duration, opts ...Option) *FrameClock {
	if interval <= 0 {
		interval = DefaultInterval
	}
	fc := &FrameClock{
		start:    start,
		interval: interval,
		now:      start,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(fc)
		}
	}
	return fc
}

// Now returns the clock's current time.
func (fc *FrameClock) Now() time.Time {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return fc.now
}

// SetTime moves the clock without emitting a frame.
func (fc *FrameClock) SetTime(t time.Time) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.now = t
}

// Frames returns the number of frames emitted so far.
func (fc *FrameClock) Frames() int {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return fc.frames
}

func (fc *FrameClock) Interval() time.Duration { return fc.interval }

// AddListener registers a callback invoked on every frame. Listeners run
// on the goroutine that emits the frame, in registration order.
func (fc *FrameClock) AddListener(fn func(Frame)) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.listeners = append(fc.listeners, fn)
}

// Step emits exactly one frame synchronously and returns it.
func (fc *FrameClock) Step() Frame {
	fc.mu.Lock()
	fc.now = fc.now.Add(fc.interval)
	f := Frame{Index: fc.frames, Time: fc.now, Delta: fc.interval}
	fc.frames++
	listeners := append([]func(Frame)(nil), fc.listeners...)
	fc.mu.Unlock()

	for _, fn := range listeners {
		fn(f)
	}
	return f
}

// Start emits frames in a separate goroutine until duration of clock time
// has elapsed (zero means unbounded) or ctx is cancelled. It returns a
// channel that is closed when the loop exits.
func (fc *FrameClock) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		var tick <-chan time.Time
		if fc.mode == RealTime {
			ticker := time.NewTicker(fc.interval)
			defer ticker.Stop()
			tick = ticker.C
		}

		elapsed := time.Duration(0)
		for {
			if duration > 0 && elapsed >= duration {
				return
			}
			if tick != nil {
				select {
				case <-ctx.Done():
					return
				case <-tick:
				}
			} else if ctx.Err() != nil {
				return
			}
			fc.Step()
			elapsed += fc.interval
		}
	}()
	return done
}
