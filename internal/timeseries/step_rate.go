// Package timeseries tracks cumulative step counts and computes rolling
// step rates over fixed windows.
//
// Thread-safe: AddSteps() uses an atomic counter, Rates() takes a read
// lock. Memory is bounded by the ring buffer (~60 samples at 1 sample/sec).
package timeseries

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// ringBufferSize is the number of samples retained (one minute at
	// 1 sample/sec, enough for the widest window).
	ringBufferSize = 60

	window1s  = 1 * time.Second
	window10s = 10 * time.Second
	window60s = 60 * time.Second
)

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// sample is a point-in-time snapshot of the cumulative step count.
type sample struct {
	timestamp time.Time
	steps     int64
}

// StepRateTracker tracks cumulative executed steps and computes rolling
// steps-per-second averages.
//
// Usage:
//
//	tracker := NewStepRateTracker()
//	tracker.AddSteps(1)      // per executed step, lock-free
//	tracker.RecordSample()   // periodically, e.g. every 1s via ticker
//	rates := tracker.Rates() // for the dashboard and the step-rate gauge
type StepRateTracker struct {
	totalSteps atomic.Int64

	mu       sync.RWMutex
	samples  []sample
	writeIdx int

	startTime time.Time
	clock     Clock
}

// StepRates contains computed rolling rates at a point in time.
type StepRates struct {
	TotalSteps int64

	// Rolling averages in steps per second.
	Avg1s  float64
	Avg10s float64
	Avg60s float64

	// AvgOverall is the rate since tracking started.
	AvgOverall float64
}

// NewStepRateTracker creates a tracker with the real clock.
func NewStepRateTracker() *StepRateTracker {
	return NewStepRateTrackerWithClock(realClock{})
}

// NewStepRateTrackerWithClock creates a tracker with a custom clock for
// testing.
func NewStepRateTrackerWithClock(clock Clock) *StepRateTracker {
	now := clock.Now()
	t := &StepRateTracker{
		samples:   make([]sample, 0, ringBufferSize),
		startTime: now,
		clock:     clock,
	}
	t.samples = append(t.samples, sample{timestamp: now})
	return t
}

// AddSteps adds executed steps to the cumulative total. Lock-free.
func (t *StepRateTracker) AddSteps(n int64) {
	if n > 0 {
		t.totalSteps.Add(n)
	}
}

// RecordSample records the current cumulative count with a timestamp. Call
// periodically, e.g. every second via ticker.
func (t *StepRateTracker) RecordSample() {
	now := t.clock.Now()
	current := t.totalSteps.Load()

	t.mu.Lock()
	defer t.mu.Unlock()

	s := sample{timestamp: now, steps: current}
	if len(t.samples) < ringBufferSize {
		t.samples = append(t.samples, s)
	} else {
		t.samples[t.writeIdx] = s
		t.writeIdx = (t.writeIdx + 1) % ringBufferSize
	}
}

// Rates computes the current step rates. Always returns usable data from
// whatever history exists.
func (t *StepRateTracker) Rates() StepRates {
	now := t.clock.Now()
	current := t.totalSteps.Load()

	t.mu.RLock()
	defer t.mu.RUnlock()

	rates := StepRates{TotalSteps: current}

	elapsed := now.Sub(t.startTime).Seconds()
	if elapsed > 0 {
		rates.AvgOverall = float64(current) / elapsed
	}

	rates.Avg1s = t.rateOverWindow(now, current, window1s)
	rates.Avg10s = t.rateOverWindow(now, current, window10s)
	rates.Avg60s = t.rateOverWindow(now, current, window60s)

	return rates
}

// rateOverWindow computes steps/sec over the window. Caller holds mu.
func (t *StepRateTracker) rateOverWindow(now time.Time, current int64, window time.Duration) float64 {
	if len(t.samples) == 0 {
		return 0
	}

	targetTime := now.Add(-window)

	// Pick the sample closest to, but not after, the window start.
	var best *sample
	var bestDiff time.Duration = -1
	for i := range t.samples {
		s := &t.samples[i]
		if s.timestamp.After(targetTime) {
			continue
		}
		diff := targetTime.Sub(s.timestamp)
		if bestDiff < 0 || diff < bestDiff {
			best = s
			bestDiff = diff
		}
	}
	if best == nil {
		best = t.oldestSample()
	}
	if best == nil {
		return 0
	}

	elapsed := now.Sub(best.timestamp).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(current-best.steps) / elapsed
}

// oldestSample returns the oldest retained sample. Caller holds mu.
func (t *StepRateTracker) oldestSample() *sample {
	if len(t.samples) == 0 {
		return nil
	}
	if len(t.samples) < ringBufferSize {
		return &t.samples[0]
	}
	return &t.samples[t.writeIdx]
}

// Reset clears all data and restarts tracking.
func (t *StepRateTracker) Reset() {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalSteps.Store(0)
	t.samples = t.samples[:0]
	t.samples = append(t.samples, sample{timestamp: now})
	t.writeIdx = 0
	t.startTime = now
}

// SampleCount returns the number of retained samples. Useful for testing.
func (t *StepRateTracker) SampleCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.samples)
}
