// Package stats aggregates step-timing observations for the exit report
// and the dashboard.
package stats

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"
)

// StepStats accumulates step round-trip durations. Percentiles come from a
// t-digest, so memory stays bounded no matter how many steps a run takes.
type StepStats struct {
	mu     sync.Mutex
	digest *tdigest.TDigest
	count  int64
	total  time.Duration
	max    time.Duration
}

func NewStepStats() *StepStats {
	return &StepStats{
		digest: tdigest.NewWithCompression(100),
	}
}

// Record adds one step duration.
func (s *StepStats) Record(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.digest.Add(float64(d.Nanoseconds()), 1)
	s.count++
	s.total += d
	if d > s.max {
		s.max = d
	}
}

// Snapshot is a point-in-time view of the step-timing distribution.
type Snapshot struct {
	Count int64
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
	Max   time.Duration
}

// Snapshot computes the current distribution. Safe to call while recording.
func (s *StepStats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{Count: s.count, Max: s.max}
	if s.count == 0 {
		return snap
	}
	snap.Mean = s.total / time.Duration(s.count)
	snap.P50 = time.Duration(s.digest.Quantile(0.50))
	snap.P95 = time.Duration(s.digest.Quantile(0.95))
	snap.P99 = time.Duration(s.digest.Quantile(0.99))
	return snap
}
