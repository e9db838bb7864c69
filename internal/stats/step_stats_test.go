package stats

import (
	"sync"
	"testing"
	"time"
)

func TestStepStatsEmpty(t *testing.T) {
	s := NewStepStats()
	snap := s.Snapshot()
	if snap.Count != 0 || snap.Mean != 0 || snap.P99 != 0 || snap.Max != 0 {
		t.Errorf("empty snapshot = %+v, want zeros", snap)
	}
}

func TestStepStatsDistribution(t *testing.T) {
	s := NewStepStats()
	// 1ms..100ms, uniform.
	for i := 1; i <= 100; i++ {
		s.Record(time.Duration(i) * time.Millisecond)
	}

	snap := s.Snapshot()
	if snap.Count != 100 {
		t.Fatalf("Count = %d, want 100", snap.Count)
	}
	if snap.Max != 100*time.Millisecond {
		t.Errorf("Max = %v, want 100ms", snap.Max)
	}
	if want := 50500 * time.Microsecond; snap.Mean != want {
		t.Errorf("Mean = %v, want %v", snap.Mean, want)
	}
	// The digest is approximate; accept a loose band around the true values.
	if snap.P50 < 40*time.Millisecond || snap.P50 > 60*time.Millisecond {
		t.Errorf("P50 = %v, want ~50ms", snap.P50)
	}
	if snap.P95 < 85*time.Millisecond || snap.P95 > 100*time.Millisecond {
		t.Errorf("P95 = %v, want ~95ms", snap.P95)
	}
	if snap.P99 < snap.P95 {
		t.Errorf("P99 = %v below P95 = %v", snap.P99, snap.P95)
	}
}

func TestStepStatsConcurrentRecord(t *testing.T) {
	s := NewStepStats()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				s.Record(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if got := s.Snapshot().Count; got != 1000 {
		t.Errorf("Count = %d, want 1000", got)
	}
}
