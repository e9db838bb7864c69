package simctl

import (
	"testing"
	"time"
)

func TestRetryDelayFixed(t *testing.T) {
	d := NewRetryDelay(200 * time.Millisecond)
	for i := 0; i < 5; i++ {
		if got := d.Next(); got != 200*time.Millisecond {
			t.Fatalf("Next() #%d = %v, want 200ms", i, got)
		}
	}
	if d.Attempts() != 5 {
		t.Errorf("Attempts = %d, want 5", d.Attempts())
	}
}

func TestRetryDelayExponentialCapped(t *testing.T) {
	d := &RetryDelay{
		Initial:    100 * time.Millisecond,
		Max:        time.Second,
		Multiplier: 2.0,
	}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		if got := d.Next(); got != w {
			t.Errorf("Next() #%d = %v, want %v", i, got, w)
		}
	}
}

func TestRetryDelayReset(t *testing.T) {
	d := &RetryDelay{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2.0}
	d.Next()
	d.Next()
	d.Reset()
	if d.Attempts() != 0 {
		t.Errorf("Attempts after Reset = %d, want 0", d.Attempts())
	}
	if got := d.Next(); got != 100*time.Millisecond {
		t.Errorf("Next() after Reset = %v, want 100ms", got)
	}
}
