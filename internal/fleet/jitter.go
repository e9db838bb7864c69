package fleet

import (
	"math/rand"
	"time"
)

// JitterSource provides deterministic, per-worker jitter values. A
// per-worker seed keeps the relative start offsets stable across runs with
// the same config seed, while avoiding synchronized engine startups.
type JitterSource struct {
	configSeed int64
}

// NewJitterSource creates a jitter source with the given config seed.
func NewJitterSource(configSeed int64) *JitterSource {
	return &JitterSource{configSeed: configSeed}
}

// NewJitterSourceFromTime creates a jitter source seeded from the current
// time.
func NewJitterSourceFromTime() *JitterSource {
	return NewJitterSource(time.Now().UnixNano())
}

// ForWorker returns a random number generator seeded for one worker. The
// same worker id always produces the same sequence.
func (j *JitterSource) ForWorker(workerID int) *rand.Rand {
	seed := int64(workerID) ^ j.configSeed
	return rand.New(rand.NewSource(seed))
}

// WorkerJitter returns a jitter duration for one worker within
// [0, maxJitter).
func (j *JitterSource) WorkerJitter(workerID int, maxJitter time.Duration) time.Duration {
	if maxJitter <= 0 {
		return 0
	}
	return time.Duration(j.ForWorker(workerID).Int63n(int64(maxJitter)))
}
