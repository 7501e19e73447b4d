// Package throughput estimates how fast the engine processes media relative
// to wall-clock time. The value is telemetry only.
package throughput

import "time"

// MinSampleInterval is the minimum wall-clock time between two samples.
const MinSampleInterval = 500 * time.Millisecond

// Estimator turns (position, wall-clock) observations into a speed
// multiplier: 1.0 means real time, 2.0 twice as fast.
type Estimator struct {
	lastPosition time.Duration
	lastAt       time.Time
	primed       bool
	multiplier   float64
}

// Observe records the engine position at now. While the engine is not
// playing the estimator is reset. sampled reports whether a new multiplier
// was computed; otherwise the previous value is returned.
func (e *Estimator) Observe(playing bool, position time.Duration, now time.Time) (multiplier float64, sampled bool) {
	if !playing {
		e.Reset()
		return 0, false
	}
	if !e.primed {
		e.lastPosition, e.lastAt, e.primed = position, now, true
		return e.multiplier, false
	}

	elapsed := now.Sub(e.lastAt)
	if elapsed < MinSampleInterval {
		return e.multiplier, false
	}

	e.multiplier = float64(position-e.lastPosition) / float64(elapsed)
	if e.multiplier < 0 {
		e.multiplier = 0
	}
	e.lastPosition, e.lastAt = position, now
	return e.multiplier, true
}

// Multiplier returns the most recent estimate.
func (e *Estimator) Multiplier() float64 {
	return e.multiplier
}

// Reset clears the estimate and the last sample.
func (e *Estimator) Reset() {
	*e = Estimator{}
}
