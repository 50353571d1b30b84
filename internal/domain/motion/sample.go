// Package motion turns raw tri-axial acceleration into step events.
// A differencer computes the jerk magnitude between consecutive samples and
// a detector thresholds that signal with a refractory period.
package motion

import (
	"fmt"
	"math"
	"time"
)

// Sample is one accelerometer reading in m/s² with its arrival time.
type Sample struct {
	X, Y, Z float64
	At      time.Time
}

// Norm returns the Euclidean length of the acceleration vector.
func (s Sample) Norm() float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}

// Reading is a sample as delivered by a platform sensor, where any axis may
// be reported as unavailable (nil).
type Reading struct {
	X  *float64  `json:"x"`
	Y  *float64  `json:"y"`
	Z  *float64  `json:"z"`
	At time.Time `json:"ts"`
}

// NewReading builds a Reading with all three axes present.
func NewReading(x, y, z float64, at time.Time) Reading {
	return Reading{X: &x, Y: &y, Z: &z, At: at}
}

// Normalize converts r into a Sample, reading unavailable axes as zero.
// The returned error wraps ErrInvalidSample when an axis was missing; the
// Sample is usable either way.
func (r Reading) Normalize() (Sample, error) {
	s := Sample{At: r.At}
	var missing []string
	if r.X != nil {
		s.X = *r.X
	} else {
		missing = append(missing, "x")
	}
	if r.Y != nil {
		s.Y = *r.Y
	} else {
		missing = append(missing, "y")
	}
	if r.Z != nil {
		s.Z = *r.Z
	} else {
		missing = append(missing, "z")
	}
	if len(missing) > 0 {
		return s, fmt.Errorf("%w: missing axes %v", ErrInvalidSample, missing)
	}
	return s, nil
}

// JerkMagnitude returns |cur - prev|, the step-detection signal.
// prev is owned by the caller; pass the zero Sample for the first reading of
// a session.
func JerkMagnitude(cur, prev Sample) float64 {
	dx := cur.X - prev.X
	dy := cur.Y - prev.Y
	dz := cur.Z - prev.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
