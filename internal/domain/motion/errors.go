package motion

import "errors"

// Sentinel kinds for motion input errors.
var (
	// ErrSensorUnavailable signals that the platform has no usable motion
	// sensor and the session must fall back to simulation.
	ErrSensorUnavailable = errors.New("motion sensor unavailable")

	// ErrInvalidSample marks a reading with at least one unavailable axis.
	// It is never propagated past Normalize; the axis is read as zero.
	ErrInvalidSample = errors.New("invalid acceleration sample")
)
