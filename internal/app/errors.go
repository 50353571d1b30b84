package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted    = errors.New("service not started")
	ErrEmptyBatch    = errors.New("sample batch is empty")
	ErrBatchTooLarge = errors.New("sample batch too large")
	ErrBackpressure  = errors.New("sample queue full")
)
