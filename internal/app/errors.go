package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotStarted   = errors.New("service not started")
)
