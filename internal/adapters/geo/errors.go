package geo

import "errors"

// Sentinel kinds for lookup errors.
var (
	ErrLookupFailed = errors.New("country lookup failed")
	ErrRateLimited  = errors.New("country lookup rate limited")
)
