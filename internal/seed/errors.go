package seed

import "errors"

// Sentinel kinds for import errors.
var (
	ErrNotArray = errors.New("input is not a JSON array")
	ErrNoFile   = errors.New("no input file")
)
