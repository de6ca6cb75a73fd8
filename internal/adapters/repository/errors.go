package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrConflict = errors.New("record already exists")
	ErrClosed   = errors.New("store closed")
)
