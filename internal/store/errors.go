package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a uniqueness constraint is violated.
var ErrDuplicate = errors.New("duplicate record")

// ErrVersionConflict is returned when a compare-and-set write observed
// a version other than the one the caller read.
var ErrVersionConflict = errors.New("version conflict")
