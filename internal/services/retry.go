package services

import (
	"errors"

	"github.com/placementhub/apiserver/internal/store"
)

// retryRead runs an idempotent read and retries it exactly once on a
// transient failure. Business failures (missing rows, conflicts) are
// never retried; writes never go through this path because a retried
// write could duplicate side effects.
func retryRead[T any](fn func() (T, error)) (T, error) {
	value, err := fn()
	if err == nil || !transient(err) {
		return value, err
	}
	return fn()
}

func transient(err error) bool {
	return !errors.Is(err, store.ErrNotFound) &&
		!errors.Is(err, store.ErrDuplicate) &&
		!errors.Is(err, store.ErrVersionConflict)
}
