package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, KindValidation.HTTPStatus())
	assert.Equal(t, http.StatusUnauthorized, KindUnauthenticated.HTTPStatus())
	assert.Equal(t, http.StatusForbidden, KindForbidden.HTTPStatus())
	assert.Equal(t, http.StatusNotFound, KindNotFound.HTTPStatus())
	assert.Equal(t, http.StatusConflict, KindConflict.HTTPStatus())
	// Transition violations are client errors, not conflicts.
	assert.Equal(t, http.StatusBadRequest, KindInvalidTransition.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, KindInternal.HTTPStatus())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindConflict, KindOf(Conflict("stale version")))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))

	// The kind survives wrapping.
	wrapped := fmt.Errorf("update application: %w", Forbidden("not allowed"))
	assert.Equal(t, KindForbidden, KindOf(wrapped))
}

func TestErrorsIsMatchesByKind(t *testing.T) {
	err := NotFound("application %s not found", "APP001")
	assert.True(t, errors.Is(err, NotFound("anything")))
	assert.False(t, errors.Is(err, Conflict("anything")))
	assert.Equal(t, "application APP001 not found", err.Error())
}
