package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/placementhub/apiserver/internal/access"
	"github.com/placementhub/apiserver/internal/apperr"
)

type contextKey string

const contextPrincipalKey contextKey = "principal"

// principalFromContext extracts the verified caller identity placed in
// the request context by the auth middleware.
func principalFromContext(ctx context.Context) (access.Principal, error) {
	principal, ok := ctx.Value(contextPrincipalKey).(access.Principal)
	if !ok || principal.UserID == "" {
		return access.Principal{}, errors.New("missing principal")
	}
	return principal, nil
}

// ErrorResponse is the body of every failure response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the taxonomy code alongside a human message.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// writeError maps a classified error onto its HTTP status and wire
// body. Unclassified errors become opaque 500s; their message never
// reaches the client.
func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	message := err.Error()
	if kind == apperr.KindInternal {
		message = "internal server error"
	}
	writeJSON(w, kind.HTTPStatus(), ErrorResponse{
		Error: ErrorDetail{Kind: kind.String(), Message: message},
	})
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
