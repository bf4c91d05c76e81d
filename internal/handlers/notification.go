package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/placementhub/apiserver/internal/access"
	"github.com/placementhub/apiserver/internal/apperr"
	"github.com/placementhub/apiserver/internal/services"
)

// NotificationHandler serves the notification scheduling endpoints.
type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// NotificationRouter registers notification routes on the given router.
func NotificationRouter(r chi.Router, notifications *services.NotificationService, auth func(http.Handler) http.Handler) {
	handler := NewNotificationHandler(notifications)

	r.Use(auth)
	r.Post("/", handler.Schedule)
	r.Get("/", handler.List)
	r.Post("/{id}/cancel", handler.Cancel)
}

// Schedule registers a one-shot notification for the caller. An absent
// scheduled_at means immediate dispatch on the next tick.
func (h *NotificationHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, apperr.Unauthenticated("missing or invalid token"))
		return
	}
	if !access.Allowed(principal.Role, access.OpNotificationSchedule) {
		writeError(w, apperr.Forbidden("not allowed"))
		return
	}

	var req ScheduleNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}

	notif, err := h.notifications.Schedule(r.Context(), principal.UserID, req.Subject, req.Message, req.ScheduledAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, notif)
}

// List returns the caller's notifications ordered by scheduled time.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, apperr.Unauthenticated("missing or invalid token"))
		return
	}

	notifs, err := h.notifications.List(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notifs)
}

// Cancel prevents a pending notification from dispatching. Repeat
// cancellation succeeds; an unknown id is 404.
func (h *NotificationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, apperr.Unauthenticated("missing or invalid token"))
		return
	}

	if err := h.notifications.Cancel(r.Context(), principal, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

type ScheduleNotificationRequest struct {
	Subject     string    `json:"subject"`
	Message     string    `json:"message"`
	ScheduledAt time.Time `json:"scheduled_at"`
}
