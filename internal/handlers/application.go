package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/placementhub/apiserver/internal/access"
	"github.com/placementhub/apiserver/internal/apperr"
	"github.com/placementhub/apiserver/internal/services"
	"github.com/placementhub/apiserver/types"
)

// ApplicationHandler serves the application workflow endpoints.
type ApplicationHandler struct {
	applications *services.ApplicationService
}

func NewApplicationHandler(applications *services.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{applications: applications}
}

// ApplicationRouter registers application routes on the given router.
func ApplicationRouter(r chi.Router, applications *services.ApplicationService, auth func(http.Handler) http.Handler) {
	handler := NewApplicationHandler(applications)

	r.Use(auth)
	r.Post("/", handler.Submit)
	r.Get("/", handler.List)
	r.Get("/{id}", handler.Get)
	r.Put("/{id}/status", handler.UpdateStatus)
}

// Submit creates a new application for the authenticated student.
func (h *ApplicationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, apperr.Unauthenticated("missing or invalid token"))
		return
	}
	if !access.Allowed(principal.Role, access.OpApplicationSubmit) {
		writeError(w, apperr.Forbidden("not allowed"))
		return
	}

	var req SubmitApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}

	app, err := h.applications.Submit(r.Context(), principal.UserID, req.InternshipID, req.CoverLetter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

// List returns the applications visible to the caller.
func (h *ApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, apperr.Unauthenticated("missing or invalid token"))
		return
	}

	apps, err := h.applications.List(r.Context(), principal)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

// Get returns a single application. Visibility follows the same rules
// as listing: the applicant, the internship's mentor, or a privileged
// role. Anyone else sees 403.
func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, apperr.Unauthenticated("missing or invalid token"))
		return
	}

	app, err := h.applications.GetVisible(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// UpdateStatus requests a state transition. The body must carry the
// version the caller read; a stale version yields 409.
func (h *ApplicationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, apperr.Unauthenticated("missing or invalid token"))
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	status, err := types.ParseApplicationStatus(req.Status)
	if err != nil {
		writeError(w, apperr.Validation("unknown status %q", req.Status))
		return
	}
	if req.ExpectedVersion < 1 {
		writeError(w, apperr.Validation("expected_version is required"))
		return
	}

	app, err := h.applications.UpdateStatus(r.Context(), principal, services.UpdateStatusInput{
		ApplicationID:   chi.URLParam(r, "id"),
		ExpectedVersion: req.ExpectedVersion,
		NewStatus:       status,
		Feedback:        req.Feedback,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

type SubmitApplicationRequest struct {
	InternshipID string `json:"internship_id"`
	CoverLetter  string `json:"cover_letter"`
}

type UpdateStatusRequest struct {
	Status          string `json:"status"`
	ExpectedVersion int64  `json:"expected_version"`
	Feedback        string `json:"feedback"`
}
