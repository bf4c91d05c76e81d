package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/placementhub/apiserver/internal/access"
	"github.com/placementhub/apiserver/internal/apperr"
	"github.com/placementhub/apiserver/internal/services"
	"github.com/placementhub/apiserver/types"
)

// InternshipHandler serves internship postings.
type InternshipHandler struct {
	internships *services.InternshipService
}

func NewInternshipHandler(internships *services.InternshipService) *InternshipHandler {
	return &InternshipHandler{internships: internships}
}

// InternshipRouter registers internship routes on the given router.
func InternshipRouter(r chi.Router, internships *services.InternshipService, auth func(http.Handler) http.Handler) {
	handler := NewInternshipHandler(internships)

	r.Use(auth)
	r.Post("/", handler.Create)
	r.Get("/", handler.List)
	r.Get("/{id}", handler.Get)
}

// Create posts a new internship. Only admins and recruiters hold this
// capability.
func (h *InternshipHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, apperr.Unauthenticated("missing or invalid token"))
		return
	}
	if !access.Allowed(principal.Role, access.OpInternshipCreate) {
		writeError(w, apperr.Forbidden("not allowed"))
		return
	}

	var req CreateInternshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}

	internship, err := h.internships.Create(r.Context(), types.Internship{
		Title:         req.Title,
		Company:       req.Company,
		Department:    req.Department,
		Skills:        req.Skills,
		Location:      req.Location,
		DurationWeeks: req.DurationWeeks,
		Stipend:       req.Stipend,
		ApplyBy:       req.ApplyBy,
		MentorID:      req.MentorID,
		CreatedBy:     principal.UserID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, internship)
}

// List returns internships, optionally narrowed by department and a
// comma-separated skills filter.
func (h *InternshipHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, apperr.Unauthenticated("missing or invalid token"))
		return
	}
	if !access.Allowed(principal.Role, access.OpInternshipList) {
		writeError(w, apperr.Forbidden("not allowed"))
		return
	}

	filter := types.InternshipFilter{
		Department: strings.TrimSpace(r.URL.Query().Get("department")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("skills")); raw != "" {
		for _, skill := range strings.Split(raw, ",") {
			if skill = strings.TrimSpace(skill); skill != "" {
				filter.Skills = append(filter.Skills, skill)
			}
		}
	}

	internships, err := h.internships.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, internships)
}

func (h *InternshipHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, apperr.Unauthenticated("missing or invalid token"))
		return
	}
	if !access.Allowed(principal.Role, access.OpInternshipList) {
		writeError(w, apperr.Forbidden("not allowed"))
		return
	}

	internship, err := h.internships.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, internship)
}

type CreateInternshipRequest struct {
	Title         string    `json:"title"`
	Company       string    `json:"company"`
	Department    string    `json:"department"`
	Skills        []string  `json:"skills"`
	Location      string    `json:"location"`
	DurationWeeks int       `json:"duration_weeks"`
	Stipend       string    `json:"stipend"`
	ApplyBy       time.Time `json:"apply_by"`
	MentorID      string    `json:"mentor_id"`
}
