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

// StudentHandler serves student profile CRUD. Every route requires a
// bearer token; row-level reach is decided by the capability table.
type StudentHandler struct {
	students *services.StudentService
}

func NewStudentHandler(students *services.StudentService) *StudentHandler {
	return &StudentHandler{students: students}
}

// StudentRouter registers student routes on the given router.
func StudentRouter(r chi.Router, students *services.StudentService, auth func(http.Handler) http.Handler) {
	handler := NewStudentHandler(students)

	r.Use(auth)
	r.Post("/", handler.Create)
	r.Get("/", handler.List)
	r.Get("/{id}", handler.Get)
	r.Put("/{id}", handler.Update)
	r.Delete("/{id}", handler.Delete)
}

// Create creates a student profile. Students may only create their
// own; admins may create for anyone.
func (h *StudentHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, apperr.Unauthenticated("missing or invalid token"))
		return
	}

	var req StudentProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	ownerID := req.OwnerID
	if ownerID == "" {
		ownerID = principal.UserID
	}

	if !access.AllowedOwned(principal.Role, access.OpStudentCreate, principal.UserID, ownerID) {
		writeError(w, apperr.Forbidden("not allowed"))
		return
	}

	profile, err := h.students.Create(r.Context(), req.toProfile(ownerID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

// List returns every student profile. Students lack this capability.
func (h *StudentHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, apperr.Unauthenticated("missing or invalid token"))
		return
	}
	if !access.Allowed(principal.Role, access.OpStudentList) {
		writeError(w, apperr.Forbidden("not allowed"))
		return
	}

	profiles, err := h.students.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (h *StudentHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, apperr.Unauthenticated("missing or invalid token"))
		return
	}
	ownerID := chi.URLParam(r, "id")

	if !access.AllowedOwned(principal.Role, access.OpStudentRead, principal.UserID, ownerID) {
		writeError(w, apperr.Forbidden("not allowed"))
		return
	}

	profile, err := h.students.Get(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *StudentHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, apperr.Unauthenticated("missing or invalid token"))
		return
	}
	ownerID := chi.URLParam(r, "id")

	if !access.AllowedOwned(principal.Role, access.OpStudentUpdate, principal.UserID, ownerID) {
		writeError(w, apperr.Forbidden("not allowed"))
		return
	}

	var req StudentProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}

	profile, err := h.students.Update(r.Context(), req.toProfile(ownerID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *StudentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, apperr.Unauthenticated("missing or invalid token"))
		return
	}
	ownerID := chi.URLParam(r, "id")

	if !access.AllowedOwned(principal.Role, access.OpStudentDelete, principal.UserID, ownerID) {
		writeError(w, apperr.Forbidden("not allowed"))
		return
	}

	if err := h.students.Delete(r.Context(), ownerID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type StudentProfileRequest struct {
	OwnerID    string   `json:"owner_id"`
	Name       string   `json:"name"`
	Department string   `json:"department"`
	Semester   int      `json:"semester"`
	CGPA       float64  `json:"cgpa"`
	Skills     []string `json:"skills"`
	Phone      string   `json:"phone"`
	Summary    string   `json:"summary"`
}

func (req StudentProfileRequest) toProfile(ownerID string) types.StudentProfile {
	return types.StudentProfile{
		OwnerID:    ownerID,
		Name:       req.Name,
		Department: req.Department,
		Semester:   req.Semester,
		CGPA:       req.CGPA,
		Skills:     req.Skills,
		Phone:      req.Phone,
		Summary:    req.Summary,
	}
}
