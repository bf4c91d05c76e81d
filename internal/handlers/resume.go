package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/placementhub/apiserver/internal/access"
	"github.com/placementhub/apiserver/internal/apperr"
	"github.com/placementhub/apiserver/internal/services"
	"github.com/placementhub/apiserver/internal/storage"
)

// maxResumeSize bounds the multipart upload, resume PDFs included.
const maxResumeSize = 10 << 20

// ResumeHandler serves resume upload and retrieval backed by object
// storage. Objects are keyed by owner id; re-uploading replaces the
// previous resume.
type ResumeHandler struct {
	students *services.StudentService
	objects  *storage.Storage
}

func NewResumeHandler(students *services.StudentService, objects *storage.Storage) *ResumeHandler {
	return &ResumeHandler{students: students, objects: objects}
}

// ResumeRouter registers resume routes on the given router. Upload and
// read live under different prefixes, so registration happens at the
// parent router.
func ResumeRouter(r chi.Router, students *services.StudentService, objects *storage.Storage, auth func(http.Handler) http.Handler) {
	handler := NewResumeHandler(students, objects)

	r.With(auth).Post("/resume", handler.Upload)
	r.With(auth).Get("/resumes/{id}", handler.Download)
}

// Upload stores the caller's resume PDF and records its key on the
// student profile.
func (h *ResumeHandler) Upload(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, apperr.Unauthenticated("missing or invalid token"))
		return
	}
	if !access.Allowed(principal.Role, access.OpResumeUpload) {
		writeError(w, apperr.Forbidden("not allowed"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxResumeSize)
	if err := r.ParseMultipartForm(maxResumeSize); err != nil {
		writeError(w, apperr.Validation("invalid multipart body"))
		return
	}
	file, header, err := r.FormFile("resume")
	if err != nil {
		writeError(w, apperr.Validation("resume file is required"))
		return
	}
	defer file.Close()

	if !isPDF(header.Header.Get("Content-Type"), header.Filename) {
		writeError(w, apperr.Validation("resume must be a PDF"))
		return
	}

	key := resumeKey(principal.UserID)
	if err := h.objects.Put(r.Context(), key, file, header.Size, "application/pdf"); err != nil {
		writeError(w, err)
		return
	}
	if err := h.students.SetResumeKey(r.Context(), principal.UserID, key); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ResumeResponse{Key: key, Size: header.Size})
}

// Download streams a student's resume. The path id is the owner's user
// id; access is granted to the owner and to reviewing roles.
func (h *ResumeHandler) Download(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, apperr.Unauthenticated("missing or invalid token"))
		return
	}
	ownerID := chi.URLParam(r, "id")

	if !access.AllowedOwned(principal.Role, access.OpResumeRead, principal.UserID, ownerID) {
		writeError(w, apperr.Forbidden("not allowed"))
		return
	}

	profile, err := h.students.Get(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	if profile.ResumeKey == "" {
		writeError(w, apperr.NotFound("no resume uploaded"))
		return
	}

	info, err := h.objects.Stat(r.Context(), profile.ResumeKey)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, apperr.NotFound("no resume uploaded"))
			return
		}
		writeError(w, err)
		return
	}

	object, err := h.objects.Get(r.Context(), profile.ResumeKey)
	if err != nil {
		writeError(w, err)
		return
	}
	defer object.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("inline; filename=%q", path.Base(profile.ResumeKey)))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, object)
}

func isPDF(contentType, filename string) bool {
	if strings.Contains(strings.ToLower(contentType), "pdf") {
		return true
	}
	return strings.EqualFold(path.Ext(filename), ".pdf")
}

func resumeKey(ownerID string) string {
	return "resumes/" + ownerID + ".pdf"
}

type ResumeResponse struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}
