package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/placementhub/apiserver/internal/access"
	"github.com/placementhub/apiserver/internal/apperr"
	"github.com/placementhub/apiserver/internal/services"
	"github.com/placementhub/apiserver/internal/token"
	"github.com/placementhub/apiserver/types"
)

// AuthHandler provides registration, login, and token introspection.
type AuthHandler struct {
	users  *services.UserService
	tokens *token.Service
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(users *services.UserService, tokens *token.Service) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, users *services.UserService, tokens *token.Service) {
	handler := NewAuthHandler(users, tokens)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.With(RequireAuth(tokens)).Get("/profile", handler.Profile)
	r.With(RequireAuth(tokens)).Get("/verify", handler.Verify)
}

// RequireAuth verifies the bearer token and injects the caller's
// principal into the request context. A missing, malformed, tampered,
// or expired token always yields 401, never any other status.
func RequireAuth(tokens *token.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, apperr.Unauthenticated("missing or invalid token"))
				return
			}

			subject, role, err := tokens.Verify(tokenString)
			if err != nil {
				writeError(w, apperr.Unauthenticated("missing or invalid token"))
				return
			}

			ctx := context.WithValue(r.Context(), contextPrincipalKey, access.Principal{
				UserID: subject,
				Role:   role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Register creates a student account with its profile and returns the
// identity plus a signed token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}

	user, err := h.users.Register(r.Context(), services.RegisterInput{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Department: req.Department,
		Semester:   req.Semester,
		CGPA:       req.CGPA,
		Skills:     req.Skills,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	signed, err := h.tokens.Issue(user.ID, user.Role)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{Token: signed, User: user})
}

// Login verifies credentials and returns a signed token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, apperr.Unauthenticated("invalid credentials"))
		return
	}

	user, signed, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: signed, User: user})
}

// Profile returns the authenticated caller's account.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, apperr.Unauthenticated("missing or invalid token"))
		return
	}

	user, err := h.users.GetByID(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// Verify confirms the presented token is valid and echoes its claims.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, apperr.Unauthenticated("missing or invalid token"))
		return
	}

	writeJSON(w, http.StatusOK, VerifyResponse{
		Subject: principal.UserID,
		Role:    principal.Role,
	})
}

type RegisterRequest struct {
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Password   string   `json:"password"`
	Department string   `json:"department"`
	Semester   int      `json:"semester"`
	CGPA       float64  `json:"cgpa"`
	Skills     []string `json:"skills"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

type VerifyResponse struct {
	Subject string     `json:"subject"`
	Role    types.Role `json:"role"`
}
