package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/placementhub/apiserver/internal/scheduler"
	"github.com/placementhub/apiserver/internal/services"
	"github.com/placementhub/apiserver/internal/storage"
	"github.com/placementhub/apiserver/internal/store/memory"
	"github.com/placementhub/apiserver/internal/token"
	"github.com/placementhub/apiserver/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeObjectStorage is an in-memory storage.ObjectStorage.
type fakeObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeObjectStorage() *fakeObjectStorage {
	return &fakeObjectStorage{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (f *fakeObjectStorage) EnsureBucket(context.Context) error { return nil }

func (f *fakeObjectStorage) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	f.types[key] = contentType
	return nil
}

func (f *fakeObjectStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjectStorage) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return storage.ObjectInfo{}, fmt.Errorf("object not found: %s", key)
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: f.types[key]}, nil
}

func (f *fakeObjectStorage) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeObjectStorage) Bucket() string { return "test-bucket" }

type fakePublisher struct{}

func (fakePublisher) Publish(context.Context, string, []byte, map[string]string) (string, error) {
	return "msg-1", nil
}

type testEnv struct {
	router *chi.Mux
	store  *memory.Store
	tokens *token.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := memory.NewStore()
	tokens := token.NewService("test-secret", time.Hour)
	objects := storage.NewStorage(newFakeObjectStorage())
	sched := scheduler.New(st.Notifications(), fakePublisher{}, time.Second, zerolog.Nop())

	userService := services.NewUserService(st.Users(), tokens)
	studentService := services.NewStudentService(st.Students())
	internshipService := services.NewInternshipService(st.Internships())
	applicationService := services.NewApplicationService(
		st.Applications(), st.Internships(), st.Students(), sched, zerolog.Nop())
	notificationService := services.NewNotificationService(st.Notifications(), sched)

	auth := RequireAuth(tokens)

	router := chi.NewRouter()
	router.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(r chi.Router) {
			AuthRouter(r, userService, tokens)
		})
		api.Route("/students", func(r chi.Router) {
			StudentRouter(r, studentService, auth)
		})
		api.Route("/internships", func(r chi.Router) {
			InternshipRouter(r, internshipService, auth)
		})
		api.Route("/applications", func(r chi.Router) {
			ApplicationRouter(r, applicationService, auth)
		})
		api.Route("/notifications", func(r chi.Router) {
			NotificationRouter(r, notificationService, auth)
		})
		ResumeRouter(api, studentService, objects, auth)
	})

	return &testEnv{router: router, store: st, tokens: tokens}
}

func (e *testEnv) request(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var value T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&value))
	return value
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[ErrorResponse](t, rec).Error.Kind
}

// registerStudent registers a fresh student account and returns its
// identity and token.
func (e *testEnv) registerStudent(t *testing.T, email string) (types.User, string) {
	t.Helper()
	rec := e.request(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Name:       "Asha Rao",
		Email:      email,
		Password:   "secret1",
		Department: "CSE",
		Semester:   5,
		CGPA:       8.4,
		Skills:     []string{"go"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody[AuthResponse](t, rec)
	return resp.User, resp.Token
}

// tokenFor mints a token for a principal that was not registered
// through the API, such as mentors and admins provisioned out of band.
func (e *testEnv) tokenFor(t *testing.T, id string, role types.Role) string {
	t.Helper()
	signed, err := e.tokens.Issue(id, role)
	require.NoError(t, err)
	return signed
}

func TestRegisterEndpoint(t *testing.T) {
	env := newTestEnv(t)

	user, signed := env.registerStudent(t, "asha@example.edu")
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, types.RoleStudent, user.Role)
	assert.NotEmpty(t, signed)

	// Registration also created the student profile.
	rec := env.request(t, http.MethodGet, "/api/students/"+user.ID, signed, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterEndpointValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Name: "No Email", Password: "secret1", Department: "CSE", Semester: 5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorKind(t, rec))

	// Non-numeric semester fails JSON decoding, still 400.
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		bytes.NewBufferString(`{"name":"x","email":"x@y.z","password":"secret1","department":"CSE","semester":"five"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRegisterEndpointDuplicate(t *testing.T) {
	env := newTestEnv(t)

	env.registerStudent(t, "asha@example.edu")
	rec := env.request(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Name: "Asha Again", Email: "asha@example.edu", Password: "secret1",
		Department: "CSE", Semester: 5, CGPA: 8.4,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.registerStudent(t, "asha@example.edu")

	rec := env.request(t, http.MethodPost, "/api/auth/login", "", LoginRequest{
		Email: "asha@example.edu", Password: "secret1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeBody[AuthResponse](t, rec).Token)

	rec = env.request(t, http.MethodPost, "/api/auth/login", "", LoginRequest{
		Email: "asha@example.edu", Password: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/auth/login", "", LoginRequest{
		Email: "ghost@example.edu", Password: "whatever",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfileAndVerifyEndpoints(t *testing.T) {
	env := newTestEnv(t)
	user, signed := env.registerStudent(t, "asha@example.edu")

	rec := env.request(t, http.MethodGet, "/api/auth/profile", signed, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.ID, decodeBody[types.User](t, rec).ID)

	rec = env.request(t, http.MethodGet, "/api/auth/verify", signed, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	verify := decodeBody[VerifyResponse](t, rec)
	assert.Equal(t, user.ID, verify.Subject)
	assert.Equal(t, types.RoleStudent, verify.Role)

	for _, bearer := range []string{"", "garbage", signed + "xx"} {
		rec = env.request(t, http.MethodGet, "/api/auth/profile", bearer, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		rec = env.request(t, http.MethodGet, "/api/auth/verify", bearer, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestStudentOwnership(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceToken := env.registerStudent(t, "alice@example.edu")
	bob, bobToken := env.registerStudent(t, "bob@example.edu")

	// Owners read and update their own profile.
	rec := env.request(t, http.MethodGet, "/api/students/"+alice.ID, aliceToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodPut, "/api/students/"+alice.ID, aliceToken, StudentProfileRequest{
		Name: "Alice Updated", Department: "CSE", Semester: 6, CGPA: 8.9,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Another student may not read, update, or delete it.
	rec = env.request(t, http.MethodGet, "/api/students/"+alice.ID, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorKind(t, rec))

	rec = env.request(t, http.MethodPut, "/api/students/"+alice.ID, bobToken, StudentProfileRequest{
		Name: "Hijack", Department: "CSE", Semester: 1, CGPA: 1,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.request(t, http.MethodDelete, "/api/students/"+alice.ID, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Admins bypass ownership.
	adminToken := env.tokenFor(t, "ADM001", types.RoleAdmin)
	rec = env.request(t, http.MethodGet, "/api/students/"+alice.ID, adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Students cannot enumerate profiles; mentors can.
	rec = env.request(t, http.MethodGet, "/api/students/", aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	mentorToken := env.tokenFor(t, "MEN001", types.RoleMentor)
	rec = env.request(t, http.MethodGet, "/api/students/", mentorToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Owner deletes their own profile.
	rec = env.request(t, http.MethodDelete, "/api/students/"+bob.ID, bobToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestInternshipEndpoints(t *testing.T) {
	env := newTestEnv(t)
	_, studentToken := env.registerStudent(t, "asha@example.edu")
	recruiterToken := env.tokenFor(t, "REC001", types.RoleRecruiter)

	posting := CreateInternshipRequest{
		Title:      "Backend Intern",
		Company:    "Acme",
		Department: "CSE",
		Skills:     []string{"go", "sql"},
		ApplyBy:    time.Now().Add(48 * time.Hour),
	}

	// Students may not post internships.
	rec := env.request(t, http.MethodPost, "/api/internships/", studentToken, posting)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/internships/", recruiterToken, posting)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[types.Internship](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "REC001", created.CreatedBy)

	// A past deadline is rejected.
	expired := posting
	expired.ApplyBy = time.Now().Add(-time.Hour)
	rec = env.request(t, http.MethodPost, "/api/internships/", recruiterToken, expired)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Listing with filters.
	rec = env.request(t, http.MethodGet, "/api/internships/?department=CSE&skills=go", studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decodeBody[[]types.Internship](t, rec)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)

	rec = env.request(t, http.MethodGet, "/api/internships/?department=ECE", studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]types.Internship](t, rec))
}

func TestApplicationWorkflowEndpoints(t *testing.T) {
	env := newTestEnv(t)
	student, studentToken := env.registerStudent(t, "asha@example.edu")
	recruiterToken := env.tokenFor(t, "REC001", types.RoleRecruiter)
	mentorToken := env.tokenFor(t, "MEN001", types.RoleMentor)

	rec := env.request(t, http.MethodPost, "/api/internships/", recruiterToken, CreateInternshipRequest{
		Title: "Backend Intern", Company: "Acme", Department: "CSE",
		ApplyBy: time.Now().Add(48 * time.Hour), MentorID: "MEN001",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	internship := decodeBody[types.Internship](t, rec)

	// Missing cover letter is a 400.
	rec = env.request(t, http.MethodPost, "/api/applications/", studentToken, SubmitApplicationRequest{
		InternshipID: internship.ID,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/applications/", studentToken, SubmitApplicationRequest{
		InternshipID: internship.ID, CoverLetter: "please consider me",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	app := decodeBody[types.Application](t, rec)
	assert.Equal(t, student.ID, app.ApplicantID)
	assert.Equal(t, int64(1), app.Version)

	statusPath := "/api/applications/" + app.ID + "/status"

	// No token: 401 before any authorization decision.
	rec = env.request(t, http.MethodPut, statusPath, "", UpdateStatusRequest{
		Status: "approved", ExpectedVersion: 1,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The applicant may not approve their own application.
	rec = env.request(t, http.MethodPut, statusPath, studentToken, UpdateStatusRequest{
		Status: "approved", ExpectedVersion: 1,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The assigned mentor approves.
	rec = env.request(t, http.MethodPut, statusPath, mentorToken, UpdateStatusRequest{
		Status: "approved", ExpectedVersion: 1, Feedback: "strong profile",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	approved := decodeBody[types.Application](t, rec)
	assert.Equal(t, types.StatusApproved, approved.Status)
	assert.Equal(t, int64(2), approved.Version)

	// Replaying the consumed version conflicts.
	rec = env.request(t, http.MethodPut, statusPath, mentorToken, UpdateStatusRequest{
		Status: "rejected", ExpectedVersion: 1,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", errorKind(t, rec))

	// An unknown status string is a 400.
	rec = env.request(t, http.MethodPut, statusPath, mentorToken, UpdateStatusRequest{
		Status: "promoted", ExpectedVersion: 2,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The recruiter extends the offer.
	rec = env.request(t, http.MethodPut, statusPath, recruiterToken, UpdateStatusRequest{
		Status: "offered", ExpectedVersion: 2,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.StatusOffered, decodeBody[types.Application](t, rec).Status)

	// The student sees their application in the list.
	rec = env.request(t, http.MethodGet, "/api/applications/", studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]types.Application](t, rec), 1)
}

func TestResumeEndpoints(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceToken := env.registerStudent(t, "alice@example.edu")
	bob, bobToken := env.registerStudent(t, "bob@example.edu")
	mentorToken := env.tokenFor(t, "MEN001", types.RoleMentor)

	// Upload requires a PDF part.
	rec := env.uploadResume(t, aliceToken, "resume.txt", "text/plain", []byte("plain text"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.uploadResume(t, aliceToken, "resume.pdf", "application/pdf", []byte("%PDF-1.4 fake"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	uploaded := decodeBody[ResumeResponse](t, rec)
	assert.Equal(t, "resumes/"+alice.ID+".pdf", uploaded.Key)

	// Owner and reviewing roles stream it back; other students do not.
	rec = env.request(t, http.MethodGet, "/api/resumes/"+alice.ID, aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "pdf")
	assert.Equal(t, "%PDF-1.4 fake", rec.Body.String())

	rec = env.request(t, http.MethodGet, "/api/resumes/"+alice.ID, mentorToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/resumes/"+alice.ID, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// A student who never uploaded has no resume.
	rec = env.request(t, http.MethodGet, "/api/resumes/"+bob.ID, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func (e *testEnv) uploadResume(t *testing.T, bearer, filename, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="resume"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/resume", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+bearer)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestNotificationEndpoints(t *testing.T) {
	env := newTestEnv(t)
	_, studentToken := env.registerStudent(t, "asha@example.edu")

	rec := env.request(t, http.MethodPost, "/api/notifications/", studentToken, ScheduleNotificationRequest{
		Subject: "Interview", Message: "Room 204 at 10am", ScheduledAt: time.Now().Add(time.Hour),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	notif := decodeBody[types.Notification](t, rec)
	require.NotEmpty(t, notif.ID)

	rec = env.request(t, http.MethodPost, "/api/notifications/", studentToken, ScheduleNotificationRequest{
		Message: "missing subject",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/notifications/", studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]types.Notification](t, rec), 1)

	// Cancel succeeds, then succeeds again.
	cancelPath := "/api/notifications/" + notif.ID + "/cancel"
	rec = env.request(t, http.MethodPost, cancelPath, studentToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.request(t, http.MethodPost, cancelPath, studentToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Unknown ids are 404.
	rec = env.request(t, http.MethodPost, "/api/notifications/no-such-id/cancel", studentToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorKind(t, rec))
}
