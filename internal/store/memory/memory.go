// Package memory provides in-memory implementations of the store
// repositories. They honor the same compare-and-set contracts as the
// Postgres store and back the unit tests, which must not depend on a
// running database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/placementhub/apiserver/internal/store"
	"github.com/placementhub/apiserver/types"
)

// Store holds every in-memory repository behind a single lock, which
// makes multi-entity writes (user+profile, status+notification) atomic
// the same way a database transaction does.
type Store struct {
	mu sync.Mutex

	users         map[string]types.User
	emails        map[string]string
	profiles      map[string]types.StudentProfile
	internships   map[string]types.Internship
	applications  map[string]types.Application
	notifications map[string]types.Notification

	userSeq        int64
	internshipSeq  int64
	applicationSeq int64
}

func NewStore() *Store {
	return &Store{
		users:         make(map[string]types.User),
		emails:        make(map[string]string),
		profiles:      make(map[string]types.StudentProfile),
		internships:   make(map[string]types.Internship),
		applications:  make(map[string]types.Application),
		notifications: make(map[string]types.Notification),
	}
}

// Users returns the user repository view of the store.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Students returns the student profile repository view of the store.
func (s *Store) Students() *StudentRepository { return &StudentRepository{s: s} }

// Internships returns the internship repository view of the store.
func (s *Store) Internships() *InternshipRepository { return &InternshipRepository{s: s} }

// Applications returns the application repository view of the store.
func (s *Store) Applications() *ApplicationRepository { return &ApplicationRepository{s: s} }

// Notifications returns the notification repository view of the store.
func (s *Store) Notifications() *NotificationRepository { return &NotificationRepository{s: s} }

type UserRepository struct{ s *Store }

func (r *UserRepository) GetByID(_ context.Context, id string) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.emails[email]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return r.s.users[id], nil
}

func (r *UserRepository) Create(_ context.Context, user types.User, profile *types.StudentProfile) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.emails[user.Email]; exists {
		return types.User{}, store.ErrDuplicate
	}

	now := time.Now()
	r.s.userSeq++
	user.ID = fmt.Sprintf("STU%03d", r.s.userSeq)
	user.CreatedAt = now
	user.UpdatedAt = now
	r.s.users[user.ID] = user
	r.s.emails[user.Email] = user.ID

	if profile != nil {
		profile.OwnerID = user.ID
		profile.Name = user.Name
		profile.CreatedAt = now
		profile.UpdatedAt = now
		r.s.profiles[user.ID] = *profile
	}
	return user, nil
}

func (r *UserRepository) Update(_ context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.users[user.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if existing.Email != user.Email {
		delete(r.s.emails, existing.Email)
		r.s.emails[user.Email] = user.ID
	}
	user.UpdatedAt = time.Now()
	r.s.users[user.ID] = user
	return user, nil
}

func (r *UserRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(r.s.users, id)
	delete(r.s.emails, user.Email)
	delete(r.s.profiles, id)
	return nil
}

type StudentRepository struct{ s *Store }

func (r *StudentRepository) Get(_ context.Context, ownerID string) (types.StudentProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	profile, ok := r.s.profiles[ownerID]
	if !ok {
		return types.StudentProfile{}, store.ErrNotFound
	}
	return profile, nil
}

func (r *StudentRepository) List(_ context.Context) ([]types.StudentProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	profiles := make([]types.StudentProfile, 0, len(r.s.profiles))
	for _, profile := range r.s.profiles {
		profiles = append(profiles, profile)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].OwnerID < profiles[j].OwnerID })
	return profiles, nil
}

func (r *StudentRepository) Create(_ context.Context, profile types.StudentProfile) (types.StudentProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.profiles[profile.OwnerID]; exists {
		return types.StudentProfile{}, store.ErrDuplicate
	}
	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	r.s.profiles[profile.OwnerID] = profile
	return profile, nil
}

func (r *StudentRepository) Update(_ context.Context, profile types.StudentProfile) (types.StudentProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.profiles[profile.OwnerID]; !ok {
		return types.StudentProfile{}, store.ErrNotFound
	}
	profile.UpdatedAt = time.Now()
	r.s.profiles[profile.OwnerID] = profile
	return profile, nil
}

func (r *StudentRepository) Delete(_ context.Context, ownerID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.profiles[ownerID]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.profiles, ownerID)
	return nil
}

func (r *StudentRepository) SetResumeKey(_ context.Context, ownerID, key string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	profile, ok := r.s.profiles[ownerID]
	if !ok {
		return store.ErrNotFound
	}
	profile.ResumeKey = key
	profile.UpdatedAt = time.Now()
	r.s.profiles[ownerID] = profile
	return nil
}

type InternshipRepository struct{ s *Store }

func (r *InternshipRepository) Get(_ context.Context, id string) (types.Internship, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	internship, ok := r.s.internships[id]
	if !ok {
		return types.Internship{}, store.ErrNotFound
	}
	return internship, nil
}

func (r *InternshipRepository) Create(_ context.Context, internship types.Internship) (types.Internship, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.internshipSeq++
	internship.ID = fmt.Sprintf("INT%03d", r.s.internshipSeq)
	internship.CreatedAt = time.Now()
	r.s.internships[internship.ID] = internship
	return internship, nil
}

func (r *InternshipRepository) List(_ context.Context, filter types.InternshipFilter) ([]types.Internship, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var internships []types.Internship
	for _, internship := range r.s.internships {
		if filter.Department != "" && internship.Department != filter.Department {
			continue
		}
		if len(filter.Skills) > 0 && !overlaps(internship.Skills, filter.Skills) {
			continue
		}
		internships = append(internships, internship)
	}
	sort.Slice(internships, func(i, j int) bool {
		return internships[i].CreatedAt.After(internships[j].CreatedAt)
	})
	return internships, nil
}

type ApplicationRepository struct{ s *Store }

func (r *ApplicationRepository) Get(_ context.Context, id string) (types.Application, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	app, ok := r.s.applications[id]
	if !ok {
		return types.Application{}, store.ErrNotFound
	}
	return app, nil
}

func (r *ApplicationRepository) Create(_ context.Context, app types.Application) (types.Application, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.applications {
		if existing.InternshipID == app.InternshipID && existing.ApplicantID == app.ApplicantID {
			return types.Application{}, store.ErrDuplicate
		}
	}
	now := time.Now()
	r.s.applicationSeq++
	app.ID = fmt.Sprintf("APP%03d", r.s.applicationSeq)
	app.Version = 1
	app.CreatedAt = now
	app.UpdatedAt = now
	r.s.applications[app.ID] = app
	return app, nil
}

func (r *ApplicationRepository) ListByApplicant(_ context.Context, applicantID string) ([]types.Application, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var apps []types.Application
	for _, app := range r.s.applications {
		if app.ApplicantID == applicantID {
			apps = append(apps, app)
		}
	}
	sortApplications(apps)
	return apps, nil
}

func (r *ApplicationRepository) ListByMentor(_ context.Context, mentorID string) ([]types.Application, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var apps []types.Application
	for _, app := range r.s.applications {
		internship, ok := r.s.internships[app.InternshipID]
		if ok && internship.MentorID == mentorID {
			apps = append(apps, app)
		}
	}
	sortApplications(apps)
	return apps, nil
}

func (r *ApplicationRepository) ListAll(_ context.Context) ([]types.Application, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	apps := make([]types.Application, 0, len(r.s.applications))
	for _, app := range r.s.applications {
		apps = append(apps, app)
	}
	sortApplications(apps)
	return apps, nil
}

// UpdateStatusCAS mirrors the Postgres repository: the status change
// and the notification insert happen under one lock, and the write is
// accepted only when the stored version matches expectedVersion.
func (r *ApplicationRepository) UpdateStatusCAS(
	_ context.Context,
	id string,
	expectedVersion int64,
	newStatus types.ApplicationStatus,
	feedback, decidedBy string,
	notif *types.Notification,
) (types.Application, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	app, ok := r.s.applications[id]
	if !ok {
		return types.Application{}, store.ErrNotFound
	}
	if app.Version != expectedVersion {
		return types.Application{}, store.ErrVersionConflict
	}

	now := time.Now()
	app.Status = newStatus
	app.Version++
	app.Feedback = feedback
	app.DecidedBy = decidedBy
	app.DecidedAt = &now
	app.UpdatedAt = now
	r.s.applications[id] = app

	if notif != nil {
		notif.CreatedAt = now
		r.s.notifications[notif.ID] = *notif
	}
	return app, nil
}

type NotificationRepository struct{ s *Store }

func (r *NotificationRepository) Get(_ context.Context, id string) (types.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	notif, ok := r.s.notifications[id]
	if !ok {
		return types.Notification{}, store.ErrNotFound
	}
	return notif, nil
}

func (r *NotificationRepository) Create(_ context.Context, notif types.Notification) (types.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.notifications[notif.ID]; exists {
		return types.Notification{}, store.ErrDuplicate
	}
	notif.CreatedAt = time.Now()
	r.s.notifications[notif.ID] = notif
	return notif, nil
}

func (r *NotificationRepository) ListByOwner(_ context.Context, ownerID string) ([]types.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var notifs []types.Notification
	for _, notif := range r.s.notifications {
		if notif.OwnerID == ownerID {
			notifs = append(notifs, notif)
		}
	}
	sortNotifications(notifs)
	return notifs, nil
}

func (r *NotificationRepository) ListPending(_ context.Context) ([]types.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var notifs []types.Notification
	for _, notif := range r.s.notifications {
		if notif.State == types.NotificationPending {
			notifs = append(notifs, notif)
		}
	}
	sortNotifications(notifs)
	return notifs, nil
}

func (r *NotificationRepository) MarkDispatched(_ context.Context, id string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	notif, ok := r.s.notifications[id]
	if !ok || notif.State != types.NotificationPending {
		return false, nil
	}
	notif.State = types.NotificationDispatched
	notif.DispatchedAt = &at
	r.s.notifications[id] = notif
	return true, nil
}

func (r *NotificationRepository) Cancel(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	notif, ok := r.s.notifications[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if notif.State != types.NotificationPending {
		return false, nil
	}
	notif.State = types.NotificationCancelled
	r.s.notifications[id] = notif
	return true, nil
}

func sortApplications(apps []types.Application) {
	sort.Slice(apps, func(i, j int) bool {
		if apps[i].CreatedAt.Equal(apps[j].CreatedAt) {
			return apps[i].ID > apps[j].ID
		}
		return apps[i].CreatedAt.After(apps[j].CreatedAt)
	})
}

func sortNotifications(notifs []types.Notification) {
	sort.Slice(notifs, func(i, j int) bool {
		if notifs[i].ScheduledAt.Equal(notifs[j].ScheduledAt) {
			return notifs[i].ID < notifs[j].ID
		}
		return notifs[i].ScheduledAt.Before(notifs[j].ScheduledAt)
	})
}

func overlaps(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
