package services

import (
	"context"
	"errors"
	"strings"

	"github.com/placementhub/apiserver/internal/apperr"
	"github.com/placementhub/apiserver/internal/store"
	"github.com/placementhub/apiserver/types"
)

// StudentRepository defines persistence operations for student profiles.
type StudentRepository interface {
	Get(ctx context.Context, ownerID string) (types.StudentProfile, error)
	List(ctx context.Context) ([]types.StudentProfile, error)
	Create(ctx context.Context, profile types.StudentProfile) (types.StudentProfile, error)
	Update(ctx context.Context, profile types.StudentProfile) (types.StudentProfile, error)
	Delete(ctx context.Context, ownerID string) error
	SetResumeKey(ctx context.Context, ownerID, key string) error
}

// StudentService encapsulates student profile use-cases. Ownership is
// enforced by callers through the access table; this service only
// validates content.
type StudentService struct {
	repo StudentRepository
}

func NewStudentService(repo StudentRepository) *StudentService {
	return &StudentService{repo: repo}
}

func (s *StudentService) Get(ctx context.Context, ownerID string) (types.StudentProfile, error) {
	profile, err := retryRead(func() (types.StudentProfile, error) {
		return s.repo.Get(ctx, ownerID)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.StudentProfile{}, apperr.NotFound("student profile not found")
		}
		return types.StudentProfile{}, err
	}
	return profile, nil
}

func (s *StudentService) List(ctx context.Context) ([]types.StudentProfile, error) {
	return retryRead(func() ([]types.StudentProfile, error) {
		return s.repo.List(ctx)
	})
}

func (s *StudentService) Create(ctx context.Context, profile types.StudentProfile) (types.StudentProfile, error) {
	if err := validateProfile(profile); err != nil {
		return types.StudentProfile{}, err
	}

	created, err := s.repo.Create(ctx, profile)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.StudentProfile{}, apperr.Validation("profile already exists")
		}
		return types.StudentProfile{}, err
	}
	return created, nil
}

func (s *StudentService) Update(ctx context.Context, profile types.StudentProfile) (types.StudentProfile, error) {
	if err := validateProfile(profile); err != nil {
		return types.StudentProfile{}, err
	}

	// Resume keys only change through the upload path.
	existing, err := s.repo.Get(ctx, profile.OwnerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.StudentProfile{}, apperr.NotFound("student profile not found")
		}
		return types.StudentProfile{}, err
	}
	profile.ResumeKey = existing.ResumeKey
	profile.CreatedAt = existing.CreatedAt

	updated, err := s.repo.Update(ctx, profile)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.StudentProfile{}, apperr.NotFound("student profile not found")
		}
		return types.StudentProfile{}, err
	}
	return updated, nil
}

func (s *StudentService) Delete(ctx context.Context, ownerID string) error {
	if err := s.repo.Delete(ctx, ownerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("student profile not found")
		}
		return err
	}
	return nil
}

// SetResumeKey records an uploaded resume's storage key on the profile.
func (s *StudentService) SetResumeKey(ctx context.Context, ownerID, key string) error {
	if err := s.repo.SetResumeKey(ctx, ownerID, key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("student profile not found")
		}
		return err
	}
	return nil
}

func validateProfile(profile types.StudentProfile) error {
	if strings.TrimSpace(profile.OwnerID) == "" {
		return apperr.Validation("owner id is required")
	}
	if strings.TrimSpace(profile.Name) == "" || strings.TrimSpace(profile.Department) == "" {
		return apperr.Validation("name and department are required")
	}
	if profile.Semester < 1 || profile.Semester > 8 {
		return apperr.Validation("semester must be between 1 and 8")
	}
	if profile.CGPA < 0 || profile.CGPA > 10 {
		return apperr.Validation("cgpa must be between 0 and 10")
	}
	return nil
}
