package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/placementhub/apiserver/internal/apperr"
	"github.com/placementhub/apiserver/internal/store"
	"github.com/placementhub/apiserver/types"
)

// InternshipRepository defines persistence operations for internships.
type InternshipRepository interface {
	Get(ctx context.Context, id string) (types.Internship, error)
	Create(ctx context.Context, internship types.Internship) (types.Internship, error)
	List(ctx context.Context, filter types.InternshipFilter) ([]types.Internship, error)
}

// InternshipService encapsulates internship posting use-cases.
type InternshipService struct {
	repo InternshipRepository
}

func NewInternshipService(repo InternshipRepository) *InternshipService {
	return &InternshipService{repo: repo}
}

func (s *InternshipService) Get(ctx context.Context, id string) (types.Internship, error) {
	internship, err := retryRead(func() (types.Internship, error) {
		return s.repo.Get(ctx, id)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Internship{}, apperr.NotFound("internship not found")
		}
		return types.Internship{}, err
	}
	return internship, nil
}

func (s *InternshipService) Create(ctx context.Context, internship types.Internship) (types.Internship, error) {
	if strings.TrimSpace(internship.Title) == "" {
		return types.Internship{}, apperr.Validation("title is required")
	}
	if strings.TrimSpace(internship.Department) == "" {
		return types.Internship{}, apperr.Validation("department is required")
	}
	if internship.ApplyBy.IsZero() || internship.ApplyBy.Before(time.Now()) {
		return types.Internship{}, apperr.Validation("apply-by date must be in the future")
	}
	return s.repo.Create(ctx, internship)
}

func (s *InternshipService) List(ctx context.Context, filter types.InternshipFilter) ([]types.Internship, error) {
	return retryRead(func() ([]types.Internship, error) {
		return s.repo.List(ctx, filter)
	})
}
