package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/placementhub/apiserver/internal/access"
	"github.com/placementhub/apiserver/internal/apperr"
	"github.com/placementhub/apiserver/internal/scheduler"
	"github.com/placementhub/apiserver/internal/store"
	"github.com/placementhub/apiserver/types"
)

// NotificationRepository defines persistence operations for
// notifications beyond what the dispatcher itself needs.
type NotificationRepository interface {
	Get(ctx context.Context, id string) (types.Notification, error)
	ListByOwner(ctx context.Context, ownerID string) ([]types.Notification, error)
	Cancel(ctx context.Context, id string) (bool, error)
}

// NotificationService fronts the scheduler for the HTTP surface.
type NotificationService struct {
	repo      NotificationRepository
	scheduler *scheduler.Scheduler
}

func NewNotificationService(repo NotificationRepository, sched *scheduler.Scheduler) *NotificationService {
	return &NotificationService{repo: repo, scheduler: sched}
}

// Schedule validates and registers a one-shot notification. A zero
// scheduled time means "now"; past times dispatch on the next tick.
func (s *NotificationService) Schedule(ctx context.Context, ownerID, subject, message string, at time.Time) (types.Notification, error) {
	if strings.TrimSpace(subject) == "" || strings.TrimSpace(message) == "" {
		return types.Notification{}, apperr.Validation("subject and message are required")
	}
	if at.IsZero() {
		at = time.Now()
	}

	return s.scheduler.Schedule(ctx, types.Notification{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Subject:     subject,
		Message:     message,
		ScheduledAt: at,
	})
}

// List returns all of the owner's notifications regardless of state,
// ordered by scheduled time.
func (s *NotificationService) List(ctx context.Context, ownerID string) ([]types.Notification, error) {
	return retryRead(func() ([]types.Notification, error) {
		return s.repo.ListByOwner(ctx, ownerID)
	})
}

// Cancel prevents a pending notification from dispatching. Cancelling
// an already dispatched or cancelled notification is an idempotent
// success; an unknown id is NotFound. Ids belonging to other owners
// are reported as NotFound too, so callers cannot probe for existence.
func (s *NotificationService) Cancel(ctx context.Context, actor access.Principal, id string) error {
	notif, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("notification not found")
		}
		return err
	}
	if !access.AllowedOwned(actor.Role, access.OpNotificationCancel, actor.UserID, notif.OwnerID) {
		return apperr.NotFound("notification not found")
	}

	if _, err := s.repo.Cancel(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("notification not found")
		}
		return err
	}
	return nil
}
