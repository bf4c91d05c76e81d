package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/placementhub/apiserver/internal/access"
	"github.com/placementhub/apiserver/internal/apperr"
	"github.com/placementhub/apiserver/internal/store"
	"github.com/placementhub/apiserver/types"
	"github.com/rs/zerolog"
)

// ApplicationRepository defines persistence operations for applications.
type ApplicationRepository interface {
	Get(ctx context.Context, id string) (types.Application, error)
	Create(ctx context.Context, app types.Application) (types.Application, error)
	ListByApplicant(ctx context.Context, applicantID string) ([]types.Application, error)
	ListByMentor(ctx context.Context, mentorID string) ([]types.Application, error)
	ListAll(ctx context.Context) ([]types.Application, error)
	UpdateStatusCAS(
		ctx context.Context,
		id string,
		expectedVersion int64,
		newStatus types.ApplicationStatus,
		feedback, decidedBy string,
		notif *types.Notification,
	) (types.Application, error)
}

// Notifier enqueues an already-persisted notification with the
// dispatcher. The store row is the source of truth; the dispatcher
// recovers pending rows on restart, so a missed enqueue is not lost.
type Notifier interface {
	Enqueue(notif types.Notification)
}

// transitions is the application state machine. Absent keys are
// terminal states. Withdrawn is reachable from every non-terminal
// state but only by the applicant, which actorAllowed enforces.
var transitions = map[types.ApplicationStatus][]types.ApplicationStatus{
	types.StatusSubmitted:             {types.StatusPendingMentorApproval, types.StatusWithdrawn},
	types.StatusPendingMentorApproval: {types.StatusApproved, types.StatusRejected, types.StatusWithdrawn},
	types.StatusApproved:              {types.StatusOffered, types.StatusWithdrawn},
}

// ApplicationService is the workflow engine governing an application
// from submission to final outcome. Transitions are linearized per
// application through a compare-and-set on the version column.
type ApplicationService struct {
	apps        ApplicationRepository
	internships InternshipRepository
	students    StudentRepository
	notifier    Notifier
	log         zerolog.Logger
}

func NewApplicationService(
	apps ApplicationRepository,
	internships InternshipRepository,
	students StudentRepository,
	notifier Notifier,
	log zerolog.Logger,
) *ApplicationService {
	return &ApplicationService{
		apps:        apps,
		internships: internships,
		students:    students,
		notifier:    notifier,
		log:         log,
	}
}

func (s *ApplicationService) Get(ctx context.Context, id string) (types.Application, error) {
	app, err := retryRead(func() (types.Application, error) {
		return s.apps.Get(ctx, id)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Application{}, apperr.NotFound("application not found")
		}
		return types.Application{}, err
	}
	return app, nil
}

// GetVisible returns the application only when the actor is allowed
// to see it: the applicant, the mentor of its internship, or a role
// with unrestricted listing.
func (s *ApplicationService) GetVisible(ctx context.Context, actor access.Principal, id string) (types.Application, error) {
	app, err := s.Get(ctx, id)
	if err != nil {
		return types.Application{}, err
	}

	switch access.ScopeFor(actor.Role, access.OpApplicationList) {
	case access.ScopeAny:
		return app, nil
	case access.ScopeOwner:
		if app.ApplicantID == actor.UserID {
			return app, nil
		}
	case access.ScopeMentor:
		internship, err := s.internships.Get(ctx, app.InternshipID)
		if err != nil {
			return types.Application{}, err
		}
		if internship.MentorID == actor.UserID {
			return app, nil
		}
	}
	return types.Application{}, apperr.Forbidden("not allowed to view this application")
}

// Submit creates a new application. The internship must exist, its
// deadline must not have passed, and the applicant must not already
// hold an application for it. The initial status is
// pending_mentor_approval when the internship has an assigned mentor,
// submitted otherwise.
func (s *ApplicationService) Submit(ctx context.Context, applicantID, internshipID, coverLetter string) (types.Application, error) {
	if strings.TrimSpace(coverLetter) == "" {
		return types.Application{}, apperr.Validation("cover letter is required")
	}

	internship, err := s.internships.Get(ctx, internshipID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Application{}, apperr.Validation("internship does not exist")
		}
		return types.Application{}, err
	}
	if time.Now().After(internship.ApplyBy) {
		return types.Application{}, apperr.Validation("application deadline has passed")
	}

	if _, err := s.students.Get(ctx, applicantID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Application{}, apperr.Validation("student profile is required to apply")
		}
		return types.Application{}, err
	}

	status := types.StatusSubmitted
	if internship.MentorID != "" {
		status = types.StatusPendingMentorApproval
	}

	created, err := s.apps.Create(ctx, types.Application{
		InternshipID: internshipID,
		ApplicantID:  applicantID,
		CoverLetter:  coverLetter,
		Status:       status,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.Application{}, apperr.Validation("already applied for this internship")
		}
		return types.Application{}, err
	}

	s.log.Info().
		Str("application_id", created.ID).
		Str("internship_id", internshipID).
		Str("applicant_id", applicantID).
		Str("status", created.Status.String()).
		Msg("application submitted")
	return created, nil
}

// UpdateStatusInput carries a requested transition.
type UpdateStatusInput struct {
	ApplicationID   string
	ExpectedVersion int64
	NewStatus       types.ApplicationStatus
	Feedback        string
}

// UpdateStatus advances the state machine. Check order is fixed:
// existence, then actor authorization, then transition validity, then
// the version compare-and-set. The status change and the applicant
// notification are committed as one atomic unit by the repository.
func (s *ApplicationService) UpdateStatus(ctx context.Context, actor access.Principal, in UpdateStatusInput) (types.Application, error) {
	app, err := s.apps.Get(ctx, in.ApplicationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Application{}, apperr.NotFound("application not found")
		}
		return types.Application{}, err
	}

	internship, err := s.internships.Get(ctx, app.InternshipID)
	if err != nil {
		return types.Application{}, err
	}

	if !s.actorAllowed(actor, app, internship, in.NewStatus) {
		return types.Application{}, apperr.Forbidden("not allowed to perform this transition")
	}

	if !reachable(app.Status, in.NewStatus) {
		return types.Application{}, apperr.InvalidTransition(
			"cannot move application from %s to %s", app.Status, in.NewStatus)
	}

	notif := &types.Notification{
		ID:          uuid.New().String(),
		OwnerID:     app.ApplicantID,
		Subject:     fmt.Sprintf("Application %s %s", app.ID, in.NewStatus),
		Message:     statusMessage(internship, in.NewStatus, in.Feedback),
		ScheduledAt: time.Now(),
		State:       types.NotificationPending,
	}

	updated, err := s.apps.UpdateStatusCAS(
		ctx,
		in.ApplicationID,
		in.ExpectedVersion,
		in.NewStatus,
		in.Feedback,
		actor.UserID,
		notif,
	)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrVersionConflict):
			return types.Application{}, apperr.Conflict(
				"application was modified concurrently; re-read and retry")
		case errors.Is(err, store.ErrNotFound):
			return types.Application{}, apperr.NotFound("application not found")
		default:
			return types.Application{}, err
		}
	}

	if s.notifier != nil {
		s.notifier.Enqueue(*notif)
	}

	s.log.Info().
		Str("application_id", updated.ID).
		Str("status", updated.Status.String()).
		Int64("version", updated.Version).
		Str("decided_by", actor.UserID).
		Msg("application status updated")
	return updated, nil
}

// List returns the applications visible to the actor: students see
// their own, mentors see those for internships they mentor, admins and
// recruiters see everything.
func (s *ApplicationService) List(ctx context.Context, actor access.Principal) ([]types.Application, error) {
	switch access.ScopeFor(actor.Role, access.OpApplicationList) {
	case access.ScopeOwner:
		return retryRead(func() ([]types.Application, error) {
			return s.apps.ListByApplicant(ctx, actor.UserID)
		})
	case access.ScopeMentor:
		return retryRead(func() ([]types.Application, error) {
			return s.apps.ListByMentor(ctx, actor.UserID)
		})
	case access.ScopeAny:
		return retryRead(func() ([]types.Application, error) {
			return s.apps.ListAll(ctx)
		})
	default:
		return nil, apperr.Forbidden("not allowed to list applications")
	}
}

// actorAllowed decides whether the actor may request the given target
// status for this application. Authorization is checked before
// transition validity, so a wrong-owner request fails with the same
// forbidden signal whether or not the transition itself is legal.
func (s *ApplicationService) actorAllowed(
	actor access.Principal,
	app types.Application,
	internship types.Internship,
	target types.ApplicationStatus,
) bool {
	if actor.Role == types.RoleAdmin {
		return true
	}

	switch target {
	case types.StatusWithdrawn:
		// Only the applicant may withdraw.
		return actor.UserID == app.ApplicantID
	case types.StatusApproved, types.StatusRejected, types.StatusPendingMentorApproval:
		return actor.Role == types.RoleMentor && internship.MentorID == actor.UserID
	case types.StatusOffered:
		return actor.Role == types.RoleRecruiter
	default:
		return false
	}
}

func reachable(from, to types.ApplicationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func statusMessage(internship types.Internship, status types.ApplicationStatus, feedback string) string {
	msg := fmt.Sprintf("Your application for %q at %s is now %s.", internship.Title, internship.Company, status)
	if strings.TrimSpace(feedback) != "" {
		msg += " Feedback: " + feedback
	}
	return msg
}
