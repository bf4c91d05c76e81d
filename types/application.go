package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Application represents a student's application to an internship.
// Its status moves through a fixed state machine and every accepted
// transition increments Version by exactly one.
type Application struct {
	// ID is the unique identifier of the application (e.g. "APP001").
	ID string `json:"id" db:"id"`

	// InternshipID identifies the internship applied to.
	InternshipID string `json:"internship_id" db:"internship_id"`

	// ApplicantID identifies the student who applied.
	ApplicantID string `json:"applicant_id" db:"applicant_id"`

	// CoverLetter is the applicant's cover letter. Required.
	CoverLetter string `json:"cover_letter" db:"cover_letter"`

	// Status is the current workflow state.
	Status ApplicationStatus `json:"status" db:"status"`

	// Version is a monotonically increasing counter used for optimistic
	// concurrency. A status update must present the version it read;
	// a mismatch is rejected as a conflict.
	Version int64 `json:"version" db:"version"`

	// Feedback is the decision feedback recorded with a transition.
	Feedback string `json:"feedback,omitempty" db:"feedback"`

	// DecidedBy is the user ID of the actor of the last transition.
	DecidedBy string `json:"decided_by,omitempty" db:"decided_by"`

	// DecidedAt is the timestamp of the last transition.
	DecidedAt *time.Time `json:"decided_at,omitempty" db:"decided_at"`

	// CreatedAt is the timestamp when the application was submitted.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ApplicationStatus is the workflow state of an application.
type ApplicationStatus int

// Workflow states. Rejected, Offered, and Withdrawn are terminal.
const (
	StatusSubmitted ApplicationStatus = iota
	StatusPendingMentorApproval
	StatusApproved
	StatusRejected
	StatusOffered
	StatusWithdrawn
)

// String returns the wire representation used in API payloads and the
// database.
func (s ApplicationStatus) String() string {
	switch s {
	case StatusSubmitted:
		return "submitted"
	case StatusPendingMentorApproval:
		return "pending_mentor_approval"
	case StatusApproved:
		return "approved"
	case StatusRejected:
		return "rejected"
	case StatusOffered:
		return "offered"
	case StatusWithdrawn:
		return "withdrawn"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is permitted from s.
func (s ApplicationStatus) Terminal() bool {
	switch s {
	case StatusRejected, StatusOffered, StatusWithdrawn:
		return true
	default:
		return false
	}
}

// ParseApplicationStatus maps a wire string back to a status.
func ParseApplicationStatus(raw string) (ApplicationStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "submitted":
		return StatusSubmitted, nil
	case "pending_mentor_approval":
		return StatusPendingMentorApproval, nil
	case "approved":
		return StatusApproved, nil
	case "rejected":
		return StatusRejected, nil
	case "offered":
		return StatusOffered, nil
	case "withdrawn":
		return StatusWithdrawn, nil
	default:
		return StatusSubmitted, fmt.Errorf("unknown application status %q", raw)
	}
}

func (s ApplicationStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *ApplicationStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseApplicationStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
