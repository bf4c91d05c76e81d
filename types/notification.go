package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Notification is a one-shot message scheduled for future delivery.
// A notification in state dispatched or cancelled is immutable.
type Notification struct {
	// ID is the unique identifier of the notification (a UUID).
	ID string `json:"id" db:"id"`

	// OwnerID is the user ID the notification belongs to.
	OwnerID string `json:"owner_id" db:"owner_id"`

	// Subject is the short title of the notification.
	Subject string `json:"subject" db:"subject"`

	// Message is the notification body.
	Message string `json:"message" db:"message"`

	// ScheduledAt is the instant at which the notification becomes due.
	// A past instant is dispatched on the next scheduler tick.
	ScheduledAt time.Time `json:"scheduled_at" db:"scheduled_at"`

	// State is the delivery state.
	State NotificationState `json:"state" db:"state"`

	// DispatchedAt is set when the dispatcher commits the dispatched
	// transition.
	DispatchedAt *time.Time `json:"dispatched_at,omitempty" db:"dispatched_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NotificationState is the delivery state of a notification.
type NotificationState int

const (
	NotificationPending NotificationState = iota
	NotificationDispatched
	NotificationCancelled
)

func (s NotificationState) String() string {
	switch s {
	case NotificationPending:
		return "pending"
	case NotificationDispatched:
		return "dispatched"
	case NotificationCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseNotificationState maps a wire string back to a state.
func ParseNotificationState(raw string) (NotificationState, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return NotificationPending, nil
	case "dispatched":
		return NotificationDispatched, nil
	case "cancelled":
		return NotificationCancelled, nil
	default:
		return NotificationPending, fmt.Errorf("unknown notification state %q", raw)
	}
}

func (s NotificationState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *NotificationState) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseNotificationState(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
