package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/placementhub/apiserver/types"
)

// NotificationRepository handles persistence for scheduled
// notifications. All state changes are single-statement compare-and-set
// writes guarded by the current state, never external locks.
type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, owner_id, subject, message, scheduled_at, state, dispatched_at, created_at`

func (r *NotificationRepository) Get(ctx context.Context, id string) (types.Notification, error) {
	const query = `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)
	return scanNotification(row.Scan)
}

func (r *NotificationRepository) Create(ctx context.Context, notif types.Notification) (types.Notification, error) {
	notif.CreatedAt = time.Now()

	const query = `
		INSERT INTO notifications (id, owner_id, subject, message, scheduled_at, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		notif.ID,
		notif.OwnerID,
		notif.Subject,
		notif.Message,
		notif.ScheduledAt,
		notif.State.String(),
		notif.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return types.Notification{}, ErrDuplicate
		}
		return types.Notification{}, err
	}
	return notif, nil
}

// ListByOwner returns all of the owner's notifications regardless of
// state, ordered by scheduled time.
func (r *NotificationRepository) ListByOwner(ctx context.Context, ownerID string) ([]types.Notification, error) {
	const query = `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE owner_id = $1
		ORDER BY scheduled_at`
	return r.queryNotifications(ctx, query, ownerID)
}

// ListPending returns every pending notification ordered by scheduled
// time. The dispatcher reloads its queue from this on startup.
func (r *NotificationRepository) ListPending(ctx context.Context) ([]types.Notification, error) {
	const query = `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE state = 'pending'
		ORDER BY scheduled_at`
	return r.queryNotifications(ctx, query)
}

// MarkDispatched transitions the notification from pending to
// dispatched. It reports whether this caller won the transition; a
// false return with nil error means another actor already moved the
// notification out of pending.
func (r *NotificationRepository) MarkDispatched(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `
		UPDATE notifications
		SET state = 'dispatched', dispatched_at = $1
		WHERE id = $2 AND state = 'pending'`
	result, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// Cancel transitions the notification from pending to cancelled. It
// reports whether this caller won the transition; cancelling an
// already dispatched or cancelled notification returns (false, nil).
// An unknown id returns ErrNotFound.
func (r *NotificationRepository) Cancel(ctx context.Context, id string) (bool, error) {
	const query = `
		UPDATE notifications
		SET state = 'cancelled'
		WHERE id = $1 AND state = 'pending'`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 1 {
		return true, nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM notifications WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}

func (r *NotificationRepository) queryNotifications(ctx context.Context, query string, args ...any) ([]types.Notification, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifs []types.Notification
	for rows.Next() {
		notif, err := scanNotification(rows.Scan)
		if err != nil {
			return nil, err
		}
		notifs = append(notifs, notif)
	}
	return notifs, rows.Err()
}

func scanNotification(scan func(dest ...any) error) (types.Notification, error) {
	var notif types.Notification
	var state string
	var dispatchedAt sql.NullTime
	err := scan(
		&notif.ID,
		&notif.OwnerID,
		&notif.Subject,
		&notif.Message,
		&notif.ScheduledAt,
		&state,
		&dispatchedAt,
		&notif.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Notification{}, ErrNotFound
		}
		return types.Notification{}, err
	}
	if notif.State, err = types.ParseNotificationState(state); err != nil {
		return types.Notification{}, err
	}
	if dispatchedAt.Valid {
		t := dispatchedAt.Time
		notif.DispatchedAt = &t
	}
	return notif, nil
}
