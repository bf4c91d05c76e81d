package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/placementhub/apiserver/types"
)

// ApplicationRepository handles persistence for internship applications.
// Status updates go through a compare-and-set on the version column so
// concurrent writers observe a total order per application.
type ApplicationRepository struct {
	db *sql.DB
}

func NewApplicationRepository(db *sql.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

const applicationColumns = `id, internship_id, applicant_id, cover_letter, status, version, feedback, decided_by, decided_at, created_at, updated_at`

func (r *ApplicationRepository) Get(ctx context.Context, id string) (types.Application, error) {
	const query = `
		SELECT ` + applicationColumns + `
		FROM applications
		WHERE id = $1`
	return scanApplication(r.db.QueryRowContext(ctx, query, id))
}

func (r *ApplicationRepository) Create(ctx context.Context, app types.Application) (types.Application, error) {
	now := time.Now()
	app.CreatedAt = now
	app.UpdatedAt = now
	app.Version = 1

	var seq int64
	if err := r.db.QueryRowContext(ctx, `SELECT nextval('application_id_seq')`).Scan(&seq); err != nil {
		return types.Application{}, err
	}
	app.ID = fmt.Sprintf("APP%03d", seq)

	const query = `
		INSERT INTO applications (id, internship_id, applicant_id, cover_letter, status, version, feedback, decided_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		app.ID,
		app.InternshipID,
		app.ApplicantID,
		app.CoverLetter,
		app.Status.String(),
		app.Version,
		app.Feedback,
		app.DecidedBy,
		app.CreatedAt,
		app.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return types.Application{}, ErrDuplicate
		}
		return types.Application{}, err
	}
	return app, nil
}

// ListByApplicant returns the applicant's applications, newest first.
func (r *ApplicationRepository) ListByApplicant(ctx context.Context, applicantID string) ([]types.Application, error) {
	const query = `
		SELECT ` + applicationColumns + `
		FROM applications
		WHERE applicant_id = $1
		ORDER BY created_at DESC`
	return r.queryApplications(ctx, query, applicantID)
}

// ListByMentor returns applications for internships the mentor is
// assigned to, newest first.
func (r *ApplicationRepository) ListByMentor(ctx context.Context, mentorID string) ([]types.Application, error) {
	const query = `
		SELECT a.id, a.internship_id, a.applicant_id, a.cover_letter, a.status, a.version, a.feedback, a.decided_by, a.decided_at, a.created_at, a.updated_at
		FROM applications a
		JOIN internships i ON i.id = a.internship_id
		WHERE i.mentor_id = $1
		ORDER BY a.created_at DESC`
	return r.queryApplications(ctx, query, mentorID)
}

// ListAll returns every application, newest first.
func (r *ApplicationRepository) ListAll(ctx context.Context) ([]types.Application, error) {
	const query = `
		SELECT ` + applicationColumns + `
		FROM applications
		ORDER BY created_at DESC`
	return r.queryApplications(ctx, query)
}

// UpdateStatusCAS advances the application's status if and only if the
// stored version still equals expectedVersion, incrementing the version
// by one. When notif is non-nil it is inserted in the same transaction,
// so the status change and the scheduled notification commit or fail
// together. Returns ErrVersionConflict when another writer advanced the
// version first and ErrNotFound when the id does not resolve.
func (r *ApplicationRepository) UpdateStatusCAS(
	ctx context.Context,
	id string,
	expectedVersion int64,
	newStatus types.ApplicationStatus,
	feedback, decidedBy string,
	notif *types.Notification,
) (types.Application, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Application{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	const update = `
		UPDATE applications
		SET status = $1,
			version = version + 1,
			feedback = $2,
			decided_by = $3,
			decided_at = $4,
			updated_at = $4
		WHERE id = $5 AND version = $6
		RETURNING ` + applicationColumns
	app, err := scanApplication(tx.QueryRowContext(
		ctx,
		update,
		newStatus.String(),
		feedback,
		decidedBy,
		now,
		id,
		expectedVersion,
	))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return types.Application{}, err
		}
		// No row matched: either the id is unknown or the version is
		// stale. Distinguish the two for the caller.
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM applications WHERE id = $1)`, id).Scan(&exists); err != nil {
			return types.Application{}, err
		}
		if !exists {
			return types.Application{}, ErrNotFound
		}
		return types.Application{}, ErrVersionConflict
	}

	if notif != nil {
		const insertNotif = `
			INSERT INTO notifications (id, owner_id, subject, message, scheduled_at, state, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`
		if _, err := tx.ExecContext(
			ctx,
			insertNotif,
			notif.ID,
			notif.OwnerID,
			notif.Subject,
			notif.Message,
			notif.ScheduledAt,
			notif.State.String(),
			now,
		); err != nil {
			return types.Application{}, err
		}
		notif.CreatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return types.Application{}, err
	}
	return app, nil
}

func (r *ApplicationRepository) queryApplications(ctx context.Context, query string, args ...any) ([]types.Application, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []types.Application
	for rows.Next() {
		var app types.Application
		var status string
		var decidedAt sql.NullTime
		if err := rows.Scan(
			&app.ID,
			&app.InternshipID,
			&app.ApplicantID,
			&app.CoverLetter,
			&status,
			&app.Version,
			&app.Feedback,
			&app.DecidedBy,
			&decidedAt,
			&app.CreatedAt,
			&app.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if app.Status, err = types.ParseApplicationStatus(status); err != nil {
			return nil, err
		}
		if decidedAt.Valid {
			t := decidedAt.Time
			app.DecidedAt = &t
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (types.Application, error) {
	var app types.Application
	var status string
	var decidedAt sql.NullTime
	err := row.Scan(
		&app.ID,
		&app.InternshipID,
		&app.ApplicantID,
		&app.CoverLetter,
		&status,
		&app.Version,
		&app.Feedback,
		&app.DecidedBy,
		&decidedAt,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Application{}, ErrNotFound
		}
		return types.Application{}, err
	}
	if app.Status, err = types.ParseApplicationStatus(status); err != nil {
		return types.Application{}, err
	}
	if decidedAt.Valid {
		t := decidedAt.Time
		app.DecidedAt = &t
	}
	return app, nil
}
