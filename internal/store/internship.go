package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/placementhub/apiserver/types"
)

// InternshipRepository handles persistence for internship postings.
type InternshipRepository struct {
	db *sql.DB
}

func NewInternshipRepository(db *sql.DB) *InternshipRepository {
	return &InternshipRepository{db: db}
}

const internshipColumns = `id, title, company, department, skills, location, duration_weeks, stipend, apply_by, mentor_id, created_by, created_at`

func (r *InternshipRepository) Get(ctx context.Context, id string) (types.Internship, error) {
	const query = `
		SELECT ` + internshipColumns + `
		FROM internships
		WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var internship types.Internship
	err := row.Scan(
		&internship.ID,
		&internship.Title,
		&internship.Company,
		&internship.Department,
		pq.Array(&internship.Skills),
		&internship.Location,
		&internship.DurationWeeks,
		&internship.Stipend,
		&internship.ApplyBy,
		&internship.MentorID,
		&internship.CreatedBy,
		&internship.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Internship{}, ErrNotFound
		}
		return types.Internship{}, err
	}
	return internship, nil
}

func (r *InternshipRepository) Create(ctx context.Context, internship types.Internship) (types.Internship, error) {
	internship.CreatedAt = time.Now()

	var seq int64
	if err := r.db.QueryRowContext(ctx, `SELECT nextval('internship_id_seq')`).Scan(&seq); err != nil {
		return types.Internship{}, err
	}
	internship.ID = fmt.Sprintf("INT%03d", seq)

	const query = `
		INSERT INTO internships (` + internshipColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		internship.ID,
		internship.Title,
		internship.Company,
		internship.Department,
		pq.Array(internship.Skills),
		internship.Location,
		internship.DurationWeeks,
		internship.Stipend,
		internship.ApplyBy,
		internship.MentorID,
		internship.CreatedBy,
		internship.CreatedAt,
	); err != nil {
		return types.Internship{}, err
	}
	return internship, nil
}

// List returns internships matching the filter, newest first. An empty
// filter returns everything.
func (r *InternshipRepository) List(ctx context.Context, filter types.InternshipFilter) ([]types.Internship, error) {
	query := `
		SELECT ` + internshipColumns + `
		FROM internships`
	var clauses []string
	var args []any
	if filter.Department != "" {
		args = append(args, filter.Department)
		clauses = append(clauses, fmt.Sprintf("department = $%d", len(args)))
	}
	if len(filter.Skills) > 0 {
		args = append(args, pq.Array(filter.Skills))
		clauses = append(clauses, fmt.Sprintf("skills && $%d", len(args)))
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var internships []types.Internship
	for rows.Next() {
		var internship types.Internship
		if err := rows.Scan(
			&internship.ID,
			&internship.Title,
			&internship.Company,
			&internship.Department,
			pq.Array(&internship.Skills),
			&internship.Location,
			&internship.DurationWeeks,
			&internship.Stipend,
			&internship.ApplyBy,
			&internship.MentorID,
			&internship.CreatedBy,
			&internship.CreatedAt,
		); err != nil {
			return nil, err
		}
		internships = append(internships, internship)
	}
	return internships, rows.Err()
}
