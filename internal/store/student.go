package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/placementhub/apiserver/types"
)

// StudentRepository handles persistence for student profiles.
type StudentRepository struct {
	db *sql.DB
}

func NewStudentRepository(db *sql.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `owner_id, name, department, semester, cgpa, skills, resume_key, phone, summary, created_at, updated_at`

func (r *StudentRepository) Get(ctx context.Context, ownerID string) (types.StudentProfile, error) {
	const query = `
		SELECT ` + studentColumns + `
		FROM student_profiles
		WHERE owner_id = $1`
	return scanStudent(r.db.QueryRowContext(ctx, query, ownerID))
}

func (r *StudentRepository) List(ctx context.Context) ([]types.StudentProfile, error) {
	const query = `
		SELECT ` + studentColumns + `
		FROM student_profiles
		ORDER BY owner_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []types.StudentProfile
	for rows.Next() {
		profile, err := scanStudentRows(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, rows.Err()
}

func (r *StudentRepository) Create(ctx context.Context, profile types.StudentProfile) (types.StudentProfile, error) {
	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	const query = `
		INSERT INTO student_profiles (` + studentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		profile.OwnerID,
		profile.Name,
		profile.Department,
		profile.Semester,
		profile.CGPA,
		pq.Array(profile.Skills),
		profile.ResumeKey,
		profile.Phone,
		profile.Summary,
		profile.CreatedAt,
		profile.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return types.StudentProfile{}, ErrDuplicate
		}
		return types.StudentProfile{}, err
	}
	return profile, nil
}

func (r *StudentRepository) Update(ctx context.Context, profile types.StudentProfile) (types.StudentProfile, error) {
	profile.UpdatedAt = time.Now()

	const query = `
		UPDATE student_profiles
		SET name = $1,
			department = $2,
			semester = $3,
			cgpa = $4,
			skills = $5,
			resume_key = $6,
			phone = $7,
			summary = $8,
			updated_at = $9
		WHERE owner_id = $10`
	result, err := r.db.ExecContext(
		ctx,
		query,
		profile.Name,
		profile.Department,
		profile.Semester,
		profile.CGPA,
		pq.Array(profile.Skills),
		profile.ResumeKey,
		profile.Phone,
		profile.Summary,
		profile.UpdatedAt,
		profile.OwnerID,
	)
	if err != nil {
		return types.StudentProfile{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.StudentProfile{}, err
	}
	if affected == 0 {
		return types.StudentProfile{}, ErrNotFound
	}
	return profile, nil
}

func (r *StudentRepository) Delete(ctx context.Context, ownerID string) error {
	const query = `DELETE FROM student_profiles WHERE owner_id = $1`
	result, err := r.db.ExecContext(ctx, query, ownerID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetResumeKey records the object storage key of the owner's resume.
func (r *StudentRepository) SetResumeKey(ctx context.Context, ownerID, key string) error {
	const query = `
		UPDATE student_profiles
		SET resume_key = $1, updated_at = $2
		WHERE owner_id = $3`
	result, err := r.db.ExecContext(ctx, query, key, time.Now(), ownerID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanStudent(row *sql.Row) (types.StudentProfile, error) {
	var profile types.StudentProfile
	err := row.Scan(
		&profile.OwnerID,
		&profile.Name,
		&profile.Department,
		&profile.Semester,
		&profile.CGPA,
		pq.Array(&profile.Skills),
		&profile.ResumeKey,
		&profile.Phone,
		&profile.Summary,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.StudentProfile{}, ErrNotFound
		}
		return types.StudentProfile{}, err
	}
	return profile, nil
}

func scanStudentRows(rows *sql.Rows) (types.StudentProfile, error) {
	var profile types.StudentProfile
	err := rows.Scan(
		&profile.OwnerID,
		&profile.Name,
		&profile.Department,
		&profile.Semester,
		&profile.CGPA,
		pq.Array(&profile.Skills),
		&profile.ResumeKey,
		&profile.Phone,
		&profile.Summary,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return types.StudentProfile{}, err
	}
	return profile, nil
}
