package types

import "time"

// StudentProfile holds the academic profile owned by a single student
// account. It is mutable by the owner or an admin only.
type StudentProfile struct {
	// OwnerID is the user ID of the student who owns this profile.
	OwnerID string `json:"owner_id" db:"owner_id"`

	// Name mirrors the display name captured at registration.
	Name string `json:"name" db:"name"`

	// Department is the academic department (e.g. "CSE").
	Department string `json:"department" db:"department"`

	// Semester is the current semester, between 1 and 8.
	Semester int `json:"semester" db:"semester"`

	// CGPA is the cumulative grade point average on a 0-10 scale.
	CGPA float64 `json:"cgpa" db:"cgpa"`

	// Skills lists the student's declared skills.
	Skills []string `json:"skills" db:"skills"`

	// ResumeKey is the object storage key of the uploaded resume PDF,
	// empty when no resume has been uploaded.
	ResumeKey string `json:"resume_key,omitempty" db:"resume_key"`

	// Phone is an optional contact number.
	Phone string `json:"phone,omitempty" db:"phone"`

	// Summary is an optional free-text profile summary.
	Summary string `json:"summary,omitempty" db:"summary"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
