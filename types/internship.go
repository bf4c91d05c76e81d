package types

import "time"

// Internship is a posting students apply to. Only admins and recruiters
// may create internships.
type Internship struct {
	// ID is the unique identifier of the internship (e.g. "INT001").
	ID string `json:"id" db:"id"`

	// Title is the position title.
	Title string `json:"title" db:"title"`

	// Company is the hiring company name.
	Company string `json:"company" db:"company"`

	// Department is the target academic department.
	Department string `json:"department" db:"department"`

	// Skills lists the skills the posting asks for.
	Skills []string `json:"skills" db:"skills"`

	// Location is the work location.
	Location string `json:"location" db:"location"`

	// DurationWeeks is the internship duration in weeks.
	DurationWeeks int `json:"duration_weeks" db:"duration_weeks"`

	// Stipend is the monthly stipend, free-form (e.g. "15000 INR").
	Stipend string `json:"stipend" db:"stipend"`

	// ApplyBy is the application deadline. Submissions after this
	// instant are rejected.
	ApplyBy time.Time `json:"apply_by" db:"apply_by"`

	// MentorID is the user ID of the mentor assigned to review
	// applications for this internship. Empty when unassigned.
	MentorID string `json:"mentor_id,omitempty" db:"mentor_id"`

	// CreatedBy is the user ID of the admin or recruiter who posted it.
	CreatedBy string `json:"created_by" db:"created_by"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// InternshipFilter narrows internship listings.
type InternshipFilter struct {
	Department string
	Skills     []string
}
