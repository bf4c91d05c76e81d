// Package access encodes the role capability matrix as static data.
// Every protected operation is checked here instead of branching on
// roles inside handlers, so the matrix is testable on its own.
package access

import "github.com/placementhub/apiserver/types"

// Operation names a protected action on a resource class.
type Operation string

const (
	OpProfileRead          Operation = "profile.read"
	OpStudentCreate        Operation = "student.create"
	OpStudentRead          Operation = "student.read"
	OpStudentUpdate        Operation = "student.update"
	OpStudentDelete        Operation = "student.delete"
	OpStudentList          Operation = "student.list"
	OpInternshipCreate     Operation = "internship.create"
	OpInternshipList       Operation = "internship.list"
	OpApplicationSubmit    Operation = "application.submit"
	OpApplicationList      Operation = "application.list"
	OpApplicationDecide    Operation = "application.decide"
	OpResumeUpload         Operation = "resume.upload"
	OpResumeRead           Operation = "resume.read"
	OpNotificationSchedule Operation = "notification.schedule"
	OpNotificationList     Operation = "notification.list"
	OpNotificationCancel   Operation = "notification.cancel"
)

// Scope is the row-level reach granted to a role for an operation.
type Scope int

const (
	// ScopeNone denies the operation outright.
	ScopeNone Scope = iota

	// ScopeOwner restricts the operation to resources the caller owns.
	ScopeOwner

	// ScopeMentor restricts the operation to applications of
	// internships the caller mentors.
	ScopeMentor

	// ScopeAny places no row-level restriction.
	ScopeAny
)

// capabilities is the static (operation, role) -> scope table. Absent
// entries deny. Admin rows are ScopeAny throughout: admins bypass
// ownership checks.
var capabilities = map[Operation]map[types.Role]Scope{
	OpProfileRead: {
		types.RoleStudent:   ScopeOwner,
		types.RoleMentor:    ScopeOwner,
		types.RoleAdmin:     ScopeAny,
		types.RoleRecruiter: ScopeOwner,
	},
	OpStudentCreate: {
		types.RoleStudent: ScopeOwner,
		types.RoleAdmin:   ScopeAny,
	},
	OpStudentRead: {
		types.RoleStudent:   ScopeOwner,
		types.RoleMentor:    ScopeAny,
		types.RoleAdmin:     ScopeAny,
		types.RoleRecruiter: ScopeAny,
	},
	OpStudentUpdate: {
		types.RoleStudent: ScopeOwner,
		types.RoleAdmin:   ScopeAny,
	},
	OpStudentDelete: {
		types.RoleStudent: ScopeOwner,
		types.RoleAdmin:   ScopeAny,
	},
	OpStudentList: {
		types.RoleMentor:    ScopeAny,
		types.RoleAdmin:     ScopeAny,
		types.RoleRecruiter: ScopeAny,
	},
	OpInternshipCreate: {
		types.RoleAdmin:     ScopeAny,
		types.RoleRecruiter: ScopeAny,
	},
	OpInternshipList: {
		types.RoleStudent:   ScopeAny,
		types.RoleMentor:    ScopeAny,
		types.RoleAdmin:     ScopeAny,
		types.RoleRecruiter: ScopeAny,
	},
	OpApplicationSubmit: {
		types.RoleStudent: ScopeOwner,
	},
	OpApplicationList: {
		types.RoleStudent:   ScopeOwner,
		types.RoleMentor:    ScopeMentor,
		types.RoleAdmin:     ScopeAny,
		types.RoleRecruiter: ScopeAny,
	},
	// Students hold the decide capability only for withdrawal; the
	// workflow engine enforces which transitions each actor may take.
	OpApplicationDecide: {
		types.RoleStudent:   ScopeOwner,
		types.RoleMentor:    ScopeMentor,
		types.RoleAdmin:     ScopeAny,
		types.RoleRecruiter: ScopeAny,
	},
	OpResumeUpload: {
		types.RoleStudent: ScopeOwner,
		types.RoleAdmin:   ScopeAny,
	},
	OpResumeRead: {
		types.RoleStudent:   ScopeOwner,
		types.RoleMentor:    ScopeAny,
		types.RoleAdmin:     ScopeAny,
		types.RoleRecruiter: ScopeAny,
	},
	OpNotificationSchedule: {
		types.RoleStudent:   ScopeOwner,
		types.RoleMentor:    ScopeOwner,
		types.RoleAdmin:     ScopeAny,
		types.RoleRecruiter: ScopeOwner,
	},
	OpNotificationList: {
		types.RoleStudent:   ScopeOwner,
		types.RoleMentor:    ScopeOwner,
		types.RoleAdmin:     ScopeAny,
		types.RoleRecruiter: ScopeOwner,
	},
	OpNotificationCancel: {
		types.RoleStudent:   ScopeOwner,
		types.RoleMentor:    ScopeOwner,
		types.RoleAdmin:     ScopeAny,
		types.RoleRecruiter: ScopeOwner,
	},
}

// ScopeFor returns the scope granted to role for op. ScopeNone means
// the role lacks the capability entirely.
func ScopeFor(role types.Role, op Operation) Scope {
	row, ok := capabilities[op]
	if !ok {
		return ScopeNone
	}
	return row[role]
}

// Allowed reports whether role holds the capability for op at all,
// regardless of row-level scope.
func Allowed(role types.Role, op Operation) bool {
	return ScopeFor(role, op) != ScopeNone
}

// AllowedOwned decides an operation against a specific resource owner.
// ScopeAny passes unconditionally, ScopeOwner requires the caller to
// own the resource. Ownership failures are indistinguishable from
// capability failures to the caller.
func AllowedOwned(role types.Role, op Operation, subjectID, ownerID string) bool {
	switch ScopeFor(role, op) {
	case ScopeAny:
		return true
	case ScopeOwner:
		return subjectID != "" && subjectID == ownerID
	default:
		return false
	}
}
