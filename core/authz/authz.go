package authz

import (
	"context"

	"github.com/pkg/errors"
)

// Roles
const (
	RoleAdmin      = "admin"
	RoleInstructor = "instructor"
	RoleStudent    = "student"
)

var (
	AllRoles = []string{RoleAdmin, RoleInstructor, RoleStudent}

	// rolePriorities is the explicit role hierarchy: a role may only be
	// granted by a credential with an equal or higher priority.
	rolePriorities = map[string]int{
		RoleAdmin:      30,
		RoleInstructor: 20,
		RoleStudent:    10,
	}

	ErrForbidden = errors.New("permission denied")
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

func IsValidRole(role string) bool {
	_, ok := rolePriorities[role]
	return ok
}

// Credential is the decoded, verified claim set derived from a signed token.
// All authorization decisions go through it; claims are never read raw.
type Credential struct {
	ID    string
	Role  string
	Name  string
	Email string
}

func (c Credential) IsAdmin() bool      { return c.Role == RoleAdmin }
func (c Credential) IsInstructor() bool { return c.Role == RoleInstructor }
func (c Credential) IsStudent() bool    { return c.Role == RoleStudent }

func (c Credential) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if c.Role == role {
			return true
		}
	}
	return false
}

// CanGrantRole reports whether the credential may create or update a user
// with the given role. Admin and instructor accounts may only be minted by
// an admin; anyone (incl. anonymous registration) may create a student.
func (c Credential) CanGrantRole(role string) bool {
	return RolePriority(role) <= RolePriority(RoleStudent) || c.IsAdmin()
}

// RequireRole fails with ErrForbidden unless the credential carries one of
// the allowed roles.
func RequireRole(cred Credential, roles ...string) error {
	if cred.HasAnyRole(roles...) {
		return nil
	}
	return ErrForbidden
}

// EnrollmentChecker looks up enrollment state fresh on every call; decisions
// are never cached across requests.
type EnrollmentChecker interface {
	IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error)
}

type Engine struct {
	enrollments EnrollmentChecker
}

func NewEngine(enrollments EnrollmentChecker) *Engine {
	return &Engine{enrollments: enrollments}
}

// IsCourseInstructor reports whether the credential may act as the
// instructor of the course with the given instructorID: admins always may;
// instructors only when the course is theirs.
func (e *Engine) IsCourseInstructor(cred Credential, instructorID string) bool {
	if cred.IsAdmin() {
		return true
	}
	return cred.IsInstructor() && cred.ID == instructorID
}

// IsStudentEnrolled reports whether the credential may act as a student of
// the course: admins always may; anyone else needs an enrollment row.
// Enrollment rows only exist for students by construction, so the role is
// not re-checked here.
func (e *Engine) IsStudentEnrolled(ctx context.Context, cred Credential, courseID string) (bool, error) {
	if cred.IsAdmin() {
		return true, nil
	}
	enrolled, err := e.enrollments.IsEnrolled(ctx, courseID, cred.ID)
	if err != nil {
		return false, errors.Wrap(err, "checking enrollment")
	}
	return enrolled, nil
}
