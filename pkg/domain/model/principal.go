package model

import (
	"context"
	"slices"

	"github.com/monfocus/monfocus/pkg/domain/types"
)

// Principal is the requesting account, resolved once at request entry
// by the authentication collaborator. The tagged Kind replaces the
// original per-component role sniffing.
type Principal struct {
	Kind      types.PrincipalKind
	UserID    types.UserID
	CourseIDs []types.CourseID // taught courses for teachers, enrollments for visitors
}

// NewTeacher creates a teacher principal with the courses they teach
func NewTeacher(userID types.UserID, courseIDs []types.CourseID) *Principal {
	return &Principal{
		Kind:      types.PrincipalTeacher,
		UserID:    userID,
		CourseIDs: courseIDs,
	}
}

// NewVisitor creates a visitor (student/parent) principal with the
// courses they are enrolled in
func NewVisitor(userID types.UserID, courseIDs []types.CourseID) *Principal {
	return &Principal{
		Kind:      types.PrincipalVisitor,
		UserID:    userID,
		CourseIDs: courseIDs,
	}
}

// HasCourse reports whether the principal teaches or is enrolled in
// the given course
func (p *Principal) HasCourse(courseID types.CourseID) bool {
	return slices.Contains(p.CourseIDs, courseID)
}

// Teaches reports whether a teacher principal teaches the given course.
// Always false for visitors.
func (p *Principal) Teaches(courseID types.CourseID) bool {
	if p.Kind != types.PrincipalTeacher {
		return false
	}
	return p.HasCourse(courseID)
}

// CanRead reports whether the principal may read the note
func (p *Principal) CanRead(note *Note) bool {
	if p.Kind == types.PrincipalTeacher {
		return note.CourseID != "" && p.Teaches(note.CourseID)
	}
	return note.OwnerID == p.UserID
}

type principalCtxKey struct{}

// ContextWithPrincipal stores the resolved principal in the context
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// PrincipalFromContext retrieves the principal resolved by the request
// middleware. The second value is false outside an authenticated request.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(*Principal)
	return p, ok
}
