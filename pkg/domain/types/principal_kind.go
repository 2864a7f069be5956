package types

import "fmt"

// PrincipalKind distinguishes the two account variants of the platform.
// It replaces the original role sniffing with an explicit tag resolved
// once at request entry.
type PrincipalKind string

const (
	// PrincipalTeacher reads notes across all courses they teach
	PrincipalTeacher PrincipalKind = "teacher"
	// PrincipalVisitor (student or parent account) reads only their own notes
	PrincipalVisitor PrincipalKind = "visitor"
)

// IsValid checks if the principal kind is valid
func (k PrincipalKind) IsValid() bool {
	switch k {
	case PrincipalTeacher, PrincipalVisitor:
		return true
	default:
		return false
	}
}

// String returns the string representation of the principal kind
func (k PrincipalKind) String() string {
	return string(k)
}

// ParsePrincipalKind parses a string into a PrincipalKind
func ParsePrincipalKind(s string) (PrincipalKind, error) {
	kind := PrincipalKind(s)
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid principal kind: %s", s)
	}
	return kind, nil
}
