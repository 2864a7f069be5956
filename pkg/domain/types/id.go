package types

// UserID identifies an account (teacher or visitor) managed by the
// accounts collaborator. The core never creates users.
type UserID string

// String returns the string representation of the user ID
func (id UserID) String() string {
	return string(id)
}

// CourseID identifies a subject course linking a visitor and a teacher
type CourseID string

// String returns the string representation of the course ID
func (id CourseID) String() string {
	return string(id)
}
