package student

import "time"

// DateLayout is the wire and form layout of a date of birth.
const DateLayout = "2006-01-02"

// Student represents a student record in the system.
type Student struct {
	ID          int64     // ID is the server-generated identifier, never changed after insert
	Name        string    // Name is the full name of the student
	Email       string    // Email is unique across all students
	DateOfBirth time.Time // DateOfBirth is a calendar date at UTC midnight
	Photo       string    // Photo is the opaque reference issued by the photo store, empty when absent
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasPhoto reports whether a photo is attached to the student.
func (s *Student) HasPhoto() bool {
	return s.Photo != ""
}

// DateOnly truncates t to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a date of birth in DateLayout.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOnly(t), nil
}
