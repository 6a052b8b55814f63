package student

import (
	"io"

	domain "student-service/internal/domain/student"
)

// PhotoUpload is an uploaded photo as received by the transport layer.
type PhotoUpload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// Empty reports whether no usable photo was supplied.
func (p *PhotoUpload) Empty() bool {
	return p == nil || p.Content == nil || p.Size == 0
}

// CreateStudentRequest represents the request payload for creating a new student.
type CreateStudentRequest struct {
	Name        string `validate:"required,max=100"`
	Email       string `validate:"required,email,max=254"`
	DateOfBirth string `validate:"required,datetime=2006-01-02"`
	Photo       *PhotoUpload
}

// UpdateStudentRequest represents the request payload for updating an existing student.
// Empty fields leave the stored value unchanged.
type UpdateStudentRequest struct {
	ID          int64  `validate:"required,gt=0"`
	Name        string `validate:"omitempty,max=100"`
	Email       string `validate:"omitempty,email,max=254"`
	DateOfBirth string `validate:"omitempty,datetime=2006-01-02"`
	Photo       *PhotoUpload
}

// DeleteStudentRequest represents the request payload for deleting a student.
type DeleteStudentRequest struct {
	ID int64
}

// GetStudentRequest represents the request payload for retrieving a student.
type GetStudentRequest struct {
	ID int64
}

// ListStudentsRequest represents the request payload for listing students.
// Name and Email are optional case-insensitive substring filters.
type ListStudentsRequest struct {
	Name          string
	Email         string
	Page          int64
	Size          int64
	SortField     string
	SortDirection string
}

// StudentResponse represents a student DTO for API responses.
type StudentResponse struct {
	ID          int64
	Name        string
	Email       string
	DateOfBirth string
	Photo       string
}

// ListStudentsResponse represents the response payload for student listing.
type ListStudentsResponse struct {
	Students   []StudentResponse
	Pagination *domain.Pagination
}

// PhotoResponse carries an opened photo. The caller closes Content.
type PhotoResponse struct {
	ContentType string
	Content     io.ReadCloser
}

func toResponse(s *domain.Student) *StudentResponse {
	return &StudentResponse{
		ID:          s.ID,
		Name:        s.Name,
		Email:       s.Email,
		DateOfBirth: s.DateOfBirth.Format(domain.DateLayout),
		Photo:       s.Photo,
	}
}
