package student

import (
	"context"
	"io"

	domain "student-service/internal/domain/student"
)

// Usecase defines the interface for student business logic operations.
type Usecase interface {
	CreateStudent(ctx context.Context, in CreateStudentRequest) (*StudentResponse, error)
	UpdateStudent(ctx context.Context, in UpdateStudentRequest) (*StudentResponse, error)
	DeleteStudent(ctx context.Context, in DeleteStudentRequest) error
	GetStudent(ctx context.Context, in GetStudentRequest) (*StudentResponse, error)
	ListStudents(ctx context.Context, in ListStudentsRequest) (*ListStudentsResponse, error)
	GetPhoto(ctx context.Context, in GetStudentRequest) (*PhotoResponse, error)
}

// Repository defines the data access operations on stored students.
// Search methods match case-insensitive substrings and return one page
// plus the total count of the full result set.
type Repository interface {
	Save(ctx context.Context, s *domain.Student) (*domain.Student, error)
	FindByID(ctx context.Context, id int64) (*domain.Student, error)
	DeleteByID(ctx context.Context, id int64) error
	ExistsByID(ctx context.Context, id int64) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	FindAll(ctx context.Context, p domain.PageRequest) (*domain.Page, error)
	SearchByName(ctx context.Context, name string, p domain.PageRequest) (*domain.Page, error)
	SearchByEmail(ctx context.Context, email string, p domain.PageRequest) (*domain.Page, error)
	SearchByNameAndEmail(ctx context.Context, name, email string, p domain.PageRequest) (*domain.Page, error)
	SearchByNameOrEmail(ctx context.Context, name, email string, p domain.PageRequest) (*domain.Page, error)
}

// PhotoStore persists photo content and hands back an opaque reference.
// The filesystem and S3 backends both satisfy it.
type PhotoStore interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
}
