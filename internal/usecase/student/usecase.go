package student

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	domain "student-service/internal/domain/student"
	pkgerrors "student-service/pkg/errors"
	"student-service/pkg/logger"
	"student-service/pkg/security"
)

// DefaultMaxPhotoBytes is the photo size limit applied when Options leaves it unset.
const DefaultMaxPhotoBytes int64 = 5 << 20

// Options tunes the business rules that differ between deployments.
type Options struct {
	// FilterMode combines name and email filters when both are present.
	FilterMode domain.FilterMode
	// RequirePastDateOfBirth rejects dates of birth that are today or later.
	RequirePastDateOfBirth bool
	// MaxPhotoBytes bounds the size of an uploaded photo.
	MaxPhotoBytes int64
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Service implements the business logic for student management operations.
type Service struct {
	repo     Repository          // Repository for data access
	photos   PhotoStore          // Photo storage, nil disables uploads
	log      *zap.Logger         // Logger for structured logging
	validate *validator.Validate // Validator for request validation
	opts     Options
}

var _ Usecase = (*Service)(nil)

// New creates a new instance of Service.
func New(r Repository, photos PhotoStore, log *zap.Logger, opts Options) *Service {
	if opts.FilterMode == "" {
		opts.FilterMode = domain.FilterAnd
	}
	if opts.MaxPhotoBytes <= 0 {
		opts.MaxPhotoBytes = DefaultMaxPhotoBytes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{repo: r, photos: photos, log: log, validate: validator.New(), opts: opts}
}

// formatValidationError converts validator.ValidationErrors into a human-readable error message.
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	var messages []string
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", e.Field()))
		case "email":
			messages = append(messages, fmt.Sprintf("%s must be a valid email", e.Field()))
		case "datetime":
			messages = append(messages, fmt.Sprintf("%s must be a date in YYYY-MM-DD format", e.Field()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s characters", e.Field(), e.Param()))
		case "gt":
			messages = append(messages, fmt.Sprintf("%s must be greater than %s", e.Field(), e.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", e.Field()))
		}
	}
	return pkgerrors.NewValidationError("", strings.Join(messages, ", "))
}

// internal passes typed errors through and wraps everything else.
func internal(message string, err error) error {
	var (
		validationErr *pkgerrors.ValidationError
		notFoundErr   *pkgerrors.NotFoundError
		existsErr     *pkgerrors.AlreadyExistsError
	)
	if errors.As(err, &validationErr) || errors.As(err, &notFoundErr) || errors.As(err, &existsErr) {
		return err
	}
	return pkgerrors.NewInternalError(message, err)
}

func emailTaken(email string) error {
	return pkgerrors.NewAlreadyExistsError("student", fmt.Sprintf("Email %s already taken", email))
}

// parseDateOfBirth parses value and applies the past-date rule.
func (s *Service) parseDateOfBirth(value string) (time.Time, error) {
	dob, err := domain.ParseDate(value)
	if err != nil {
		return time.Time{}, pkgerrors.NewValidationError("DateOfBirth", "must be a date in YYYY-MM-DD format")
	}
	if s.opts.RequirePastDateOfBirth && !dob.Before(domain.DateOnly(s.opts.Now())) {
		return time.Time{}, pkgerrors.NewValidationError("DateOfBirth", "must be in the past")
	}
	return dob, nil
}

// ensureEmailAvailable is the fast-path uniqueness check. The unique index
// on the table still decides under concurrent writers.
func (s *Service) ensureEmailAvailable(ctx context.Context, log *zap.Logger, email string) error {
	taken, err := s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		log.Error("failed to check existing email", zap.String("email", email), zap.Error(err))
		return internal("failed to validate email uniqueness", err)
	}
	if taken {
		log.Warn("email already exists", zap.String("email", email))
		return emailTaken(email)
	}
	return nil
}

// CreateStudent creates a new student after validating the request and checking email uniqueness.
func (s *Service) CreateStudent(ctx context.Context, in CreateStudentRequest) (*StudentResponse, error) {
	log := logger.WithContext(ctx, s.log)

	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.DateOfBirth = strings.TrimSpace(in.DateOfBirth)

	log.Info("creating student", zap.String("name", in.Name), zap.String("email", in.Email))

	if err := s.validate.Struct(in); err != nil {
		log.Warn("validate failed", zap.Error(err))
		return nil, formatValidationError(err)
	}

	dob, err := s.parseDateOfBirth(in.DateOfBirth)
	if err != nil {
		log.Warn("invalid date of birth", zap.String("dob", in.DateOfBirth), zap.Error(err))
		return nil, err
	}

	if err := s.ensureEmailAvailable(ctx, log, in.Email); err != nil {
		return nil, err
	}

	st := &domain.Student{
		Name:        in.Name,
		Email:       in.Email,
		DateOfBirth: dob,
	}

	if !in.Photo.Empty() {
		ref, err := s.storePhoto(ctx, in.Photo)
		if err != nil {
			log.Warn("failed to store photo", zap.String("filename", in.Photo.Filename), zap.Error(err))
			return nil, err
		}
		st.Photo = ref
	}

	saved, err := s.repo.Save(ctx, st)
	if err != nil {
		log.Error("failed to create student", zap.String("email", in.Email), zap.Error(err))
		s.discardPhoto(ctx, st.Photo)
		return nil, internal("failed to create student", err)
	}

	log.Info("student created", zap.Int64("id", saved.ID))
	return toResponse(saved), nil
}

// UpdateStudent applies the supplied, changed fields to an existing student.
// Email uniqueness is re-checked only when the email actually changes.
func (s *Service) UpdateStudent(ctx context.Context, in UpdateStudentRequest) (*StudentResponse, error) {
	log := logger.WithContext(ctx, s.log)

	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.DateOfBirth = strings.TrimSpace(in.DateOfBirth)

	log.Info("updating student", zap.Int64("id", in.ID), zap.String("name", in.Name), zap.String("email", in.Email))

	if err := s.validate.Struct(in); err != nil {
		log.Warn("validate failed", zap.Error(err))
		return nil, formatValidationError(err)
	}

	existing, err := s.repo.FindByID(ctx, in.ID)
	if err != nil {
		log.Warn("failed to load student for update", zap.Int64("id", in.ID), zap.Error(err))
		return nil, internal("failed to load student", err)
	}

	if in.Name != "" && in.Name != existing.Name {
		existing.Name = in.Name
	}

	if in.Email != "" && in.Email != existing.Email {
		if err := s.ensureEmailAvailable(ctx, log, in.Email); err != nil {
			return nil, err
		}
		existing.Email = in.Email
	}

	if in.DateOfBirth != "" {
		dob, err := s.parseDateOfBirth(in.DateOfBirth)
		if err != nil {
			log.Warn("invalid date of birth", zap.String("dob", in.DateOfBirth), zap.Error(err))
			return nil, err
		}
		if !dob.Equal(existing.DateOfBirth) {
			existing.DateOfBirth = dob
		}
	}

	var newPhoto, previousPhoto string
	if !in.Photo.Empty() {
		ref, err := s.storePhoto(ctx, in.Photo)
		if err != nil {
			log.Warn("failed to store photo", zap.Int64("id", in.ID), zap.Error(err))
			return nil, err
		}
		newPhoto, previousPhoto = ref, existing.Photo
		existing.Photo = ref
	}

	saved, err := s.repo.Save(ctx, existing)
	if err != nil {
		log.Error("failed to update student", zap.Int64("id", in.ID), zap.Error(err))
		s.discardPhoto(ctx, newPhoto)
		return nil, internal("failed to update student", err)
	}

	s.discardPhoto(ctx, previousPhoto)

	return toResponse(saved), nil
}

// DeleteStudent removes an existing student and its stored photo.
func (s *Service) DeleteStudent(ctx context.Context, in DeleteStudentRequest) error {
	log := logger.WithContext(ctx, s.log)
	log.Info("deleting student", zap.Int64("id", in.ID))

	if in.ID <= 0 {
		log.Warn("delete student validation failed", zap.Int64("id", in.ID), zap.String("reason", "invalid id"))
		return pkgerrors.NewValidationError("id", "invalid student id")
	}

	existing, err := s.repo.FindByID(ctx, in.ID)
	if err != nil {
		log.Warn("student lookup before delete failed", zap.Int64("id", in.ID), zap.Error(err))
		return internal("failed to load student", err)
	}

	if err := s.repo.DeleteByID(ctx, in.ID); err != nil {
		log.Error("failed to delete student", zap.Int64("id", in.ID), zap.Error(err))
		return internal("failed to delete student", err)
	}

	s.discardPhoto(ctx, existing.Photo)
	return nil
}

// GetStudent retrieves a student by ID.
func (s *Service) GetStudent(ctx context.Context, in GetStudentRequest) (*StudentResponse, error) {
	log := logger.WithContext(ctx, s.log)

	if in.ID <= 0 {
		log.Warn("get student validation failed", zap.Int64("id", in.ID), zap.String("reason", "invalid id"))
		return nil, pkgerrors.NewValidationError("id", "invalid student id")
	}

	st, err := s.repo.FindByID(ctx, in.ID)
	if err != nil {
		log.Warn("failed to get student", zap.Int64("id", in.ID), zap.Error(err))
		return nil, internal("failed to get student", err)
	}

	return toResponse(st), nil
}

// ListStudents retrieves a page of students, optionally filtered by name and email.
func (s *Service) ListStudents(ctx context.Context, in ListStudentsRequest) (*ListStudentsResponse, error) {
	log := logger.WithContext(ctx, s.log)

	name, err := security.ValidateSearchTerm(in.Name)
	if err != nil {
		log.Warn("invalid name filter", zap.String("name", in.Name), zap.Error(err))
		return nil, pkgerrors.NewValidationError("name", err.Error())
	}
	email, err := security.ValidateSearchTerm(in.Email)
	if err != nil {
		log.Warn("invalid email filter", zap.String("email", in.Email), zap.Error(err))
		return nil, pkgerrors.NewValidationError("email", err.Error())
	}

	sortField := domain.DefaultSortField
	if strings.TrimSpace(in.SortField) != "" {
		canonical, ok := domain.NormalizeSortField(in.SortField)
		if !ok {
			log.Warn("unsupported sort field", zap.String("sort_field", in.SortField))
			return nil, pkgerrors.NewValidationError("sortField", fmt.Sprintf("cannot sort by %q", in.SortField))
		}
		sortField = canonical
	}

	p := domain.NewPageRequest(in.Page, in.Size, sortField, domain.ParseSortDirection(in.SortDirection))

	log.Info("listing students",
		zap.String("name", name),
		zap.String("email", email),
		zap.Int64("page", p.Page),
		zap.Int64("size", p.Size),
		zap.String("sort_field", p.SortField),
		zap.String("sort_direction", string(p.Direction)),
	)

	var page *domain.Page
	switch {
	case name != "" && email != "":
		if s.opts.FilterMode == domain.FilterOr {
			page, err = s.repo.SearchByNameOrEmail(ctx, name, email, p)
		} else {
			page, err = s.repo.SearchByNameAndEmail(ctx, name, email, p)
		}
	case name != "":
		page, err = s.repo.SearchByName(ctx, name, p)
	case email != "":
		page, err = s.repo.SearchByEmail(ctx, email, p)
	default:
		page, err = s.repo.FindAll(ctx, p)
	}
	if err != nil {
		log.Error("failed to list students", zap.Int64("page", p.Page), zap.Int64("size", p.Size), zap.Error(err))
		return nil, internal("failed to list students", err)
	}

	students := make([]StudentResponse, len(page.Students))
	for i := range page.Students {
		students[i] = *toResponse(&page.Students[i])
	}

	return &ListStudentsResponse{
		Students:   students,
		Pagination: page.Pagination,
	}, nil
}
