package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "student-service/internal/domain/student"
	pkgerrors "student-service/pkg/errors"
	"student-service/pkg/logger"
	"student-service/pkg/security"
)

// likeClause matches a column against an escaped pattern, ignoring case.
// The same text is valid on PostgreSQL and SQLite.
const likeClause = `LOWER(%s) LIKE LOWER(?) ESCAPE '\'`

// sortColumns maps canonical sort fields to table columns.
var sortColumns = map[string]string{
	"id":          "id",
	"name":        "name",
	"email":       "email",
	"dateOfBirth": "date_of_birth",
}

// StudentRepoPG implements the student Repository using GORM.
// It runs against PostgreSQL in production and SQLite in tests.
type StudentRepoPG struct {
	db  *gorm.DB    // GORM database connection
	log *zap.Logger // Structured logger for database operations
}

// NewStudentRepoPG creates a new instance of StudentRepoPG.
func NewStudentRepoPG(db *gorm.DB, log *zap.Logger) *StudentRepoPG {
	return &StudentRepoPG{db: db, log: log}
}

// StudentSchema represents the database schema for the students table.
type StudentSchema struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	Name        string    `gorm:"size:100;not null"`
	Email       string    `gorm:"size:254;not null;uniqueIndex"`
	DateOfBirth time.Time `gorm:"type:date;not null"`
	Photo       string    `gorm:"size:255"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName specifies the table name for the StudentSchema model.
func (StudentSchema) TableName() string {
	return "students"
}

func fromDomain(s *domain.Student) StudentSchema {
	return StudentSchema{
		ID:          s.ID,
		Name:        s.Name,
		Email:       s.Email,
		DateOfBirth: domain.DateOnly(s.DateOfBirth),
		Photo:       s.Photo,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func (m StudentSchema) toDomain() domain.Student {
	return domain.Student{
		ID:          m.ID,
		Name:        m.Name,
		Email:       m.Email,
		DateOfBirth: domain.DateOnly(m.DateOfBirth),
		Photo:       m.Photo,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// Save inserts a student without an ID and updates one that has it.
func (r *StudentRepoPG) Save(ctx context.Context, s *domain.Student) (*domain.Student, error) {
	if s == nil {
		return nil, errors.New("student cannot be nil")
	}
	log := logger.WithContext(ctx, r.log)

	model := fromDomain(s)
	var err error
	if model.ID == 0 {
		err = r.db.WithContext(ctx).Create(&model).Error
	} else {
		err = r.db.WithContext(ctx).Omit("created_at").Save(&model).Error
	}
	if err != nil {
		if isUniqueViolation(err) {
			log.Warn("student email conflict in db", zap.String("email", s.Email), zap.Error(err))
			return nil, pkgerrors.NewAlreadyExistsError("student", fmt.Sprintf("Email %s already taken", s.Email))
		}
		log.Error("failed to save student in db", zap.Error(err), zap.Int64("id", s.ID))
		return nil, fmt.Errorf("failed to save student: %w", err)
	}

	log.Info("student saved in db", zap.Int64("id", model.ID))
	saved := model.toDomain()
	return &saved, nil
}

// FindByID retrieves a student by their unique ID.
func (r *StudentRepoPG) FindByID(ctx context.Context, id int64) (*domain.Student, error) {
	var model StudentSchema
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithContext(ctx, r.log).Debug("student not found", zap.Int64("id", id))
			return nil, pkgerrors.NewNotFoundError("student", fmt.Sprintf("Student with ID %d not found", id))
		}
		logger.WithContext(ctx, r.log).Error("failed to get student from db", zap.Error(err), zap.Int64("id", id))
		return nil, fmt.Errorf("failed to get student: %w", err)
	}

	s := model.toDomain()
	return &s, nil
}

// DeleteByID removes a student by ID. A missing row is reported as not found.
func (r *StudentRepoPG) DeleteByID(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&StudentSchema{}, id)
	if res.Error != nil {
		logger.WithContext(ctx, r.log).Error("failed to delete student in db", zap.Error(res.Error), zap.Int64("id", id))
		return fmt.Errorf("failed to delete student: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.NewNotFoundError("student", fmt.Sprintf("Student with ID %d not found", id))
	}

	logger.WithContext(ctx, r.log).Info("student deleted in db", zap.Int64("id", id))
	return nil
}

// ExistsByID reports whether a student with id is stored.
func (r *StudentRepoPG) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return r.exists(ctx, "id = ?", id)
}

// ExistsByEmail reports whether email is already used by a stored student.
func (r *StudentRepoPG) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email = ?", email)
}

func (r *StudentRepoPG) exists(ctx context.Context, query string, arg any) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&StudentSchema{}).Where(query, arg).Count(&count).Error; err != nil {
		logger.WithContext(ctx, r.log).Error("failed to check student existence", zap.Error(err), zap.String("query", query))
		return false, fmt.Errorf("failed to check student existence: %w", err)
	}
	return count > 0, nil
}

// FindAll returns one page of all students.
func (r *StudentRepoPG) FindAll(ctx context.Context, p domain.PageRequest) (*domain.Page, error) {
	return r.page(ctx, p, func(db *gorm.DB) *gorm.DB { return db })
}

// SearchByName returns students whose name contains name, ignoring case.
func (r *StudentRepoPG) SearchByName(ctx context.Context, name string, p domain.PageRequest) (*domain.Page, error) {
	return r.page(ctx, p, func(db *gorm.DB) *gorm.DB {
		return db.Where(fmt.Sprintf(likeClause, "name"), contains(name))
	})
}

// SearchByEmail returns students whose email contains email, ignoring case.
func (r *StudentRepoPG) SearchByEmail(ctx context.Context, email string, p domain.PageRequest) (*domain.Page, error) {
	return r.page(ctx, p, func(db *gorm.DB) *gorm.DB {
		return db.Where(fmt.Sprintf(likeClause, "email"), contains(email))
	})
}

// SearchByNameAndEmail returns students matching both filters.
func (r *StudentRepoPG) SearchByNameAndEmail(ctx context.Context, name, email string, p domain.PageRequest) (*domain.Page, error) {
	return r.page(ctx, p, func(db *gorm.DB) *gorm.DB {
		return db.
			Where(fmt.Sprintf(likeClause, "name"), contains(name)).
			Where(fmt.Sprintf(likeClause, "email"), contains(email))
	})
}

// SearchByNameOrEmail returns students matching either filter.
func (r *StudentRepoPG) SearchByNameOrEmail(ctx context.Context, name, email string, p domain.PageRequest) (*domain.Page, error) {
	return r.page(ctx, p, func(db *gorm.DB) *gorm.DB {
		return db.Where(
			fmt.Sprintf(likeClause, "name")+" OR "+fmt.Sprintf(likeClause, "email"),
			contains(name), contains(email),
		)
	})
}

// contains builds a LIKE pattern matching term anywhere in a column.
func contains(term string) string {
	return "%" + security.EscapeLikePattern(term) + "%"
}

// page counts the filtered rows and loads the requested slice of them.
func (r *StudentRepoPG) page(ctx context.Context, p domain.PageRequest, filter func(*gorm.DB) *gorm.DB) (*domain.Page, error) {
	log := logger.WithContext(ctx, r.log)

	column, ok := sortColumns[p.SortField]
	if !ok {
		return nil, pkgerrors.NewValidationError("sortField", fmt.Sprintf("cannot sort by %q", p.SortField))
	}

	var total int64
	if err := filter(r.db.WithContext(ctx).Model(&StudentSchema{})).Count(&total).Error; err != nil {
		log.Error("failed to count students", zap.Error(err))
		return nil, fmt.Errorf("failed to count students: %w", err)
	}

	query := filter(r.db.WithContext(ctx).Model(&StudentSchema{})).
		Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: p.Direction == domain.SortDesc})
	if column != "id" {
		query = query.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}})
	}

	var models []StudentSchema
	if err := query.Offset(int(p.Offset())).Limit(int(p.Size)).Find(&models).Error; err != nil {
		log.Error("failed to list students from db",
			zap.Error(err),
			zap.Int64("page", p.Page),
			zap.Int64("size", p.Size),
			zap.String("sort_field", p.SortField),
		)
		return nil, fmt.Errorf("failed to list students: %w", err)
	}

	students := make([]domain.Student, len(models))
	for i, model := range models {
		students[i] = model.toDomain()
	}

	return &domain.Page{
		Students:   students,
		Pagination: domain.NewPagination(total, p.Page, p.Size),
	}, nil
}
