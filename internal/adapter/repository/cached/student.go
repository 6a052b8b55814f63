package cached

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"student-service/internal/adapter/cache"
	domain "student-service/internal/domain/student"
	"student-service/internal/usecase/student"
	"student-service/pkg/logger"
)

// StudentRepository wraps a persistent student repository with a
// cache-aside layer for lookups by ID. Searches always go to the database.
//
// A load that overlaps a Save or DeleteByID in this process does not write
// its result to the cache. Writes from other instances are only bounded by
// the cache TTL.
type StudentRepository struct {
	student.Repository
	cache cache.StudentCache
	log   *zap.Logger
	group singleflight.Group
	epoch atomic.Uint64
}

var _ student.Repository = (*StudentRepository)(nil)

// NewStudentRepository creates a new instance of StudentRepository.
func NewStudentRepository(db student.Repository, c cache.StudentCache, log *zap.Logger) *StudentRepository {
	return &StudentRepository{
		Repository: db,
		cache:      c,
		log:        log,
	}
}

// FindByID retrieves a student using the cache-aside pattern.
// Concurrent misses for the same ID share one database query.
func (r *StudentRepository) FindByID(ctx context.Context, id int64) (*domain.Student, error) {
	log := logger.WithContext(ctx, r.log)

	if cached, err := r.cache.Get(ctx, id); err != nil {
		log.Warn("cache get error, falling back to database", zap.Int64("id", id), zap.Error(err))
	} else if cached != nil {
		return cached, nil
	}

	result, err, shared := r.group.Do(cache.Key(id), func() (any, error) {
		epoch := r.epoch.Load()
		s, err := r.Repository.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if r.epoch.Load() != epoch {
			log.Debug("student changed during load, not caching", zap.Int64("id", id))
			return s, nil
		}
		if err := r.cache.Set(ctx, s); err != nil {
			log.Warn("failed to cache student", zap.Int64("id", id), zap.Error(err))
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}

	s := result.(*domain.Student)
	if shared {
		// Callers mutate what they get back, so waiters receive their own copy.
		cp := *s
		return &cp, nil
	}
	return s, nil
}

// Save writes through to the database and invalidates the cached entry.
func (r *StudentRepository) Save(ctx context.Context, s *domain.Student) (*domain.Student, error) {
	saved, err := r.Repository.Save(ctx, s)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, saved.ID)
	return saved, nil
}

// DeleteByID deletes from the database and invalidates the cached entry.
func (r *StudentRepository) DeleteByID(ctx context.Context, id int64) error {
	if err := r.Repository.DeleteByID(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *StudentRepository) invalidate(ctx context.Context, id int64) {
	r.epoch.Add(1)
	r.group.Forget(cache.Key(id))
	if err := r.cache.Delete(ctx, id); err != nil {
		logger.WithContext(ctx, r.log).Warn("failed to invalidate cached student", zap.Int64("id", id), zap.Error(err))
	}
}
