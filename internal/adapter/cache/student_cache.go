package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	domain "student-service/internal/domain/student"
	"student-service/pkg/logger"
)

// StudentCache defines the interface for student caching operations.
type StudentCache interface {
	// Get retrieves a student from cache by ID.
	// Returns nil without error on a cache miss.
	Get(ctx context.Context, id int64) (*domain.Student, error)

	// Set stores a student in cache with the configured TTL.
	Set(ctx context.Context, s *domain.Student) error

	// Delete removes the given students from cache.
	Delete(ctx context.Context, ids ...int64) error
}

// cachedStudent is the JSON document stored under a student key.
type cachedStudent struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	DateOfBirth string    `json:"dob"`
	Photo       string    `json:"photo,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RedisStudentCache implements StudentCache on top of Redis.
type RedisStudentCache struct {
	client redis.Cmdable
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedisStudentCache creates a new Redis-backed student cache.
func NewRedisStudentCache(client redis.Cmdable, ttl time.Duration, log *zap.Logger) *RedisStudentCache {
	return &RedisStudentCache{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

// Key returns the Redis key holding the student with id.
func Key(id int64) string {
	return fmt.Sprintf("student:%d", id)
}

// Get retrieves a student from Redis.
func (c *RedisStudentCache) Get(ctx context.Context, id int64) (*domain.Student, error) {
	log := logger.WithContext(ctx, c.log)

	data, err := c.client.Get(ctx, Key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		log.Debug("cache miss", zap.Int64("student_id", id))
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get from cache", zap.Int64("student_id", id), zap.Error(err))
		return nil, err
	}

	var doc cachedStudent
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Error("failed to unmarshal cached student", zap.Int64("student_id", id), zap.Error(err))
		return nil, err
	}
	dob, err := domain.ParseDate(doc.DateOfBirth)
	if err != nil {
		log.Error("corrupt date of birth in cache", zap.Int64("student_id", id), zap.Error(err))
		return nil, err
	}

	log.Debug("cache hit", zap.Int64("student_id", id))
	return &domain.Student{
		ID:          doc.ID,
		Name:        doc.Name,
		Email:       doc.Email,
		DateOfBirth: dob,
		Photo:       doc.Photo,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}, nil
}

// Set stores a student in Redis with the configured TTL.
func (c *RedisStudentCache) Set(ctx context.Context, s *domain.Student) error {
	if s == nil {
		return errors.New("cannot cache nil student")
	}
	log := logger.WithContext(ctx, c.log)

	data, err := json.Marshal(cachedStudent{
		ID:          s.ID,
		Name:        s.Name,
		Email:       s.Email,
		DateOfBirth: s.DateOfBirth.Format(domain.DateLayout),
		Photo:       s.Photo,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	})
	if err != nil {
		log.Error("failed to marshal student for cache", zap.Int64("student_id", s.ID), zap.Error(err))
		return err
	}

	if err := c.client.Set(ctx, Key(s.ID), data, c.ttl).Err(); err != nil {
		log.Error("failed to set cache", zap.Int64("student_id", s.ID), zap.Error(err))
		return err
	}

	log.Debug("cached student", zap.Int64("student_id", s.ID), zap.Duration("ttl", c.ttl))
	return nil
}

// Delete removes students from Redis.
func (c *RedisStudentCache) Delete(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = Key(id)
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.WithContext(ctx, c.log).Error("failed to delete from cache", zap.Int("count", len(ids)), zap.Error(err))
		return err
	}

	logger.WithContext(ctx, c.log).Debug("deleted from cache", zap.Int("count", len(ids)))
	return nil
}
