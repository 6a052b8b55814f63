package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	domain "student-service/internal/domain/student"
)

// setupTestRedis creates a miniredis instance for testing
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client, mr
}

func testStudent(id int64) *domain.Student {
	return &domain.Student{
		ID:          id,
		Name:        "Ann Lee",
		Email:       "ann@school.edu",
		DateOfBirth: time.Date(2001, 4, 12, 0, 0, 0, 0, time.UTC),
		Photo:       "1717243200000_ann.png",
	}
}

func TestRedisStudentCache_SetAndGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisStudentCache(client, 5*time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()

	student := testStudent(1)
	require.NoError(t, cache.Set(ctx, student))

	assert.True(t, mr.Exists("student:1"))
	assert.Equal(t, 5*time.Minute, mr.TTL("student:1"))

	cached, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, cached)

	assert.Equal(t, student.ID, cached.ID)
	assert.Equal(t, student.Name, cached.Name)
	assert.Equal(t, student.Email, cached.Email)
	assert.True(t, student.DateOfBirth.Equal(cached.DateOfBirth))
	assert.Equal(t, student.Photo, cached.Photo)
}

func TestRedisStudentCache_StoredDocument(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisStudentCache(client, time.Minute, zaptest.NewLogger(t))

	require.NoError(t, cache.Set(context.Background(), testStudent(7)))

	raw, err := mr.Get("student:7")
	require.NoError(t, err)
	assert.Contains(t, raw, `"dob":"2001-04-12"`)
	assert.Contains(t, raw, `"email":"ann@school.edu"`)
}

func TestRedisStudentCache_Set_NilStudent(t *testing.T) {
	client, _ := setupTestRedis(t)
	cache := NewRedisStudentCache(client, 5*time.Minute, zaptest.NewLogger(t))

	err := cache.Set(context.Background(), nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot cache nil student")
}

func TestRedisStudentCache_Get_CacheMiss(t *testing.T) {
	client, _ := setupTestRedis(t)
	cache := NewRedisStudentCache(client, 5*time.Minute, zaptest.NewLogger(t))

	cached, err := cache.Get(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestRedisStudentCache_Get_CorruptEntry(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisStudentCache(client, 5*time.Minute, zaptest.NewLogger(t))

	require.NoError(t, mr.Set("student:3", "{not json"))

	cached, err := cache.Get(context.Background(), 3)
	assert.Error(t, err)
	assert.Nil(t, cached)
}

func TestRedisStudentCache_Delete(t *testing.T) {
	client, _ := setupTestRedis(t)
	cache := NewRedisStudentCache(client, 5*time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()

	for id := int64(1); id <= 3; id++ {
		require.NoError(t, cache.Set(ctx, testStudent(id)))
	}

	require.NoError(t, cache.Delete(ctx, 1, 2))

	for _, id := range []int64{1, 2} {
		cached, err := cache.Get(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, cached)
	}

	cached, err := cache.Get(ctx, 3)
	require.NoError(t, err)
	assert.NotNil(t, cached)
}

func TestRedisStudentCache_Delete_NoIDs(t *testing.T) {
	client, _ := setupTestRedis(t)
	cache := NewRedisStudentCache(client, 5*time.Minute, zaptest.NewLogger(t))

	require.NoError(t, cache.Delete(context.Background()))
}

func TestRedisStudentCache_TTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisStudentCache(client, 2*time.Second, zaptest.NewLogger(t))

	require.NoError(t, cache.Set(context.Background(), testStudent(1)))

	mr.FastForward(3 * time.Second)

	cached, err := cache.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestRedisStudentCache_RedisDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisStudentCache(client, time.Minute, zaptest.NewLogger(t))

	mr.Close()

	_, err := cache.Get(context.Background(), 1)
	assert.Error(t, err)
}
