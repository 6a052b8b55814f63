package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	pkgerrors "student-service/pkg/errors"
)

// fakeS3 serves the subset of the S3 REST API the store uses, path-style.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func s3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>`+code+`</Code><Message>`+code+`</Message></Error>`)
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := r.URL.Path
	switch r.Method {
	case http.MethodPut:
		if _, exists := f.objects[key]; exists && r.Header.Get("If-None-Match") == "*" {
			s3Error(w, http.StatusPreconditionFailed, "PreconditionFailed")
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			s3Error(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(body)
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func setupStore(t *testing.T) (*Store, *fakeS3) {
	fake := &fakeS3{objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := New(context.Background(), Config{
		Bucket:       "photos",
		Prefix:       "students/",
		Region:       "us-east-1",
		BaseEndpoint: srv.URL,
		AccessKey:    "test",
		SecretKey:    "secret",
		UsePathStyle: true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	s.now = func() time.Time { return time.UnixMilli(1717243200000) }
	return s, fake
}

func TestStore_SaveOpenDelete(t *testing.T) {
	s, fake := setupStore(t)
	ctx := context.Background()

	ref, err := s.Save(ctx, "jo.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "1717243200000_jo.png", ref)
	assert.Equal(t, []byte("png-bytes"), fake.objects["/photos/students/1717243200000_jo.png"])

	rc, err := s.Open(ctx, ref)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, s.Delete(ctx, ref))
	assert.Empty(t, fake.objects)
}

func TestStore_SaveNeverOverwrites(t *testing.T) {
	s, fake := setupStore(t)
	ctx := context.Background()

	first, err := s.Save(ctx, "jo.png", strings.NewReader("first"))
	require.NoError(t, err)
	second, err := s.Save(ctx, "jo.png", strings.NewReader("second"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Len(t, fake.objects, 2)
	assert.Equal(t, []byte("first"), fake.objects["/photos/students/"+first])
}

func TestStore_OpenMissing(t *testing.T) {
	s, _ := setupStore(t)

	_, err := s.Open(context.Background(), "1_missing.png")

	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestStore_DeleteMissingIsNoop(t *testing.T) {
	s, _ := setupStore(t)

	assert.NoError(t, s.Delete(context.Background(), "1_missing.png"))
}

func TestStore_RejectsInvalidInput(t *testing.T) {
	s, fake := setupStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "", strings.NewReader("x"))
	assert.Error(t, err)

	_, err = s.Open(ctx, "../other/key")
	assert.Error(t, err)
	assert.Error(t, s.Delete(ctx, "a/b"))
	assert.Empty(t, fake.objects)
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{Region: "us-east-1"}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
