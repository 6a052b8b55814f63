// Package fs stores student photos as files under a single upload directory.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	pkgerrors "student-service/pkg/errors"
	"student-service/pkg/logger"
	"student-service/pkg/security"
)

// Store keeps photos in a flat directory. References are bare file names.
type Store struct {
	fs  afero.Fs
	log *zap.Logger
	now func() time.Time
}

// New creates the upload directory if needed and returns a Store rooted at it.
func New(fsys afero.Fs, dir string, log *zap.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("upload directory is required")
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}

	log.Info("photo storage ready", zap.String("driver", "fs"), zap.String("dir", dir))
	return &Store{
		fs:  afero.NewBasePathFs(fsys, dir),
		log: log,
		now: time.Now,
	}, nil
}

// Save writes r to a new file named {unixMillis}_{sanitizedName}.
// An existing file is never overwritten.
func (s *Store) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	name, err := security.SanitizeFilename(filename)
	if err != nil {
		return "", pkgerrors.NewValidationError("photo", "invalid photo filename")
	}

	ref := fmt.Sprintf("%d_%s", s.now().UnixMilli(), name)
	f, err := s.fs.OpenFile(ref, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		ref = fmt.Sprintf("%d_%s_%s", s.now().UnixMilli(), uuid.NewString()[:8], name)
		f, err = s.fs.OpenFile(ref, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	}
	if err != nil {
		return "", fmt.Errorf("failed to create photo file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(ref)
		return "", fmt.Errorf("failed to write photo: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(ref)
		return "", fmt.Errorf("failed to write photo: %w", err)
	}

	logger.WithContext(ctx, s.log).Debug("photo stored", zap.String("photo", ref))
	return ref, nil
}

// Open returns the content of a stored photo.
func (s *Store) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := checkRef(ref); err != nil {
		return nil, err
	}

	f, err := s.fs.Open(ref)
	if errors.Is(err, os.ErrNotExist) {
		return nil, pkgerrors.NewNotFoundError("photo", fmt.Sprintf("photo %s not found", ref))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open photo: %w", err)
	}
	return f, nil
}

// Delete removes a stored photo. Deleting a missing photo is not an error.
func (s *Store) Delete(ctx context.Context, ref string) error {
	if err := checkRef(ref); err != nil {
		return err
	}

	if err := s.fs.Remove(ref); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete photo: %w", err)
	}

	logger.WithContext(ctx, s.log).Debug("photo deleted", zap.String("photo", ref))
	return nil
}

// checkRef rejects references that could escape the upload directory.
func checkRef(ref string) error {
	if ref == "" || ref == "." || ref == ".." || strings.ContainsAny(ref, `/\`) {
		return pkgerrors.NewValidationError("photo", "invalid photo reference")
	}
	return nil
}
