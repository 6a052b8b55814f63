package student

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	pkgerrors "student-service/pkg/errors"
	"student-service/pkg/logger"
)

// sniffLen is how many leading bytes are inspected to detect a photo's type.
const sniffLen = 3072

type readCloser struct {
	io.Reader
	io.Closer
}

// sniff reads the head of r and returns its detected MIME type along with a
// reader that still yields the full content.
func sniff(r io.Reader) (*mimetype.MIME, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, nil, err
	}
	head = head[:n]
	return mimetype.Detect(head), io.MultiReader(bytes.NewReader(head), r), nil
}

// storePhoto checks the upload is an image within the size limit and saves it.
func (s *Service) storePhoto(ctx context.Context, upload *PhotoUpload) (string, error) {
	if s.photos == nil {
		return "", pkgerrors.NewValidationError("photo", "photo uploads are disabled")
	}
	if upload.Size > s.opts.MaxPhotoBytes {
		return "", pkgerrors.NewValidationError("photo", fmt.Sprintf("must be at most %d bytes", s.opts.MaxPhotoBytes))
	}

	mt, content, err := sniff(io.LimitReader(upload.Content, s.opts.MaxPhotoBytes))
	if err != nil {
		return "", pkgerrors.NewInternalError("failed to read photo", err)
	}
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", pkgerrors.NewValidationError("photo", fmt.Sprintf("must be an image, got %s", mt.String()))
	}

	ref, err := s.photos.Save(ctx, upload.Filename, content)
	if err != nil {
		return "", internal("failed to store photo", err)
	}
	return ref, nil
}

// discardPhoto removes a stored photo. Failures are logged and swallowed,
// the student record is already consistent at this point.
func (s *Service) discardPhoto(ctx context.Context, ref string) {
	if ref == "" || s.photos == nil {
		return
	}
	if err := s.photos.Delete(ctx, ref); err != nil {
		logger.WithContext(ctx, s.log).Warn("failed to delete photo", zap.String("photo", ref), zap.Error(err))
	}
}

// GetPhoto opens the photo attached to a student.
func (s *Service) GetPhoto(ctx context.Context, in GetStudentRequest) (*PhotoResponse, error) {
	log := logger.WithContext(ctx, s.log)

	if in.ID <= 0 {
		return nil, pkgerrors.NewValidationError("id", "invalid student id")
	}

	st, err := s.repo.FindByID(ctx, in.ID)
	if err != nil {
		log.Warn("failed to get student for photo", zap.Int64("id", in.ID), zap.Error(err))
		return nil, internal("failed to get student", err)
	}
	if !st.HasPhoto() || s.photos == nil {
		return nil, pkgerrors.NewNotFoundError("photo", fmt.Sprintf("Student with ID %d has no photo", in.ID))
	}

	rc, err := s.photos.Open(ctx, st.Photo)
	if err != nil {
		log.Error("failed to open photo", zap.Int64("id", in.ID), zap.String("photo", st.Photo), zap.Error(err))
		return nil, internal("failed to open photo", err)
	}

	mt, content, err := sniff(rc)
	if err != nil {
		_ = rc.Close()
		return nil, pkgerrors.NewInternalError("failed to read photo", err)
	}

	return &PhotoResponse{
		ContentType: mt.String(),
		Content:     readCloser{Reader: content, Closer: rc},
	}, nil
}
