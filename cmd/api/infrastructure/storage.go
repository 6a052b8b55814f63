package infrastructure

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"student-service/internal/adapter/storage/fs"
	"student-service/internal/adapter/storage/s3"
	"student-service/internal/config"
	"student-service/internal/usecase/student"
)

// NewPhotoStore builds the photo store selected by STORAGE_DRIVER.
func NewPhotoStore(ctx context.Context, cfg *config.Config, l *zap.Logger) (student.PhotoStore, error) {
	switch cfg.Storage.Driver {
	case "s3":
		store, err := s3.New(ctx, s3.Config{
			Bucket:       cfg.Storage.S3.Bucket,
			Prefix:       cfg.Storage.S3.Prefix,
			Region:       cfg.Storage.S3.Region,
			BaseEndpoint: cfg.Storage.S3.BaseEndpoint,
			AccessKey:    cfg.Storage.S3.AccessKey,
			SecretKey:    cfg.Storage.S3.SecretKey,
			UsePathStyle: cfg.Storage.S3.UsePathStyle,
		}, l)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize s3 photo store: %w", err)
		}
		return store, nil
	default:
		store, err := fs.New(afero.NewOsFs(), cfg.Storage.UploadDir, l)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize photo directory: %w", err)
		}
		return store, nil
	}
}
