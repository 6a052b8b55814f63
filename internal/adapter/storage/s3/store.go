// Package s3 stores student photos as objects in an S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	pkgerrors "student-service/pkg/errors"
	"student-service/pkg/logger"
	"student-service/pkg/security"
)

// Config holds the bucket location and credentials.
type Config struct {
	Bucket       string
	Prefix       string
	Region       string
	BaseEndpoint string // e.g. a MinIO URL; empty uses AWS
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// Store keeps photos as objects named {prefix}{reference}.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
	log    *zap.Logger
	now    func() time.Time
}

// New builds an S3 client from cfg. Static credentials are used when
// given, otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	log.Info("photo storage ready",
		zap.String("driver", "s3"),
		zap.String("bucket", cfg.Bucket),
		zap.String("prefix", cfg.Prefix),
		zap.String("endpoint", cfg.BaseEndpoint),
	)

	return &Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		log:    log,
		now:    time.Now,
	}, nil
}

func (s *Store) key(ref string) string {
	return s.prefix + ref
}

// Save uploads r under a new {unixMillis}_{sanitizedName} reference.
// Existing objects are never overwritten.
func (s *Store) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	name, err := security.SanitizeFilename(filename)
	if err != nil {
		return "", pkgerrors.NewValidationError("photo", "invalid photo filename")
	}

	// The request is signed over the payload, which needs a seekable body.
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read photo: %w", err)
	}

	ref := fmt.Sprintf("%d_%s", s.now().UnixMilli(), name)
	err = s.put(ctx, ref, data)
	if isPreconditionFailed(err) {
		ref = fmt.Sprintf("%d_%s_%s", s.now().UnixMilli(), uuid.NewString()[:8], name)
		err = s.put(ctx, ref, data)
	}
	if err != nil {
		return "", fmt.Errorf("failed to upload photo: %w", err)
	}

	logger.WithContext(ctx, s.log).Debug("photo stored", zap.String("bucket", s.bucket), zap.String("key", s.key(ref)))
	return ref, nil
}

func (s *Store) put(ctx context.Context, ref string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(ref)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		IfNoneMatch:   aws.String("*"),
	})
	return err
}

// Open streams a stored photo.
func (s *Store) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := checkRef(ref); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(ref)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, pkgerrors.NewNotFoundError("photo", fmt.Sprintf("photo %s not found", ref))
		}
		return nil, fmt.Errorf("failed to download photo: %w", err)
	}
	return out.Body, nil
}

// Delete removes a stored photo. S3 treats a missing key as deleted.
func (s *Store) Delete(ctx context.Context, ref string) error {
	if err := checkRef(ref); err != nil {
		return err
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(ref)),
	}); err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}

	logger.WithContext(ctx, s.log).Debug("photo deleted", zap.String("bucket", s.bucket), zap.String("key", s.key(ref)))
	return nil
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed"
}

// checkRef only accepts references issued by Save.
func checkRef(ref string) error {
	if ref == "" || ref == "." || ref == ".." || strings.ContainsAny(ref, `/\`) {
		return pkgerrors.NewValidationError("photo", "invalid photo reference")
	}
	return nil
}
