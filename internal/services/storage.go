package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/keithriordan/foyer/internal/shared"
)

// S3Storage implements [BlobStore] on Amazon S3 (or any S3-compatible endpoint).
type S3Storage struct {
	uploader *manager.Uploader
	endpoint string
}

// NewS3Storage loads AWS credentials from the environment and shared config files.
//
// A non-empty cfg.Endpoint switches to path-style addressing against that endpoint.
func NewS3Storage(ctx context.Context, cfg shared.StorageConfig) (*S3Storage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load aws config: %v", shared.ErrStorage, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3StorageWithClient(client, cfg.Endpoint), nil
}

// NewS3StorageWithClient wraps an existing client.
func NewS3StorageWithClient(client manager.UploadAPIClient, endpoint string) *S3Storage {
	return &S3Storage{
		uploader: manager.NewUploader(client),
		endpoint: strings.TrimRight(endpoint, "/"),
	}
}

// Put uploads body to bucket/key, switching to multipart for large bodies.
func (s *S3Storage) Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	if bucket == "" {
		return fmt.Errorf("%w: bucket is not configured", shared.ErrStorage)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("%w: upload %s/%s: %v", shared.ErrStorage, bucket, key, err)
	}
	return nil
}

// PublicURL returns the virtual-hosted S3 URL, or endpoint/bucket/key when a custom endpoint is set.
func (s *S3Storage) PublicURL(bucket, key string) string {
	if s.endpoint != "" {
		return s.endpoint + "/" + bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", bucket, key)
}

// ContentTypeFor maps an image extension to its MIME type.
func ContentTypeFor(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
