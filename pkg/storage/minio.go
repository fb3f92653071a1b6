package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/config"
)

// MinIOUploader stores product images in a bucket and hands back their public URL.
type MinIOUploader struct {
	client     *minio.Client
	bucket     string
	publicBase string
	logger     *zap.Logger
}

func NewMinIOUploader(ctx context.Context, cfg *config.MinIOConfig, logger *zap.Logger) (*MinIOUploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("Bucket created", zap.String("bucket", cfg.Bucket))
	}

	base := cfg.PublicBase
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)
	}

	return &MinIOUploader{
		client:     client,
		bucket:     cfg.Bucket,
		publicBase: strings.TrimRight(base, "/"),
		logger:     logger.Named("storage"),
	}, nil
}

// Upload stores r under a fresh object name that keeps the original extension.
func (u *MinIOUploader) Upload(ctx context.Context, filename, contentType string, r io.Reader, size int64) (string, error) {
	object := ObjectName(filename)
	_, err := u.client.PutObject(ctx, u.bucket, object, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", filename, err)
	}

	url := fmt.Sprintf("%s/%s/%s", u.publicBase, u.bucket, object)
	u.logger.Info("Image uploaded", zap.String("object", object), zap.Int64("size", size))
	return url, nil
}

func ObjectName(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("products/%s%s", uuid.NewString(), ext)
}
