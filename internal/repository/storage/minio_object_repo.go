package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/innovators/mlms/mlms-backend/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOObjectRepository implements ObjectRepository using MinIO
type MinIOObjectRepository struct {
	client     *minio.Client
	bucketName string
}

// NewMinIOObjectRepository creates a new MinIO object repository
func NewMinIOObjectRepository(ctx context.Context, cfg config.MinIOConfig) (*MinIOObjectRepository, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	repo := &MinIOObjectRepository{
		client:     client,
		bucketName: cfg.Bucket,
	}

	if err := repo.ensureBucket(ctx); err != nil {
		return nil, err
	}

	return repo, nil
}

// ensureBucket creates the bucket if it doesn't exist. CNIC scans are private, so no public policy is set.
func (r *MinIOObjectRepository) ensureBucket(ctx context.Context) error {
	exists, err := r.client.BucketExists(ctx, r.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		if err := r.client.MakeBucket(ctx, r.bucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// Upload uploads data to MinIO storage and returns the object key
func (r *MinIOObjectRepository) Upload(ctx context.Context, objectPath string, data io.Reader, contentType string, size int64) (string, error) {
	opts := minio.PutObjectOptions{
		ContentType: contentType,
	}

	// If size is unknown, read all data into memory
	if size < 0 {
		buf, err := io.ReadAll(data)
		if err != nil {
			return "", fmt.Errorf("failed to read data: %w", err)
		}
		size = int64(len(buf))
		data = bytes.NewReader(buf)
	}

	if _, err := r.client.PutObject(ctx, r.bucketName, objectPath, data, size, opts); err != nil {
		return "", fmt.Errorf("put object %q failed: %w", objectPath, err)
	}

	return objectPath, nil
}

// Delete removes an object from MinIO storage
func (r *MinIOObjectRepository) Delete(ctx context.Context, objectPath string) error {
	if err := r.client.RemoveObject(ctx, r.bucketName, objectPath, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// PresignedURL generates a presigned GET URL for temporary access
func (r *MinIOObjectRepository) PresignedURL(ctx context.Context, objectPath string, expiry time.Duration) (string, error) {
	u, err := r.client.PresignedGetObject(ctx, r.bucketName, objectPath, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign get object %q failed: %w", objectPath, err)
	}
	return u.String(), nil
}
