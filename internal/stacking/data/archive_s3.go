package data

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/astronomyk/CrowdSky/internal/conf"
	"github.com/astronomyk/CrowdSky/internal/stacking/biz"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Archive implements biz.ArchiveStore on an S3-compatible bucket.
// Object stores have no directories, so MkdirAll is a no-op.
type S3Archive struct {
	client *minio.Client
	bucket string
}

// NewS3Archive connects to the configured endpoint and ensures the
// bucket exists.
func NewS3Archive(ctx context.Context, cfg *conf.S3Config) (biz.ArchiveStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &S3Archive{client: client, bucket: cfg.Bucket}, nil
}

func (a *S3Archive) MkdirAll(ctx context.Context, remotePath string) error {
	return nil
}

func (a *S3Archive) Put(ctx context.Context, remotePath string, r io.Reader, size int64) error {
	_, err := a.client.PutObject(ctx, a.bucket, objectKey(remotePath), r, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return err
}

func (a *S3Archive) Delete(ctx context.Context, remotePath string) error {
	return a.client.RemoveObject(ctx, a.bucket, objectKey(remotePath), minio.RemoveObjectOptions{})
}

func objectKey(remotePath string) string {
	return strings.TrimPrefix(remotePath, "/")
}
