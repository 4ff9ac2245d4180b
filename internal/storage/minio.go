package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/starford/geocam/internal/apperr"
	"github.com/starford/geocam/internal/models"
)

// MinIOOptions configures an S3-compatible bucket backend.
type MinIOOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinIO implements Provider on top of an S3-compatible object store.
type MinIO struct {
	client *minio.Client
	bucket string
}

var _ Provider = (*MinIO)(nil)

// NewMinIO connects to the object store and creates the bucket if needed.
func NewMinIO(ctx context.Context, opts MinIOOptions, logger *slog.Logger) (*MinIO, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("storage: make bucket: %w", err)
		}
		logger.Info("storage: bucket created", slog.String("bucket", opts.Bucket))
	}
	return &MinIO{client: client, bucket: opts.Bucket}, nil
}

// List returns every object under the dir prefix.
func (m *MinIO) List(ctx context.Context, dir string) ([]models.FileInfo, error) {
	prefix := strings.Trim(dir, "/")
	if prefix != "" {
		prefix += "/"
	}
	var out []models.FileInfo
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("storage: list: %w", obj.Err)
		}
		out = append(out, models.FileInfo{
			Path:      obj.Key,
			Size:      obj.Size,
			UpdatedAt: obj.LastModified,
		})
	}
	return out, nil
}

// Read downloads an object fully into memory.
func (m *MinIO) Read(ctx context.Context, path string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, m.wrap("read", path, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, m.wrap("read", path, err)
	}
	return data, nil
}

// Write uploads content as a single object. S3 PUTs are atomic per object.
func (m *MinIO) Write(ctx context.Context, path string, content []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, path, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: http.DetectContentType(content),
	})
	if err != nil {
		return m.wrap("write", path, err)
	}
	return nil
}

// Delete removes an object. S3 deletes are idempotent, so existence is
// checked first to report ErrNotFound like the file system backend.
func (m *MinIO) Delete(ctx context.Context, path string) error {
	if _, err := m.client.StatObject(ctx, m.bucket, path, minio.StatObjectOptions{}); err != nil {
		return m.wrap("delete", path, err)
	}
	if err := m.client.RemoveObject(ctx, m.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return m.wrap("delete", path, err)
	}
	return nil
}

func (m *MinIO) wrap(op, path string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return fmt.Errorf("storage: %s %s: %w", op, path, apperr.ErrNotFound)
	}
	return fmt.Errorf("storage: %s %s: %w", op, path, err)
}
