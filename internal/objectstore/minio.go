package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/shaiso/Sequencer/internal/config"
)

// MinIO хранит объекты в S3-совместимом bucket.
type MinIO struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinIO подключается к хранилищу и создаёт bucket, если его нет.
func NewMinIO(ctx context.Context, cfg config.S3Config) (*MinIO, error) {
	if strings.Contains(cfg.Endpoint, "://") {
		return nil, fmt.Errorf("s3 storage: endpoint must not include scheme: %q", cfg.Endpoint)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 storage: %w", err)
	}

	m := &MinIO{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}
	if err := m.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MinIO) ensureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("s3 storage: check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("s3 storage: create bucket %s: %w", m.bucket, err)
	}
	return nil
}

func (m *MinIO) key(name string) (string, string, error) {
	clean, err := CleanName(name)
	if err != nil {
		return "", "", err
	}
	if m.prefix == "" {
		return clean, clean, nil
	}
	return clean, m.prefix + "/" + clean, nil
}

// Put загружает объект.
func (m *MinIO) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (Object, error) {
	clean, key, err := m.key(name)
	if err != nil {
		return Object{}, err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return Object{}, fmt.Errorf("upload %s: %w", key, err)
	}

	return Object{
		Name:     clean,
		Location: fmt.Sprintf("s3://%s/%s", m.bucket, key),
		Size:     info.Size,
	}, nil
}

// Get скачивает объект.
func (m *MinIO) Get(ctx context.Context, name string, limit int64) ([]byte, error) {
	_, key, err := m.key(name)
	if err != nil {
		return nil, err
	}

	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, m.wrapErr(key, err)
	}
	defer obj.Close()

	data, err := readAll(obj, limit)
	if err != nil {
		return nil, m.wrapErr(key, err)
	}
	return data, nil
}

func (m *MinIO) wrapErr(key string, err error) error {
	if errors.Is(err, ErrTooLarge) {
		return err
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return fmt.Errorf("download %s: %w", key, err)
}
