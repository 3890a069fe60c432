package storage

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinIOOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinIO stores uploads as objects in a single bucket.
type MinIO struct {
	client *minio.Client
	bucket string
}

func NewMinIO(opts MinIOOptions) (*MinIO, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return &MinIO{client: client, bucket: opts.Bucket}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (m *MinIO) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (m *MinIO) Put(ctx context.Context, name, src string) (*ContractFile, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := m.client.FPutObject(ctx, m.bucket, name, src, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", name, err)
	}
	return &ContractFile{
		Filename:  name,
		Size:      info.Size,
		CreatedAt: unixSeconds(uploadTime(info.LastModified)),
		Extension: extension(name),
	}, nil
}

func (m *MinIO) List(ctx context.Context) ([]ContractFile, error) {
	files := []ContractFile{}
	for object := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		files = append(files, ContractFile{
			Filename:  object.Key,
			Size:      object.Size,
			CreatedAt: unixSeconds(object.LastModified),
			Extension: extension(object.Key),
		})
	}
	sortFiles(files)
	return files, nil
}

// Delete removes the object. RemoveObject succeeds for missing keys, so
// existence is checked first.
func (m *MinIO) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if _, err := m.client.StatObject(ctx, m.bucket, name, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to stat %s: %w", name, err)
	}
	if err := m.client.RemoveObject(ctx, m.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

// uploadTime falls back to now, since FPutObject rarely reports LastModified.
func uploadTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
