package photostore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kozaktomas/face-signin/internal/config"
	"github.com/kozaktomas/face-signin/internal/facematch"
)

// Minio stores photos in a MinIO or S3-compatible bucket.
type Minio struct {
	client *minio.Client
	bucket string
}

var _ Store = (*Minio)(nil)

// NewMinio creates a store from storage settings.
func NewMinio(cfg config.StorageConfig) (*Minio, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("storage endpoint is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}
	return NewMinioWithClient(client, cfg.Bucket), nil
}

// NewMinioWithClient wraps an existing client.
func NewMinioWithClient(client *minio.Client, bucket string) *Minio {
	return &Minio{client: client, bucket: bucket}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *Minio) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("creating bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Put uploads the photo at faces/{id}.jpg, replacing any previous one.
func (s *Minio) Put(ctx context.Context, id facematch.Identity, photo []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, Key(id), bytes.NewReader(photo), int64(len(photo)),
		minio.PutObjectOptions{ContentType: http.DetectContentType(photo)})
	if err != nil {
		return fmt.Errorf("uploading photo of %s: %w", id, err)
	}
	return nil
}

// Get downloads the client's photo.
func (s *Minio) Get(ctx context.Context, id facematch.Identity) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, Key(id), minio.GetObjectOptions{})
	if err != nil {
		return nil, mapError(id, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapError(id, err)
	}
	return data, nil
}

// Delete removes the client's photo. Missing photos are not an error.
func (s *Minio) Delete(ctx context.Context, id facematch.Identity) error {
	err := s.client.RemoveObject(ctx, s.bucket, Key(id), minio.RemoveObjectOptions{})
	if err != nil && !errors.Is(mapError(id, err), ErrNotFound) {
		return fmt.Errorf("deleting photo of %s: %w", id, err)
	}
	return nil
}

func mapError(id facematch.Identity, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
		return ErrNotFound
	}
	return fmt.Errorf("downloading photo of %s: %w", id, err)
}
