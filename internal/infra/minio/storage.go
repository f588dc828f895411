package minio

import (
	"context"
	"fmt"
	"io"
	"path"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Storage archives evidence bundles of forbidden videos.
type Storage struct {
	client         *miniogo.Client
	evidenceBucket string
}

type StorageConfig struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	EvidenceBucket string
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Storage{client: client, evidenceBucket: cfg.EvidenceBucket}, nil
}

func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.evidenceBucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.evidenceBucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.evidenceBucket, miniogo.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.evidenceBucket, err)
	}
	return nil
}

// UploadEvidence stores one archive under objectKey. The first path segment of
// the key is the run id and is kept as object metadata.
func (s *Storage) UploadEvidence(ctx context.Context, objectKey string, reader io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.evidenceBucket, objectKey, reader, size, miniogo.PutObjectOptions{
		ContentType:  "application/zip",
		UserMetadata: map[string]string{"run-id": path.Dir(objectKey)},
	})
	if err != nil {
		return fmt.Errorf("upload evidence %s: %w", objectKey, err)
	}
	return nil
}
