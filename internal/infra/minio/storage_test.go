package minio

import (
	"bytes"
	"context"
	"io"
	"testing"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
)

func TestUploadEvidence(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	defer container.Terminate(ctx)

	endpoint, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	storage, err := NewStorage(StorageConfig{
		Endpoint:       endpoint,
		AccessKey:      "minioadmin",
		SecretKey:      "minioadmin",
		EvidenceBucket: "evidence",
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBucket(ctx))
	require.NoError(t, storage.EnsureBucket(ctx), "existing bucket is fine")

	data := []byte("PK\x03\x04evidence")
	key := "6f1c1b52-61a4-4a0e-9f5b-0d2b8f4f6b3e/evidence.zip"
	require.NoError(t, storage.UploadEvidence(ctx, key, bytes.NewReader(data), int64(len(data))))

	obj, err := storage.client.GetObject(ctx, "evidence", key, miniogo.GetObjectOptions{})
	require.NoError(t, err)
	defer obj.Close()
	got, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	info, err := obj.Stat()
	require.NoError(t, err)
	assert.Equal(t, "application/zip", info.ContentType)
	assert.Equal(t, "6f1c1b52-61a4-4a0e-9f5b-0d2b8f4f6b3e", info.UserMetadata["Run-Id"])
}
