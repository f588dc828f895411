package port

import (
	"context"
	"io"
)

type EvidenceStorage interface {
	UploadEvidence(ctx context.Context, objectKey string, reader io.Reader, size int64) error
}
