package port

import "context"

// SourceStager fetches a video into a local file. The caller owns the returned
// path and must remove it once decoding is finished.
type SourceStager interface {
	Stage(ctx context.Context, videoURL string, dir string) (string, error)
}
