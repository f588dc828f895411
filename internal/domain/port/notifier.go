package port

import "context"

type VerdictNotifier interface {
	NotifyForbidden(ctx context.Context, to []string, runID string, videoURL string, frameURLs []string) error
}
