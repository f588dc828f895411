package port

import "context"

type VerdictPublisher interface {
	PublishVerdict(ctx context.Context, msg []byte) error
}

type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, msg []byte, reason string) error
}
