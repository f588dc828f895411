package port

import (
	"context"

	"github.com/MhdAstro/video-to-frame/internal/domain/entity"
)

type Moderator interface {
	Moderate(ctx context.Context, items []entity.ModerationItem) ([]entity.ModerationResult, error)
}
