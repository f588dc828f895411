package port

import (
	"context"

	"github.com/MhdAstro/video-to-frame/internal/domain/entity"
	"github.com/google/uuid"
)

type RunRepository interface {
	Create(ctx context.Context, run *entity.Run) error
	Update(ctx context.Context, run *entity.Run) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Run, error)
}
