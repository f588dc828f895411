package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MhdAstro/video-to-frame/internal/domain/entity"
)

var ErrRunNotFound = errors.New("run not found")

type RunRepository struct {
	pool *pgxpool.Pool
}

func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

func (r *RunRepository) Create(ctx context.Context, run *entity.Run) error {
	query := `
		INSERT INTO extraction_runs (
			id, video_url, status, frame_count, keyframe_count, fps,
			is_forbidden, staging_dir, error_message,
			created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	_, err := r.pool.Exec(ctx, query,
		run.ID, run.VideoURL, string(run.Status), run.FrameCount, run.KeyframeCount, run.FPS,
		run.IsForbidden, run.StagingDir, run.ErrorMessage,
		run.CreatedAt, run.UpdatedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r *RunRepository) Update(ctx context.Context, run *entity.Run) error {
	query := `
		UPDATE extraction_runs SET
			status=$2, frame_count=$3, keyframe_count=$4, fps=$5,
			is_forbidden=$6, staging_dir=$7, error_message=$8,
			updated_at=$9, completed_at=$10
		WHERE id=$1`

	tag, err := r.pool.Exec(ctx, query,
		run.ID, string(run.Status), run.FrameCount, run.KeyframeCount, run.FPS,
		run.IsForbidden, run.StagingDir, run.ErrorMessage,
		run.UpdatedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update run %s: %w", run.ID, ErrRunNotFound)
	}
	return nil
}

func (r *RunRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Run, error) {
	query := `
		SELECT id, video_url, status, frame_count, keyframe_count, fps,
			is_forbidden, staging_dir, error_message,
			created_at, updated_at, completed_at
		FROM extraction_runs WHERE id=$1`

	run := &entity.Run{}
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.VideoURL, &status, &run.FrameCount, &run.KeyframeCount, &run.FPS,
		&run.IsForbidden, &run.StagingDir, &run.ErrorMessage,
		&run.CreatedAt, &run.UpdatedAt, &run.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("find run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find run by id: %w", err)
	}
	run.Status = entity.RunStatus(status)
	return run, nil
}
