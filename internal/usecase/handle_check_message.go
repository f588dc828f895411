package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MhdAstro/video-to-frame/internal/domain/entity"
	"github.com/MhdAstro/video-to-frame/internal/infra/metrics"
)

// HandleMessage processes one video.check delivery. It returns an error only
// when the delivery should be retried; permanent failures end in the DLQ.
func (uc *CheckVideoUseCase) HandleMessage(ctx context.Context, body []byte, attempt int) error {
	var msg entity.VideoCheckMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", body))
		uc.toDLQ(ctx, body, "unmarshal_error: "+err.Error(), uc.logger)
		return nil
	}
	if msg.VideoURL == "" {
		uc.logger.Error("message without video_url", zap.ByteString("body", body))
		uc.toDLQ(ctx, body, "missing video_url", uc.logger)
		return nil
	}
	if msg.RunID == uuid.Nil {
		msg.RunID = uuid.New()
	}

	log := uc.logger.With(
		zap.String("run_id", msg.RunID.String()),
		zap.String("video_url", msg.VideoURL),
		zap.Int("attempt", attempt),
	)

	result, err := uc.Execute(ctx, CheckRequest{RunID: msg.RunID, VideoURL: msg.VideoURL, NotifyEmail: msg.NotifyEmail})
	if err == nil {
		uc.publishVerdict(ctx, entity.VideoVerdictMessage{
			RunID:       msg.RunID,
			VideoURL:    msg.VideoURL,
			Status:      entity.RunStatusCompleted,
			IsForbidden: result.IsVideoForbidden,
			FrameCount:  result.FrameCount,
			Attempt:     attempt,
		}, log)
		return nil
	}

	if ctx.Err() != nil {
		return fmt.Errorf("interrupted: %w", err)
	}

	if permanent(err) || attempt >= uc.maxRetry {
		log.Warn("check failed permanently, sending to DLQ", zap.Error(err))
		uc.toDLQ(ctx, body, err.Error(), log)
		uc.publishVerdict(ctx, entity.VideoVerdictMessage{
			RunID:        msg.RunID,
			VideoURL:     msg.VideoURL,
			Status:       entity.RunStatusFailed,
			ErrorMessage: err.Error(),
			Attempt:      attempt,
		}, log)
		return nil
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(attempt)).Inc()
	return fmt.Errorf("retryable failure (attempt %d/%d): %w", attempt, uc.maxRetry, err)
}

// permanent reports failures that a retry of the same video cannot fix.
func permanent(err error) bool {
	var (
		downloadErr *entity.DownloadError
		decodeErr   *entity.DecodeError
	)
	if errors.As(err, &downloadErr) {
		return downloadErr.StatusCode >= 400 && downloadErr.StatusCode < 500
	}
	return errors.As(err, &decodeErr)
}

func (uc *CheckVideoUseCase) publishVerdict(ctx context.Context, msg entity.VideoVerdictMessage, log *zap.Logger) {
	if uc.publisher == nil {
		return
	}
	data, _ := json.Marshal(msg)
	if err := uc.publisher.PublishVerdict(ctx, data); err != nil {
		log.Error("failed to publish verdict", zap.Error(err))
	}
}

func (uc *CheckVideoUseCase) toDLQ(ctx context.Context, body []byte, reason string, log *zap.Logger) {
	if uc.dlq == nil {
		return
	}
	if err := uc.dlq.PublishToDLQ(ctx, body, reason); err != nil {
		log.Error("failed to publish to DLQ", zap.Error(err))
	}
}
