package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/MhdAstro/video-to-frame/internal/domain/entity"
	"github.com/MhdAstro/video-to-frame/internal/domain/port"
	"github.com/MhdAstro/video-to-frame/internal/infra/metrics"
	"github.com/MhdAstro/video-to-frame/internal/staging"
)

type KeyframeExtractor interface {
	Execute(ctx context.Context, runID uuid.UUID, videoURL string) (*Extraction, error)
}

type CheckRequest struct {
	RunID       uuid.UUID
	VideoURL    string
	NotifyEmail string
}

// CheckVideoUseCase extracts keyframes and asks the moderation service to judge them.
// The repository, evidence storage and notifier are optional; a nil one is skipped.
type CheckVideoUseCase struct {
	extractor KeyframeExtractor
	staging   *staging.Manager
	moderator port.Moderator
	repo      port.RunRepository
	storage   port.EvidenceStorage
	zipper    port.Zipper
	notifier  port.VerdictNotifier
	publisher port.VerdictPublisher
	dlq       port.DLQPublisher
	logger    *zap.Logger
	notifyTo  []string
	maxRetry  int
}

type CheckVideoConfig struct {
	NotifyTo    []string
	MaxAttempts int
}

func NewCheckVideoUseCase(
	extractor KeyframeExtractor,
	manager *staging.Manager,
	moderator port.Moderator,
	repo port.RunRepository,
	storage port.EvidenceStorage,
	zipper port.Zipper,
	notifier port.VerdictNotifier,
	publisher port.VerdictPublisher,
	dlq port.DLQPublisher,
	logger *zap.Logger,
	cfg CheckVideoConfig,
) *CheckVideoUseCase {
	return &CheckVideoUseCase{
		extractor: extractor,
		staging:   manager,
		moderator: moderator,
		repo:      repo,
		storage:   storage,
		zipper:    zipper,
		notifier:  notifier,
		publisher: publisher,
		dlq:       dlq,
		logger:    logger,
		notifyTo:  cfg.NotifyTo,
		maxRetry:  cfg.MaxAttempts,
	}
}

func (uc *CheckVideoUseCase) Execute(ctx context.Context, req CheckRequest) (*entity.CheckResult, error) {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "CheckVideoUseCase.Execute")
	defer span.End()

	if req.RunID == uuid.Nil {
		req.RunID = uuid.New()
	}
	span.SetAttributes(attribute.String("run.id", req.RunID.String()))

	log := uc.logger.With(zap.String("run_id", req.RunID.String()), zap.String("video_url", req.VideoURL))

	run := uc.startRun(ctx, req, log)

	ext, err := uc.extractor.Execute(ctx, req.RunID, req.VideoURL)
	if err != nil {
		uc.failRun(ctx, run, err, log)
		return nil, err
	}
	manifest := ext.Manifest
	run.MarkExtracted(manifest)

	if manifest.Empty() {
		uc.staging.Discard(ext.Area)
		run.MarkCompleted(false)
		uc.saveRun(ctx, run, log)
		metrics.ModerationVerdictsTotal.WithLabelValues("no_frames").Inc()
		log.Info("no significant frames, skipping moderation")
		return &entity.CheckResult{Message: entity.NoSignificantFramesMessage}, nil
	}

	items := make([]entity.ModerationItem, len(manifest.Records))
	for i, r := range manifest.Records {
		items[i] = entity.ModerationItem{FileID: r.FileID, URL: r.URL}
	}

	modCtx, modSpan := tracer.Start(ctx, "moderate")
	results, err := uc.moderator.Moderate(modCtx, items)
	modSpan.End()
	if err != nil {
		uc.failRun(ctx, run, err, log)
		return nil, err
	}

	forbidden := false
	var forbiddenURLs []string
	for i := range results {
		if id := results[i].FileID; id != nil && *id >= 0 && *id < len(manifest.Records) {
			results[i].FrameURL = manifest.Records[*id].URL
		}
		if results[i].IsForbidden {
			forbidden = true
			if results[i].FrameURL != "" {
				forbiddenURLs = append(forbiddenURLs, results[i].FrameURL)
			}
		}
	}

	run.MarkCompleted(forbidden)
	uc.saveRun(ctx, run, log)

	verdict := "allowed"
	if forbidden {
		verdict = "forbidden"
		uc.archiveEvidence(ctx, manifest, results, log)
		uc.notify(ctx, req, forbiddenURLs, log)
	}
	metrics.ModerationVerdictsTotal.WithLabelValues(verdict).Inc()
	span.SetAttributes(attribute.Bool("run.forbidden", forbidden))

	log.Info("video checked",
		zap.Bool("is_forbidden", forbidden),
		zap.Int("frame_count", len(manifest.Records)),
	)

	return &entity.CheckResult{
		IsVideoForbidden: forbidden,
		FrameCount:       len(manifest.Records),
		RevisionResults:  results,
	}, nil
}

func (uc *CheckVideoUseCase) startRun(ctx context.Context, req CheckRequest, log *zap.Logger) *entity.Run {
	run := entity.NewRun(req.RunID, req.VideoURL)
	if uc.repo == nil {
		run.MarkProcessing()
		return run
	}

	if existing, err := uc.repo.FindByID(ctx, req.RunID); err == nil {
		run = existing
	} else if err := uc.repo.Create(ctx, run); err != nil {
		log.Error("failed to create run record", zap.Error(err))
	}

	run.MarkProcessing()
	uc.saveRun(ctx, run, log)
	return run
}

func (uc *CheckVideoUseCase) failRun(ctx context.Context, run *entity.Run, err error, log *zap.Logger) {
	run.MarkFailed(err.Error())
	uc.saveRun(ctx, run, log)
}

func (uc *CheckVideoUseCase) saveRun(ctx context.Context, run *entity.Run, log *zap.Logger) {
	if uc.repo == nil {
		return
	}
	if err := uc.repo.Update(ctx, run); err != nil {
		log.Error("failed to update run record", zap.String("status", string(run.Status)), zap.Error(err))
	}
}

type evidenceManifest struct {
	*entity.Manifest
	Results []entity.ModerationResult `json:"revision_results"`
}

// archiveEvidence uploads the keyframes of a forbidden video with the
// moderation results to <run_id>/evidence.zip.
func (uc *CheckVideoUseCase) archiveEvidence(ctx context.Context, m *entity.Manifest, results []entity.ModerationResult, log *zap.Logger) {
	if uc.storage == nil || uc.zipper == nil {
		return
	}

	ctx, span := otel.Tracer("usecase").Start(ctx, "archive_evidence")
	defer span.End()

	if err := uc.uploadEvidence(ctx, m, results); err != nil {
		log.Error("failed to archive evidence", zap.Error(err))
		return
	}
	log.Info("evidence archived", zap.String("object_key", evidenceKey(m.RunID)))
}

func (uc *CheckVideoUseCase) uploadEvidence(ctx context.Context, m *entity.Manifest, results []entity.ModerationResult) error {
	workDir, err := os.MkdirTemp("", "evidence-")
	if err != nil {
		return fmt.Errorf("create evidence dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	data, err := json.MarshalIndent(evidenceManifest{Manifest: m, Results: results}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	manifestPath := filepath.Join(workDir, "manifest.json")
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	paths := make([]string, 0, len(m.Records)+1)
	for _, r := range m.Records {
		paths = append(paths, r.Path)
	}
	paths = append(paths, manifestPath)

	zipPath := filepath.Join(workDir, "evidence.zip")
	if err := uc.zipper.CreateZip(ctx, paths, zipPath); err != nil {
		return fmt.Errorf("create zip: %w", err)
	}

	f, err := os.Open(zipPath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat zip: %w", err)
	}
	return uc.storage.UploadEvidence(ctx, evidenceKey(m.RunID), f, info.Size())
}

func (uc *CheckVideoUseCase) notify(ctx context.Context, req CheckRequest, frameURLs []string, log *zap.Logger) {
	if uc.notifier == nil {
		return
	}
	to := append([]string(nil), uc.notifyTo...)
	if req.NotifyEmail != "" {
		to = append(to, req.NotifyEmail)
	}
	if len(to) == 0 {
		return
	}
	if err := uc.notifier.NotifyForbidden(ctx, to, req.RunID.String(), req.VideoURL, frameURLs); err != nil {
		log.Error("failed to send forbidden video notification", zap.Error(err))
	}
}

func evidenceKey(runID uuid.UUID) string {
	return runID.String() + "/evidence.zip"
}
