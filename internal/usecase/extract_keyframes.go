package usecase

import (
	"context"
	"errors"
	"image"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/MhdAstro/video-to-frame/internal/domain/entity"
	"github.com/MhdAstro/video-to-frame/internal/domain/port"
	"github.com/MhdAstro/video-to-frame/internal/infra/config"
	"github.com/MhdAstro/video-to-frame/internal/infra/metrics"
	"github.com/MhdAstro/video-to-frame/internal/keyframe"
	"github.com/MhdAstro/video-to-frame/internal/staging"
)

type ExtractConfig struct {
	Stride          int
	SceneThreshold  float64
	ResizeWidth     int
	ResizeHeight    int
	MaxFrames       int
	MinFrameSpacing int // 0 selects pure top-K
	DefaultFPS      float64
	FrameBaseURL    string
	JPEGQuality     int
}

// NewExtractConfig maps the service configuration onto the pipeline. The
// spacing rule only applies when SELECTION_POLICY=spacing.
func NewExtractConfig(cfg *config.Config) ExtractConfig {
	ec := ExtractConfig{
		Stride:         cfg.SkipFrames,
		SceneThreshold: cfg.SceneThreshold,
		ResizeWidth:    cfg.FrameResizeWidth,
		ResizeHeight:   cfg.FrameResizeHeight,
		MaxFrames:      cfg.MaxFrames,
		DefaultFPS:     cfg.DefaultFPS,
		FrameBaseURL:   cfg.FrameBaseURL,
		JPEGQuality:    cfg.JPEGQuality,
	}
	if cfg.SelectionPolicy == config.SelectionSpacing {
		ec.MinFrameSpacing = cfg.MinFrameSpacing
	}
	return ec
}

// Extraction is a successful run: the manifest and the staging area holding its files.
type Extraction struct {
	Manifest *entity.Manifest
	Area     *staging.Area
}

type ExtractKeyframesUseCase struct {
	stager       port.SourceStager
	decoder      port.VideoDecoder
	staging      *staging.Manager
	sampler      *keyframe.Sampler
	selector     *keyframe.Selector
	materializer *keyframe.Materializer
	cfg          ExtractConfig
	logger       *zap.Logger
}

func NewExtractKeyframesUseCase(
	stager port.SourceStager,
	decoder port.VideoDecoder,
	manager *staging.Manager,
	logger *zap.Logger,
	cfg ExtractConfig,
) *ExtractKeyframesUseCase {
	selector := keyframe.NewTopKSelector(cfg.MaxFrames)
	if cfg.MinFrameSpacing > 0 {
		selector = keyframe.NewSpacingSelector(cfg.MaxFrames, cfg.MinFrameSpacing)
	}
	return &ExtractKeyframesUseCase{
		stager:       stager,
		decoder:      decoder,
		staging:      manager,
		sampler:      keyframe.NewSampler(cfg.Stride),
		selector:     selector,
		materializer: keyframe.NewMaterializer(cfg.FrameBaseURL, cfg.JPEGQuality),
		cfg:          cfg,
		logger:       logger,
	}
}

// Execute runs the whole pipeline for one video. On error no staging area
// remains on disk. On success the area is scheduled for deferred removal.
func (uc *ExtractKeyframesUseCase) Execute(ctx context.Context, runID uuid.UUID, videoURL string) (*Extraction, error) {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ExtractKeyframesUseCase.Execute")
	defer span.End()

	span.SetAttributes(
		attribute.String("run.id", runID.String()),
		attribute.String("run.video_url", videoURL),
	)

	log := uc.logger.With(zap.String("run_id", runID.String()), zap.String("video_url", videoURL))

	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()

	start := time.Now()
	ext, err := uc.run(ctx, runID, videoURL, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RunsTotal.WithLabelValues(failureStatus(ctx, err)).Inc()
		log.Error("keyframe extraction failed", zap.Error(err))
		return nil, err
	}

	status := "completed"
	if ext.Manifest.Empty() {
		status = "empty"
	}
	metrics.RunsTotal.WithLabelValues(status).Inc()
	metrics.StageDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("run.keyframes", ext.Manifest.Total))

	log.Info("keyframe extraction completed",
		zap.Int("keyframes", ext.Manifest.Total),
		zap.Int("frame_count", ext.Manifest.FrameCount),
		zap.Float64("fps", ext.Manifest.FPS),
		zap.String("output_directory", ext.Manifest.StagingDir),
	)
	return ext, nil
}

func (uc *ExtractKeyframesUseCase) run(ctx context.Context, runID uuid.UUID, videoURL string, log *zap.Logger) (*Extraction, error) {
	tracer := otel.Tracer("usecase")

	dlStart := time.Now()
	dlCtx, dlSpan := tracer.Start(ctx, "download")
	videoPath, err := uc.stager.Stage(dlCtx, videoURL, uc.staging.Root())
	dlSpan.End()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(videoPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("failed to remove downloaded video", zap.Error(&entity.CleanupError{Path: videoPath, Err: err}))
		}
	}()
	metrics.StageDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	area, err := uc.staging.Create()
	if err != nil {
		return nil, err
	}

	manifest, err := uc.extract(ctx, runID, videoPath, area, log)
	if err != nil {
		uc.staging.Discard(area)
		return nil, err
	}

	uc.staging.Release(area)
	return &Extraction{Manifest: manifest, Area: area}, nil
}

func (uc *ExtractKeyframesUseCase) extract(
	ctx context.Context,
	runID uuid.UUID,
	videoPath string,
	area *staging.Area,
	log *zap.Logger,
) (*entity.Manifest, error) {
	tracer := otel.Tracer("usecase")

	decStart := time.Now()
	decCtx, decSpan := tracer.Start(ctx, "decode_score")
	stream, err := uc.decoder.Open(decCtx, videoPath)
	if err != nil {
		decSpan.End()
		return nil, err
	}
	defer stream.Close()

	fps := keyframe.EffectiveFPS(stream.FPS(), uc.cfg.DefaultFPS)
	if fps != stream.FPS() {
		log.Warn("frame rate unavailable, using default", zap.Float64("probed", stream.FPS()), zap.Float64("fps", fps))
	}

	scorer := keyframe.NewScorer(uc.cfg.ResizeWidth, uc.cfg.ResizeHeight, uc.cfg.SceneThreshold)
	var candidates []entity.ChangeCandidate
	candidateCount := 0
	frameCount, err := uc.sampler.Walk(decCtx, stream, func(index int, frame image.Image) error {
		if c, ok := scorer.Observe(index, frame); ok {
			candidateCount++
			candidates = uc.selector.Prune(append(candidates, c))
		}
		return nil
	})
	decSpan.SetAttributes(attribute.Int("frames", frameCount), attribute.Int("candidates", candidateCount))
	decSpan.End()
	if err != nil {
		return nil, err
	}
	metrics.StageDuration.WithLabelValues("decode_score").Observe(time.Since(decStart).Seconds())
	metrics.FramesDecodedTotal.Add(float64(frameCount))
	metrics.CandidatesTotal.Add(float64(candidateCount))

	log.Debug("frames scored",
		zap.Int("frame_count", frameCount),
		zap.Int("candidates", candidateCount),
	)

	selections := uc.selector.Select(candidates)

	matStart := time.Now()
	matCtx, matSpan := tracer.Start(ctx, "materialize")
	records, err := uc.materializer.Materialize(matCtx, area.Path, fps, selections)
	matSpan.End()
	if err != nil {
		return nil, err
	}
	metrics.StageDuration.WithLabelValues("materialize").Observe(time.Since(matStart).Seconds())
	metrics.KeyframesSelectedTotal.Add(float64(len(records)))

	return &entity.Manifest{
		RunID:      runID,
		Records:    records,
		Total:      len(records),
		StagingDir: area.Path,
		FPS:        fps,
		FrameCount: frameCount,
	}, nil
}

// failureStatus labels a failed run. A run whose own context ended is
// cancelled, whichever stage noticed it first.
func failureStatus(ctx context.Context, err error) string {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return "cancelled"
	}
	var (
		downloadErr *entity.DownloadError
		decodeErr   *entity.DecodeError
		writeErr    *entity.WriteError
	)
	switch {
	case errors.As(err, &downloadErr):
		return "download_failed"
	case errors.As(err, &decodeErr):
		return "decode_failed"
	case errors.As(err, &writeErr):
		return "write_failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "failed"
	}
}
