package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/MhdAstro/video-to-frame/internal/domain/port"
	"github.com/MhdAstro/video-to-frame/internal/infra/archive"
	"github.com/MhdAstro/video-to-frame/internal/infra/config"
	"github.com/MhdAstro/video-to-frame/internal/infra/email"
	"github.com/MhdAstro/video-to-frame/internal/infra/ffmpeg"
	"github.com/MhdAstro/video-to-frame/internal/infra/httpapi"
	"github.com/MhdAstro/video-to-frame/internal/infra/httpsource"
	"github.com/MhdAstro/video-to-frame/internal/infra/metrics"
	miniostorage "github.com/MhdAstro/video-to-frame/internal/infra/minio"
	"github.com/MhdAstro/video-to-frame/internal/infra/moderation"
	"github.com/MhdAstro/video-to-frame/internal/infra/postgres"
	"github.com/MhdAstro/video-to-frame/internal/infra/rabbitmq"
	"github.com/MhdAstro/video-to-frame/internal/infra/tracing"
	"github.com/MhdAstro/video-to-frame/internal/staging"
	"github.com/MhdAstro/video-to-frame/internal/usecase"
	"github.com/MhdAstro/video-to-frame/migrations"
	"github.com/MhdAstro/video-to-frame/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		panic("load .env: " + err.Error())
	}

	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting video-to-frame")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if the collector is unavailable)
	shutdownTracer, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer shutdownTracer(context.Background())
	}

	// Staging
	manager, err := staging.NewManager(cfg.TempDir, cfg.CleanupDelay(), log)
	fatalOnErr(err, "create staging manager")
	swept := manager.SweepStale(cfg.CleanupDelay())
	log.Info("stale staging sweep finished",
		zap.Int("removed", len(swept.Removed)),
		zap.Int("failed", len(swept.Errors)),
	)

	// Pipeline
	decoder := ffmpeg.NewDecoder(cfg.FFmpegPath, cfg.FFprobePath, log)
	fatalOnErr(decoder.Check(), "locate ffmpeg")
	stager := httpsource.NewStager(cfg.DownloadTimeout(), cfg.DownloadChunkSize, log)

	extractor := usecase.NewExtractKeyframesUseCase(stager, decoder, manager, log, usecase.NewExtractConfig(cfg))

	// Optional collaborators
	var repo port.RunRepository
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		fatalOnErr(err, "connect to postgres")
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, cfg.DatabaseURL, migrations.FS); err != nil {
			log.Warn("migration warning", zap.Error(err))
		}
		repo = postgres.NewRunRepository(pool)
	}

	var storage port.EvidenceStorage
	if cfg.MinIOEndpoint != "" {
		s, err := miniostorage.NewStorage(miniostorage.StorageConfig{
			Endpoint:       cfg.MinIOEndpoint,
			AccessKey:      cfg.MinIOAccessKey,
			SecretKey:      cfg.MinIOSecretKey,
			UseSSL:         cfg.MinIOUseSSL,
			EvidenceBucket: cfg.MinIOEvidenceBucket,
		})
		fatalOnErr(err, "create minio storage")
		fatalOnErr(s.EnsureBucket(ctx), "ensure evidence bucket")
		storage = s
	}

	var notifier port.VerdictNotifier
	if cfg.SMTPHost != "" {
		notifier = email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)
	}

	var (
		verdicts port.VerdictPublisher
		dlq      port.DLQPublisher
	)
	if cfg.RabbitMQURL != "" {
		rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
		fatalOnErr(err, "connect to rabbitmq for publisher")
		defer rmqConn.Close()

		pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
		fatalOnErr(err, "create rabbitmq publisher")
		verdicts = rabbitmq.NewVerdictPublisher(pub)
		dlq = rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)
	}

	moderator := moderation.NewClient(cfg.ModerationAPIURL, cfg.ModerationAPIToken, cfg.ModerationTimeout(), log)
	if cfg.ModerationAPIToken == "" {
		log.Warn("MODERATION_API_TOKEN is empty, moderation calls will be unauthenticated")
	}

	checker := usecase.NewCheckVideoUseCase(
		extractor, manager, moderator,
		repo, storage, archive.NewZipper(), notifier,
		verdicts, dlq,
		log,
		usecase.CheckVideoConfig{
			NotifyTo:    splitList(cfg.NotificationTo),
			MaxAttempts: cfg.MaxAttempts,
		},
	)

	// Servers
	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)
	api := httpapi.NewServer(cfg.HTTPPort, extractor, checker, manager, cfg.RequestTimeout(), log)
	api.Start(ctx)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	if cfg.RabbitMQURL != "" {
		consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
			URL:          cfg.RabbitMQURL,
			Exchange:     cfg.RabbitMQExchange,
			Queue:        cfg.RabbitMQCheckQueue,
			DLQ:          cfg.RabbitMQDLQ,
			VerdictQueue: cfg.RabbitMQVerdictQueue,
			Prefetch:     cfg.RabbitMQPrefetch,
			WorkerCount:  cfg.WorkerCount,
			BaseDelayMs:  cfg.RetryBaseDelayMs,
		}, checker.HandleMessage, log)
		fatalOnErr(err, "create consumer")
		defer consumer.Close()

		log.Info("video-to-frame started, serving http and consuming checks")
		if err := consumer.Start(ctx); err != nil {
			log.Error("consumer error", zap.Error(err))
		}
	} else {
		log.Info("video-to-frame started, serving http")
		<-ctx.Done()
	}

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	log.Info("video-to-frame stopped")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
