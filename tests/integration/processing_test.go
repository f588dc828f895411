package integration

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"github.com/MhdAstro/video-to-frame/internal/domain/entity"
	"github.com/MhdAstro/video-to-frame/internal/infra/archive"
	"github.com/MhdAstro/video-to-frame/internal/infra/ffmpeg"
	"github.com/MhdAstro/video-to-frame/internal/infra/httpsource"
	miniostorage "github.com/MhdAstro/video-to-frame/internal/infra/minio"
	"github.com/MhdAstro/video-to-frame/internal/infra/moderation"
	"github.com/MhdAstro/video-to-frame/internal/infra/postgres"
	"github.com/MhdAstro/video-to-frame/internal/infra/rabbitmq"
	"github.com/MhdAstro/video-to-frame/internal/staging"
	"github.com/MhdAstro/video-to-frame/internal/usecase"
	"github.com/MhdAstro/video-to-frame/migrations"
	"github.com/MhdAstro/video-to-frame/pkg/logger"
)

const (
	exchange     = "video.moderation"
	checkQueue   = "video.check"
	verdictQueue = "video.verdict"
	dlqQueue     = "video.check.dlq"
	bucket       = "keyframe-evidence"
)

type testEnv struct {
	pool        *pgxpool.Pool
	rmqConn     *amqp.Connection
	rmqURL      string
	storage     *miniostorage.Storage
	minioClient *miniogo.Client
}

func setupEnv(ctx context.Context, t *testing.T) *testEnv {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("runs"),
		tcpostgres.WithUsername("run_user"),
		tcpostgres.WithPassword("run_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { pgContainer.Terminate(context.Background()) })

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, postgres.RunMigrations(ctx, pgConnStr, migrations.FS))

	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	rmqContainer, err := tcrabbitmq.Run(ctx, "rabbitmq:3.12-management-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { rmqContainer.Terminate(context.Background()) })

	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)
	rmqConn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	t.Cleanup(func() { rmqConn.Close() })

	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { minioContainer.Terminate(context.Background()) })

	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:       minioEndpoint,
		AccessKey:      "minioadmin",
		SecretKey:      "minioadmin",
		EvidenceBucket: bucket,
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBucket(ctx))

	minioClient, err := miniogo.New(minioEndpoint, &miniogo.Options{
		Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
	})
	require.NoError(t, err)

	return &testEnv{
		pool:        pool,
		rmqConn:     rmqConn,
		rmqURL:      rmqURL,
		storage:     storage,
		minioClient: minioClient,
	}
}

// startService wires the check pipeline the way cmd/server does and runs the
// consumer until the test ends.
func (e *testEnv) startService(ctx context.Context, t *testing.T, moderationURL string) {
	t.Helper()

	log, err := logger.New("debug")
	require.NoError(t, err)

	manager, err := staging.NewManager(t.TempDir(), time.Minute, log)
	require.NoError(t, err)

	decoder := ffmpeg.NewDecoder("ffmpeg", "ffprobe", log)
	stager := httpsource.NewStager(10*time.Second, 8192, log)
	extractor := usecase.NewExtractKeyframesUseCase(stager, decoder, manager, log, usecase.ExtractConfig{
		Stride:         1,
		SceneThreshold: 20,
		ResizeWidth:    32,
		ResizeHeight:   32,
		MaxFrames:      5,
		DefaultFPS:     30,
		FrameBaseURL:   "http://localhost:8000/frame?path=",
		JPEGQuality:    90,
	})

	pub, err := rabbitmq.NewPublisher(e.rmqConn, exchange)
	require.NoError(t, err)
	t.Cleanup(func() { pub.Close() })

	checker := usecase.NewCheckVideoUseCase(
		extractor, manager,
		moderation.NewClient(moderationURL, "", 10*time.Second, log),
		postgres.NewRunRepository(e.pool),
		e.storage,
		archive.NewZipper(),
		nil,
		rabbitmq.NewVerdictPublisher(pub),
		rabbitmq.NewDLQPublisher(pub, dlqQueue),
		log,
		usecase.CheckVideoConfig{MaxAttempts: 3},
	)

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:          e.rmqURL,
		Exchange:     exchange,
		Queue:        checkQueue,
		DLQ:          dlqQueue,
		VerdictQueue: verdictQueue,
		Prefetch:     1,
		WorkerCount:  1,
		BaseDelayMs:  100,
	}, checker.HandleMessage, log)
	require.NoError(t, err)

	consumerCtx, consumerCancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		consumer.Start(consumerCtx)
	}()
	t.Cleanup(func() {
		consumerCancel()
		<-done
		consumer.Close()
	})

	// Give consumer time to start
	time.Sleep(500 * time.Millisecond)
}

func (e *testEnv) publishCheck(ctx context.Context, t *testing.T, body []byte) {
	t.Helper()
	ch, err := e.rmqConn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	err = ch.PublishWithContext(ctx, exchange, rabbitmq.RoutingKeyCheck, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	require.NoError(t, err)
}

// generateVideo writes two seconds of video whose second half is a hard cut
// from black to white.
func generateVideo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available")
	}
	path := filepath.Join(t.TempDir(), "cut.mp4")
	gen := exec.Command("ffmpeg", "-v", "error",
		"-f", "lavfi", "-i", "color=c=black:s=64x48:r=10:d=1",
		"-f", "lavfi", "-i", "color=c=white:s=64x48:r=10:d=1",
		"-filter_complex", "[0:v][1:v]concat=n=2:v=1",
		"-c:v", "libx264", "-pix_fmt", "yuv420p", path)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("cannot generate test video: %v: %s", err, out)
	}
	return path
}

func TestCheckVideoEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	videoPath := generateVideo(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	env := setupEnv(ctx, t)

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, videoPath)
	}))
	defer origin.Close()

	judged := make(chan []entity.ModerationItem, 1)
	moderationAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Images []entity.ModerationItem `json:"images"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		select {
		case judged <- req.Images:
		default:
		}
		results := make([]entity.ModerationResult, 0, len(req.Images))
		for _, img := range req.Images {
			id := img.FileID
			results = append(results, entity.ModerationResult{FileID: &id, IsForbidden: true, Confidence: 0.97})
		}
		json.NewEncoder(w).Encode(results)
	}))
	defer moderationAPI.Close()

	env.startService(ctx, t, moderationAPI.URL)

	runID := uuid.New()
	body, err := json.Marshal(entity.VideoCheckMessage{RunID: runID, VideoURL: origin.URL + "/cut.mp4"})
	require.NoError(t, err)
	env.publishCheck(ctx, t, body)

	verdictCh, err := env.rmqConn.Channel()
	require.NoError(t, err)
	defer verdictCh.Close()

	verdicts, err := verdictCh.Consume(verdictQueue, "", true, false, false, false, nil)
	require.NoError(t, err)

	var verdict entity.VideoVerdictMessage
	select {
	case d := <-verdicts:
		require.NoError(t, json.Unmarshal(d.Body, &verdict))
	case <-time.After(2 * time.Minute):
		t.Fatal("timeout waiting for verdict message")
	}

	assert.Equal(t, runID, verdict.RunID)
	assert.Equal(t, entity.RunStatusCompleted, verdict.Status)
	assert.True(t, verdict.IsForbidden)
	assert.Equal(t, 1, verdict.FrameCount, "one hard cut yields one keyframe")
	select {
	case items := <-judged:
		require.Len(t, items, 1)
		assert.Contains(t, items[0].URL, "frame_")
	default:
		t.Fatal("moderation api was never called")
	}

	var (
		dbStatus      string
		dbKeyframes   int
		dbForbidden   bool
		dbFrameCount  int
		dbCompletedAt *time.Time
	)
	err = env.pool.QueryRow(ctx,
		"SELECT status, keyframe_count, is_forbidden, frame_count, completed_at FROM extraction_runs WHERE id=$1", runID,
	).Scan(&dbStatus, &dbKeyframes, &dbForbidden, &dbFrameCount, &dbCompletedAt)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", dbStatus)
	assert.Equal(t, 1, dbKeyframes)
	assert.True(t, dbForbidden)
	assert.Equal(t, 20, dbFrameCount)
	assert.NotNil(t, dbCompletedAt)

	obj, err := env.minioClient.GetObject(ctx, bucket, runID.String()+"/evidence.zip", miniogo.GetObjectOptions{})
	require.NoError(t, err)
	defer obj.Close()
	data, err := io.ReadAll(obj)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	var jpegs, manifests int
	for _, f := range zr.File {
		switch {
		case strings.HasSuffix(f.Name, ".jpeg"):
			jpegs++
		case f.Name == "manifest.json":
			manifests++
		}
	}
	assert.Equal(t, 1, jpegs)
	assert.Equal(t, 1, manifests)
}

func TestCheckVideoMalformedMessage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	env := setupEnv(ctx, t)
	env.startService(ctx, t, "http://127.0.0.1:1/unused")

	env.publishCheck(ctx, t, []byte(`{invalid json`))

	// Wait and verify message landed in DLQ
	dlqCh, err := env.rmqConn.Channel()
	require.NoError(t, err)
	defer dlqCh.Close()

	var (
		msg amqp.Delivery
		ok  bool
	)
	require.Eventually(t, func() bool {
		msg, ok, err = dlqCh.Get(dlqQueue, true)
		return err == nil && ok
	}, 10*time.Second, 200*time.Millisecond, "malformed message should be in DLQ")

	assert.Equal(t, `{invalid json`, string(msg.Body))
	assert.Contains(t, msg.Headers["x-dlq-reason"], "unmarshal_error")
}

func TestCheckVideoMissingOriginIsDeadLettered(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	env := setupEnv(ctx, t)

	origin := httptest.NewServer(http.NotFoundHandler())
	defer origin.Close()

	env.startService(ctx, t, "http://127.0.0.1:1/unused")

	runID := uuid.New()
	body, err := json.Marshal(entity.VideoCheckMessage{RunID: runID, VideoURL: origin.URL + "/missing.mp4"})
	require.NoError(t, err)
	env.publishCheck(ctx, t, body)

	dlqCh, err := env.rmqConn.Channel()
	require.NoError(t, err)
	defer dlqCh.Close()

	require.Eventually(t, func() bool {
		_, ok, err := dlqCh.Get(dlqQueue, true)
		return err == nil && ok
	}, 30*time.Second, 200*time.Millisecond, "a 404 is not retried")

	var dbStatus, dbError string
	err = env.pool.QueryRow(ctx,
		"SELECT status, error_message FROM extraction_runs WHERE id=$1", runID,
	).Scan(&dbStatus, &dbError)
	require.NoError(t, err)
	assert.Equal(t, "FAILED", dbStatus)
	assert.Contains(t, dbError, "404")
}
