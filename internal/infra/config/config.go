package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	SelectionTopK    = "topk"
	SelectionSpacing = "spacing"
)

type Config struct {
	MaxFrames         int     `env:"MAX_FRAMES"          envDefault:"30"`
	SkipFrames        int     `env:"SKIP_FRAMES"         envDefault:"3"`
	SceneThreshold    float64 `env:"SCENE_THRESHOLD"     envDefault:"20.0"`
	FrameResizeWidth  int     `env:"FRAME_RESIZE_WIDTH"  envDefault:"224"`
	FrameResizeHeight int     `env:"FRAME_RESIZE_HEIGHT" envDefault:"224"`
	SelectionPolicy   string  `env:"SELECTION_POLICY"    envDefault:"topk"`
	MinFrameSpacing   int     `env:"MIN_FRAME_SPACING"   envDefault:"10"`
	JPEGQuality       int     `env:"JPEG_QUALITY"        envDefault:"95"`
	DefaultFPS        float64 `env:"DEFAULT_FPS"         envDefault:"30"`

	CleanupDelaySeconds int    `env:"CLEANUP_DELAY_SECONDS" envDefault:"600"`
	TempDir             string `env:"TEMP_DIR"              envDefault:"/tmp/video-to-frame"`
	FrameBaseURL        string `env:"FRAME_BASE_URL"        envDefault:"http://localhost:8000/frame?path="`

	DownloadTimeoutSeconds int `env:"DOWNLOAD_TIMEOUT_SECONDS" envDefault:"30"`
	DownloadChunkSize      int `env:"DOWNLOAD_CHUNK_SIZE"      envDefault:"8192"`

	FFmpegPath  string `env:"FFMPEG_PATH"  envDefault:"ffmpeg"`
	FFprobePath string `env:"FFPROBE_PATH" envDefault:"ffprobe"`

	HTTPPort              int `env:"HTTP_PORT"               envDefault:"8000"`
	RequestTimeoutSeconds int `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"300"`

	ModerationAPIURL         string `env:"MODERATION_API_URL"         envDefault:"https://revision.basalam.com/api_v1.0/validation/image/hijab-detector/bulk"`
	ModerationAPIToken       string `env:"MODERATION_API_TOKEN"`
	ModerationTimeoutSeconds int    `env:"MODERATION_TIMEOUT_SECONDS" envDefault:"45"`

	DatabaseURL string `env:"DATABASE_URL"`

	MinIOEndpoint       string `env:"MINIO_ENDPOINT"`
	MinIOAccessKey      string `env:"MINIO_ACCESS_KEY"       envDefault:"minioadmin"`
	MinIOSecretKey      string `env:"MINIO_SECRET_KEY"       envDefault:"minioadmin"`
	MinIOUseSSL         bool   `env:"MINIO_USE_SSL"          envDefault:"false"`
	MinIOEvidenceBucket string `env:"MINIO_EVIDENCE_BUCKET"  envDefault:"keyframe-evidence"`

	RabbitMQURL          string `env:"RABBITMQ_URL"`
	RabbitMQCheckQueue   string `env:"RABBITMQ_CHECK_QUEUE"   envDefault:"video.check"`
	RabbitMQVerdictQueue string `env:"RABBITMQ_VERDICT_QUEUE" envDefault:"video.verdict"`
	RabbitMQDLQ          string `env:"RABBITMQ_DLQ"           envDefault:"video.check.dlq"`
	RabbitMQExchange     string `env:"RABBITMQ_EXCHANGE"      envDefault:"video.moderation"`
	RabbitMQPrefetch     int    `env:"RABBITMQ_PREFETCH"      envDefault:"2"`

	WorkerCount      int `env:"WORKER_COUNT"               envDefault:"2"`
	MaxAttempts      int `env:"WORKER_MAX_ATTEMPTS"        envDefault:"3"`
	RetryBaseDelayMs int `env:"WORKER_RETRY_BASE_DELAY_MS" envDefault:"1000"`

	SMTPHost       string `env:"SMTP_HOST"`
	SMTPPort       int    `env:"SMTP_PORT"        envDefault:"1025"`
	SMTPFrom       string `env:"SMTP_FROM"        envDefault:"noreply@video-to-frame.local"`
	NotificationTo string `env:"NOTIFICATION_TO"`

	MetricsPort    int    `env:"METRICS_PORT"    envDefault:"8083"`
	JaegerEndpoint string `env:"JAEGER_ENDPOINT"`
	LogLevel       string `env:"LOG_LEVEL"       envDefault:"info"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.MaxFrames <= 0 {
		errs = append(errs, fmt.Errorf("MAX_FRAMES must be positive, got %d", c.MaxFrames))
	}
	if c.SkipFrames <= 0 {
		errs = append(errs, fmt.Errorf("SKIP_FRAMES must be positive, got %d", c.SkipFrames))
	}
	if c.SceneThreshold < 0 {
		errs = append(errs, fmt.Errorf("SCENE_THRESHOLD must not be negative, got %v", c.SceneThreshold))
	}
	if c.FrameResizeWidth <= 0 || c.FrameResizeHeight <= 0 {
		errs = append(errs, fmt.Errorf("FRAME_RESIZE_WIDTH/HEIGHT must be positive, got %dx%d", c.FrameResizeWidth, c.FrameResizeHeight))
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("JPEG_QUALITY must be within 1..100, got %d", c.JPEGQuality))
	}
	if c.CleanupDelaySeconds < 0 {
		errs = append(errs, fmt.Errorf("CLEANUP_DELAY_SECONDS must not be negative, got %d", c.CleanupDelaySeconds))
	}
	if c.MinFrameSpacing < 0 {
		errs = append(errs, fmt.Errorf("MIN_FRAME_SPACING must not be negative, got %d", c.MinFrameSpacing))
	}
	if c.DefaultFPS <= 0 || math.IsInf(c.DefaultFPS, 0) || math.IsNaN(c.DefaultFPS) {
		errs = append(errs, fmt.Errorf("DEFAULT_FPS must be a positive number, got %v", c.DefaultFPS))
	}
	if c.DownloadTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("DOWNLOAD_TIMEOUT_SECONDS must be positive, got %d", c.DownloadTimeoutSeconds))
	}
	if c.RequestTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("REQUEST_TIMEOUT_SECONDS must be positive, got %d", c.RequestTimeoutSeconds))
	}
	if c.ModerationTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("MODERATION_TIMEOUT_SECONDS must be positive, got %d", c.ModerationTimeoutSeconds))
	}
	if c.WorkerCount <= 0 {
		errs = append(errs, fmt.Errorf("WORKER_COUNT must be positive, got %d", c.WorkerCount))
	}
	if c.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("WORKER_MAX_ATTEMPTS must be positive, got %d", c.MaxAttempts))
	}
	if c.RetryBaseDelayMs < 0 {
		errs = append(errs, fmt.Errorf("WORKER_RETRY_BASE_DELAY_MS must not be negative, got %d", c.RetryBaseDelayMs))
	}
	if c.DownloadChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("DOWNLOAD_CHUNK_SIZE must be positive, got %d", c.DownloadChunkSize))
	}
	switch c.SelectionPolicy {
	case SelectionTopK, SelectionSpacing:
	default:
		errs = append(errs, fmt.Errorf("SELECTION_POLICY must be %q or %q, got %q", SelectionTopK, SelectionSpacing, c.SelectionPolicy))
	}
	if c.TempDir == "" {
		errs = append(errs, errors.New("TEMP_DIR must not be empty"))
	}
	return errors.Join(errs...)
}

func (c *Config) CleanupDelay() time.Duration {
	return time.Duration(c.CleanupDelaySeconds) * time.Second
}

func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.DownloadTimeoutSeconds) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c *Config) ModerationTimeout() time.Duration {
	return time.Duration(c.ModerationTimeoutSeconds) * time.Second
}
