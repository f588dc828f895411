package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.MaxFrames)
	assert.Equal(t, 3, cfg.SkipFrames)
	assert.Equal(t, 20.0, cfg.SceneThreshold)
	assert.Equal(t, 224, cfg.FrameResizeWidth)
	assert.Equal(t, 224, cfg.FrameResizeHeight)
	assert.Equal(t, 600*time.Second, cfg.CleanupDelay())
	assert.Equal(t, 30*time.Second, cfg.DownloadTimeout())
	assert.Equal(t, 8192, cfg.DownloadChunkSize)
	assert.Equal(t, SelectionTopK, cfg.SelectionPolicy)
	assert.Empty(t, cfg.ModerationAPIToken)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MAX_FRAMES", "5")
	t.Setenv("SKIP_FRAMES", "2")
	t.Setenv("SCENE_THRESHOLD", "12.5")
	t.Setenv("CLEANUP_DELAY_SECONDS", "1")
	t.Setenv("SELECTION_POLICY", "spacing")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.MaxFrames)
	assert.Equal(t, 2, cfg.SkipFrames)
	assert.Equal(t, 12.5, cfg.SceneThreshold)
	assert.Equal(t, time.Second, cfg.CleanupDelay())
	assert.Equal(t, SelectionSpacing, cfg.SelectionPolicy)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]struct {
		key, value string
	}{
		"zero cap":                {"MAX_FRAMES", "0"},
		"zero stride":             {"SKIP_FRAMES", "0"},
		"bad policy":              {"SELECTION_POLICY", "random"},
		"bad quality":             {"JPEG_QUALITY", "101"},
		"negative delay":          {"CLEANUP_DELAY_SECONDS", "-1"},
		"zero fps":                {"DEFAULT_FPS", "0"},
		"negative fps":            {"DEFAULT_FPS", "-25"},
		"zero download timeout":   {"DOWNLOAD_TIMEOUT_SECONDS", "0"},
		"zero request timeout":    {"REQUEST_TIMEOUT_SECONDS", "0"},
		"zero moderation timeout": {"MODERATION_TIMEOUT_SECONDS", "0"},
		"no workers":              {"WORKER_COUNT", "0"},
		"no attempts":             {"WORKER_MAX_ATTEMPTS", "0"},
		"negative spacing":        {"MIN_FRAME_SPACING", "-1"},
		"negative retry delay":    {"WORKER_RETRY_BASE_DELAY_MS", "-5"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			assert.ErrorContains(t, err, tc.key)
		})
	}
}
