package entity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLifecycle(t *testing.T) {
	id := uuid.New()
	run := NewRun(id, "https://example.com/v.mp4")
	assert.Equal(t, RunStatusPending, run.Status)
	assert.Nil(t, run.IsForbidden)

	run.MarkProcessing()
	assert.Equal(t, RunStatusProcessing, run.Status)

	run.MarkExtracted(&Manifest{
		RunID:      id,
		Records:    []KeyframeRecord{{FileID: 0}, {FileID: 1}},
		StagingDir: "/tmp/x",
		FPS:        25,
		FrameCount: 100,
	})
	assert.Equal(t, 2, run.KeyframeCount)
	assert.Equal(t, 100, run.FrameCount)
	assert.Equal(t, "/tmp/x", run.StagingDir)

	run.MarkCompleted(true)
	assert.Equal(t, RunStatusCompleted, run.Status)
	require.NotNil(t, run.IsForbidden)
	assert.True(t, *run.IsForbidden)
	assert.NotNil(t, run.CompletedAt)
}

func TestRunMarkFailed(t *testing.T) {
	run := NewRun(uuid.New(), "https://example.com/v.mp4")
	run.MarkFailed("decode: open: boom")
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Equal(t, "decode: open: boom", run.ErrorMessage)
	assert.Nil(t, run.CompletedAt)
}
