package entity

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusPending    RunStatus = "PENDING"
	RunStatusProcessing RunStatus = "PROCESSING"
	RunStatusCompleted  RunStatus = "COMPLETED"
	RunStatusFailed     RunStatus = "FAILED"
)

// Run is the bookkeeping record of one extraction run and its moderation outcome.
type Run struct {
	ID            uuid.UUID
	VideoURL      string
	Status        RunStatus
	FrameCount    int
	KeyframeCount int
	FPS           float64
	IsForbidden   *bool
	StagingDir    string
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

func NewRun(id uuid.UUID, videoURL string) *Run {
	now := time.Now().UTC()
	return &Run{
		ID:        id,
		VideoURL:  videoURL,
		Status:    RunStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *Run) MarkProcessing() {
	r.Status = RunStatusProcessing
	r.UpdatedAt = time.Now().UTC()
}

func (r *Run) MarkExtracted(m *Manifest) {
	r.FrameCount = m.FrameCount
	r.KeyframeCount = len(m.Records)
	r.FPS = m.FPS
	r.StagingDir = m.StagingDir
	r.UpdatedAt = time.Now().UTC()
}

func (r *Run) MarkCompleted(forbidden bool) {
	now := time.Now().UTC()
	r.Status = RunStatusCompleted
	r.IsForbidden = &forbidden
	r.UpdatedAt = now
	r.CompletedAt = &now
}

func (r *Run) MarkFailed(errMsg string) {
	r.Status = RunStatusFailed
	r.ErrorMessage = errMsg
	r.UpdatedAt = time.Now().UTC()
}
