package entity

import (
	"image"

	"github.com/google/uuid"
)

// ChangeCandidate is a sampled frame whose dissimilarity to its sampled predecessor
// exceeded the scene threshold. Frame holds the original full-resolution pixels.
type ChangeCandidate struct {
	FrameIndex int
	Score      float64
	Frame      image.Image
}

// KeyframeRecord describes one materialized keyframe. FileID is its position
// (0..K-1) in the selector's output order.
type KeyframeRecord struct {
	FileID           int     `json:"file_id"`
	FrameIndex       int     `json:"frame_index"`
	TimestampSeconds float64 `json:"timestamp_seconds"`
	Score            float64 `json:"score"`
	URL              string  `json:"url"`
	Path             string  `json:"image_path"`
}

// Manifest is the sole result of an extraction run. Records are ordered by
// non-increasing score and are valid until the staging area is removed.
type Manifest struct {
	RunID      uuid.UUID        `json:"run_id"`
	Records    []KeyframeRecord `json:"frames"`
	Total      int              `json:"total"`
	StagingDir string           `json:"output_directory"`
	FPS        float64          `json:"fps"`
	FrameCount int              `json:"frame_count"`
}

func (m *Manifest) Empty() bool {
	return len(m.Records) == 0
}
