package entity

import "github.com/google/uuid"

// VideoCheckMessage is the inbound message from the video.check queue.
type VideoCheckMessage struct {
	RunID       uuid.UUID `json:"run_id"`
	VideoURL    string    `json:"video_url"`
	NotifyEmail string    `json:"notify_email,omitempty"`
}

// VideoVerdictMessage is the outbound message published to the video.verdict queue.
type VideoVerdictMessage struct {
	RunID        uuid.UUID `json:"run_id"`
	VideoURL     string    `json:"video_url"`
	Status       RunStatus `json:"status"`
	IsForbidden  bool      `json:"is_video_forbidden"`
	FrameCount   int       `json:"frame_count"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Attempt      int       `json:"attempt"`
}
