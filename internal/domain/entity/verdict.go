package entity

import "encoding/json"

// ModerationItem is one keyframe submitted to the moderation service.
type ModerationItem struct {
	FileID int    `json:"file_id"`
	URL    string `json:"url"`
}

// ModerationResult is the per-item verdict returned by the moderation service.
// FrameURL is filled in locally from the submitted batch. Fields the service
// sends beyond the known ones are kept in Extra and written back out as-is.
type ModerationResult struct {
	FileID      *int    `json:"file_id,omitempty"`
	IsForbidden bool    `json:"is_forbidden"`
	Confidence  float64 `json:"confidence,omitempty"`
	Label       string  `json:"label,omitempty"`
	FrameURL    string  `json:"frame_url,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type moderationResultFields ModerationResult

var moderationResultKeys = map[string]struct{}{
	"file_id": {}, "is_forbidden": {}, "confidence": {}, "label": {}, "frame_url": {},
}

func (r *ModerationResult) UnmarshalJSON(data []byte) error {
	var fields moderationResultFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k := range moderationResultKeys {
		delete(all, k)
	}
	if len(all) == 0 {
		all = nil
	}
	fields.Extra = all
	*r = ModerationResult(fields)
	return nil
}

func (r ModerationResult) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(moderationResultFields(r))
	if err != nil || len(r.Extra) == 0 {
		return data, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		if _, known := moderationResultKeys[k]; !known {
			all[k] = v
		}
	}
	return json.Marshal(all)
}

// CheckResult is the outcome of checking one video.
type CheckResult struct {
	IsVideoForbidden bool               `json:"is_video_forbidden"`
	FrameCount       int                `json:"frame_count"`
	Message          string             `json:"message,omitempty"`
	RevisionResults  []ModerationResult `json:"revision_results,omitempty"`
}

const NoSignificantFramesMessage = "No significant frames found for analysis."
