package entity

import "fmt"

// DownloadError reports an unreachable origin, a non-2xx status or a transport timeout.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// DecodeError reports an unreadable container or a video without frames.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode: %s: %v", e.Op, e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }

// WriteError reports a failure to materialize a keyframe into the staging area.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write %s: %v", e.Path, e.Err) }

func (e *WriteError) Unwrap() error { return e.Err }

// CleanupError reports a failed staging removal. It is logged or collected by
// sweeps, never returned as a run error.
type CleanupError struct {
	Path string
	Err  error
}

func (e *CleanupError) Error() string { return fmt.Sprintf("cleanup %s: %v", e.Path, e.Err) }

func (e *CleanupError) Unwrap() error { return e.Err }

// ModerationError reports a failed call to the moderation service.
type ModerationError struct {
	StatusCode int
	Err        error
}

func (e *ModerationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("moderation api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("moderation api: %v", e.Err)
}

func (e *ModerationError) Unwrap() error { return e.Err }
