package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// VideoInfo is the subset of ffprobe output needed to read raw frames.
type VideoInfo struct {
	Width    int
	Height   int
	FPS      float64
	Duration float64
}

type probeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func probe(ctx context.Context, ffprobePath string, videoPath string) (VideoInfo, error) {
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,avg_frame_rate:format=duration",
		"-of", "json",
		"--", videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return VideoInfo{}, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return VideoInfo{}, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbe(output)
}

func parseProbe(output []byte) (VideoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return VideoInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return VideoInfo{}, errors.New("no video stream")
	}

	s := out.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return VideoInfo{}, fmt.Errorf("invalid frame size %dx%d", s.Width, s.Height)
	}

	fps := parseRate(s.RFrameRate)
	if fps <= 0 {
		fps = parseRate(s.AvgFrameRate)
	}
	duration, _ := strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64)

	return VideoInfo{Width: s.Width, Height: s.Height, FPS: fps, Duration: duration}, nil
}

// parseRate parses ffprobe rationals such as "30000/1001". Unknown rates yield 0.
func parseRate(rate string) float64 {
	rate = strings.TrimSpace(rate)
	if rate == "" {
		return 0
	}
	num, den, found := strings.Cut(rate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
