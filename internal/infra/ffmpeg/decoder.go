package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/MhdAstro/video-to-frame/internal/domain/entity"
	"github.com/MhdAstro/video-to-frame/internal/domain/port"
)

// Decoder reads frames through an ffmpeg process writing raw RGBA to a pipe.
// Frames pass through untouched: variable frame rate input is neither padded
// nor thinned to the nominal rate, so frame indices match the decoded sequence.
type Decoder struct {
	ffmpegPath  string
	ffprobePath string
	logger      *zap.Logger
}

func NewDecoder(ffmpegPath, ffprobePath string, logger *zap.Logger) *Decoder {
	return &Decoder{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, logger: logger}
}

// Check verifies that both executables can be found.
func (d *Decoder) Check() error {
	for _, bin := range []string{d.ffmpegPath, d.ffprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s not found: %w", bin, err)
		}
	}
	return nil
}

func (d *Decoder) Open(ctx context.Context, path string) (port.VideoStream, error) {
	info, err := probe(ctx, d.ffprobePath, path)
	if err != nil {
		return nil, &entity.DecodeError{Op: "probe", Err: err}
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, d.ffmpegPath,
		"-v", "error",
		"-nostdin",
		"-noautorotate",
		"-i", path,
		"-map", "0:v:0",
		"-an",
		"-fps_mode", "passthrough",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, &entity.DecodeError{Op: "open pipe", Err: err}
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, &entity.DecodeError{Op: "start ffmpeg", Err: err}
	}

	frameSize := info.Width * info.Height * 4
	d.logger.Debug("video stream opened",
		zap.String("path", path),
		zap.Int("width", info.Width),
		zap.Int("height", info.Height),
		zap.Float64("fps", info.FPS),
		zap.Float64("duration", info.Duration),
	)

	return &stream{
		ctx:     ctx,
		info:    info,
		cmd:     cmd,
		cancel:  cancel,
		stdout:  bufio.NewReaderSize(stdout, frameSize),
		stderr:  stderr,
		scratch: make([]byte, frameSize),
		logger:  d.logger,
	}, nil
}

type stream struct {
	ctx     context.Context
	info    VideoInfo
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	stdout  *bufio.Reader
	stderr  *bytes.Buffer
	scratch []byte
	frames  int
	logger  *zap.Logger

	waitOnce sync.Once
	waitErr  error
}

func (s *stream) FPS() float64 {
	return s.info.FPS
}

func (s *stream) Skip() error {
	return s.readInto(s.scratch)
}

// Read returns a newly allocated frame; callers may retain it.
func (s *stream) Read() (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, s.info.Width, s.info.Height))
	if err := s.readInto(img.Pix); err != nil {
		return nil, err
	}
	return img, nil
}

func (s *stream) readInto(buf []byte) error {
	_, err := io.ReadFull(s.stdout, buf)
	if err == nil {
		s.frames++
		return nil
	}
	if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return err
	}

	waitErr := s.wait()
	if err := s.ctx.Err(); err != nil {
		return err
	}
	if waitErr != nil {
		if s.frames == 0 {
			return fmt.Errorf("ffmpeg: %w: %s", waitErr, strings.TrimSpace(s.stderr.String()))
		}
		s.logger.Warn("ffmpeg exited with error after partial decode",
			zap.Int("frames", s.frames),
			zap.Error(waitErr),
			zap.String("stderr", strings.TrimSpace(s.stderr.String())),
		)
	}
	return io.EOF
}

func (s *stream) wait() error {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
	})
	return s.waitErr
}

func (s *stream) Close() error {
	s.cancel()
	s.wait()
	return nil
}
