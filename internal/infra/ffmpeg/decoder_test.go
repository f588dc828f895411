package ffmpeg

import (
	"context"
	"errors"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MhdAstro/video-to-frame/internal/domain/entity"
)

func requireFFmpeg(t *testing.T) *Decoder {
	t.Helper()
	d := NewDecoder("ffmpeg", "ffprobe", zap.NewNop())
	if err := d.Check(); err != nil {
		t.Skipf("ffmpeg not available: %v", err)
	}
	return d
}

func TestDecoderReadsEveryFrame(t *testing.T) {
	d := requireFFmpeg(t)
	path := filepath.Join(t.TempDir(), "test.mp4")
	gen := exec.Command("ffmpeg", "-v", "error", "-f", "lavfi", "-i", "testsrc=duration=1:size=64x48:rate=10",
		"-c:v", "libx264", "-pix_fmt", "yuv420p", path)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("cannot generate test video: %v: %s", err, out)
	}

	stream, err := d.Open(context.Background(), path)
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, 10.0, stream.FPS())

	frames := 0
	for {
		var err error
		if frames%2 == 0 {
			var frame image.Image
			frame, err = stream.Read()
			if err == nil {
				assert.Equal(t, image.Rect(0, 0, 64, 48), frame.Bounds())
			}
		} else {
			err = stream.Skip()
		}
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		frames++
	}
	assert.Equal(t, 10, frames)
}

func TestDecoderRejectsNonVideo(t *testing.T) {
	d := requireFFmpeg(t)
	path := filepath.Join(t.TempDir(), "junk.mp4")
	require.NoError(t, os.WriteFile(path, []byte("this is not a video"), 0o644))

	_, err := d.Open(context.Background(), path)

	var decodeErr *entity.DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func countFrames(t *testing.T, stream interface{ Skip() error }) int {
	t.Helper()
	frames := 0
	for {
		err := stream.Skip()
		if errors.Is(err, io.EOF) {
			return frames
		}
		require.NoError(t, err)
		frames++
	}
}

func TestDecoderKeepsVariableFrameRateSequence(t *testing.T) {
	d := requireFFmpeg(t)
	path := filepath.Join(t.TempDir(), "vfr.mp4")
	// 20 frames: the first ten 100ms apart, the rest 20ms apart.
	gen := exec.Command("ffmpeg", "-v", "error", "-f", "lavfi", "-i", "testsrc=duration=2:size=64x48:rate=10",
		"-vf", `setpts=if(lt(N\,10)\,N*0.1\,1+(N-10)*0.02)/TB`,
		"-fps_mode", "vfr",
		"-c:v", "libx264", "-pix_fmt", "yuv420p", path)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("cannot generate test video: %v: %s", err, out)
	}

	stream, err := d.Open(context.Background(), path)
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, 20, countFrames(t, stream), "no frames duplicated or dropped to a constant rate")
}
