package keyframe

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/MhdAstro/video-to-frame/internal/domain/entity"
	"github.com/MhdAstro/video-to-frame/internal/domain/port"
)

var ErrNoFrames = errors.New("video contains no decodable frames")

// Sampler visits every Stride-th frame of a stream, starting at index 0.
type Sampler struct {
	Stride int
}

func NewSampler(stride int) *Sampler {
	if stride <= 0 {
		stride = 1
	}
	return &Sampler{Stride: stride}
}

// Walk reads the stream until end of stream and calls fn with each sampled frame.
// Frames between samples are consumed with Skip so indices stay exact.
// It returns the number of frames read from the stream.
func (s *Sampler) Walk(ctx context.Context, stream port.VideoStream, fn func(index int, frame image.Image) error) (int, error) {
	index := 0
	for {
		if err := ctx.Err(); err != nil {
			return index, err
		}

		if index%s.Stride != 0 {
			if err := stream.Skip(); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return index, decodeError(ctx, fmt.Sprintf("skip frame %d", index), err)
			}
			index++
			continue
		}

		frame, err := stream.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return index, decodeError(ctx, fmt.Sprintf("read frame %d", index), err)
		}
		if err := fn(index, frame); err != nil {
			return index, err
		}
		index++
	}

	if err := ctx.Err(); err != nil {
		return index, err
	}
	if index == 0 {
		return 0, &entity.DecodeError{Op: "read frames", Err: ErrNoFrames}
	}
	return index, nil
}

// decodeError wraps a stream failure. A stream torn down by cancellation
// reports the context error itself, which is not a decode failure.
func decodeError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return ctxErr
	}
	return &entity.DecodeError{Op: op, Err: err}
}
