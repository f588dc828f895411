package port

import (
	"context"
	"image"
)

// VideoStream yields decoded frames in order. Skip and Read return io.EOF at end of stream.
type VideoStream interface {
	FPS() float64
	Skip() error
	Read() (image.Image, error)
	Close() error
}

type VideoDecoder interface {
	Open(ctx context.Context, path string) (VideoStream, error)
}
