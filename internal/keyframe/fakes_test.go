package keyframe

import (
	"image"
	"image/color"
	"io"
)

type fakeStream struct {
	frames  []image.Image
	fps     float64
	pos     int
	reads   []int
	failAt  int
	failErr error
	onFail  func()
}

func newFakeStream(fps float64, frames ...image.Image) *fakeStream {
	return &fakeStream{frames: frames, fps: fps, failAt: -1}
}

func (s *fakeStream) FPS() float64 { return s.fps }

func (s *fakeStream) Skip() error {
	_, err := s.next()
	return err
}

func (s *fakeStream) Read() (image.Image, error) {
	idx := s.pos
	img, err := s.next()
	if err == nil {
		s.reads = append(s.reads, idx)
	}
	return img, err
}

func (s *fakeStream) next() (image.Image, error) {
	if s.pos == s.failAt {
		if s.onFail != nil {
			s.onFail()
		}
		return nil, s.failErr
	}
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	img := s.frames[s.pos]
	s.pos++
	return img, nil
}

func (s *fakeStream) Close() error { return nil }

func solid(v uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = v
		img.Pix[i+1] = v
		img.Pix[i+2] = v
		img.Pix[i+3] = 0xff
	}
	return img
}

func halves(left, right color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			if x < 16 {
				img.SetRGBA(x, y, left)
			} else {
				img.SetRGBA(x, y, right)
			}
		}
	}
	return img
}
