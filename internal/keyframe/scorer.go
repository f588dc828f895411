package keyframe

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/MhdAstro/video-to-frame/internal/domain/entity"
)

// Scorer compares each sampled frame with the one sampled before it on a
// small grayscale copy. It keeps exactly one previous normalized frame.
type Scorer struct {
	width     int
	height    int
	threshold float64
	prev      *image.Gray
	scratch   *image.RGBA
}

func NewScorer(width, height int, threshold float64) *Scorer {
	return &Scorer{
		width:     width,
		height:    height,
		threshold: threshold,
		scratch:   image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

// Observe scores frame against the previously observed frame. The second
// return value reports whether the score exceeded the threshold; the first
// observed frame never does.
func (s *Scorer) Observe(index int, frame image.Image) (entity.ChangeCandidate, bool) {
	gray := s.normalize(frame)
	prev := s.prev
	s.prev = gray

	if prev == nil {
		return entity.ChangeCandidate{}, false
	}

	score := MeanAbsDiff(gray, prev)
	if score <= s.threshold {
		return entity.ChangeCandidate{}, false
	}
	return entity.ChangeCandidate{FrameIndex: index, Score: score, Frame: frame}, true
}

func (s *Scorer) normalize(frame image.Image) *image.Gray {
	return normalizeInto(s.scratch, frame)
}

// Normalize resizes frame to width x height and converts it to 8-bit intensity.
func Normalize(frame image.Image, width, height int) *image.Gray {
	return normalizeInto(image.NewRGBA(image.Rect(0, 0, width, height)), frame)
}

func normalizeInto(dst *image.RGBA, frame image.Image) *image.Gray {
	draw.BiLinear.Scale(dst, dst.Bounds(), frame, frame.Bounds(), draw.Src, nil)
	return toGray(dst)
}

// toGray applies the ITU-R BT.601 luma weights used by color.GrayModel.
func toGray(src *image.RGBA) *image.Gray {
	b := src.Bounds()
	gray := image.NewGray(b)
	for y := 0; y < b.Dy(); y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+b.Dx()*4]
		out := gray.Pix[y*gray.Stride : y*gray.Stride+b.Dx()]
		for x := range out {
			r := uint32(row[4*x])
			g := uint32(row[4*x+1])
			bl := uint32(row[4*x+2])
			out[x] = uint8((19595*r + 38470*g + 7471*bl + 1<<15) >> 16)
		}
	}
	return gray
}

// MeanAbsDiff returns the mean absolute per-pixel difference of two equally
// sized grayscale images, in [0, 255].
func MeanAbsDiff(a, b *image.Gray) float64 {
	w, h := a.Bounds().Dx(), a.Bounds().Dy()
	if w == 0 || h == 0 {
		return 0
	}

	var sum uint64
	for y := 0; y < h; y++ {
		ra := a.Pix[y*a.Stride : y*a.Stride+w]
		rb := b.Pix[y*b.Stride : y*b.Stride+w]
		for x := range ra {
			if ra[x] > rb[x] {
				sum += uint64(ra[x] - rb[x])
			} else {
				sum += uint64(rb[x] - ra[x])
			}
		}
	}
	return float64(sum) / float64(w*h)
}
