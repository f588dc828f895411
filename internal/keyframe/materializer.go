package keyframe

import (
	"context"
	"fmt"
	"image/jpeg"
	"math"
	"net/url"
	"os"
	"path/filepath"

	"github.com/MhdAstro/video-to-frame/internal/domain/entity"
)

type Materializer struct {
	baseURL string
	quality int
}

func NewMaterializer(baseURL string, quality int) *Materializer {
	return &Materializer{baseURL: baseURL, quality: quality}
}

// Materialize writes each selection as a JPEG into dir and returns one record
// per selection in the same order.
func (m *Materializer) Materialize(ctx context.Context, dir string, fps float64, selections []Selection) ([]entity.KeyframeRecord, error) {
	records := make([]entity.KeyframeRecord, 0, len(selections))
	for _, sel := range selections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(dir, FrameFileName(sel.FrameIndex))
		if err := m.writeJPEG(path, sel); err != nil {
			return nil, &entity.WriteError{Path: path, Err: err}
		}

		records = append(records, entity.KeyframeRecord{
			FileID:           sel.FileID,
			FrameIndex:       sel.FrameIndex,
			TimestampSeconds: Timestamp(sel.FrameIndex, fps),
			Score:            sel.Score,
			URL:              m.baseURL + url.QueryEscape(path),
			Path:             path,
		})
	}
	return records, nil
}

func (m *Materializer) writeJPEG(path string, sel Selection) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, sel.Frame, &jpeg.Options{Quality: m.quality}); err != nil {
		f.Close()
		return fmt.Errorf("encode jpeg: %w", err)
	}
	return f.Close()
}

func FrameFileName(frameIndex int) string {
	return fmt.Sprintf("frame_%06d.jpeg", frameIndex)
}

// Timestamp returns frameIndex/fps in seconds rounded to two decimals, with
// exact halves going to the even neighbour (0.125 -> 0.12).
func Timestamp(frameIndex int, fps float64) float64 {
	return math.RoundToEven(float64(frameIndex)/fps*100) / 100
}

// EffectiveFPS substitutes fallback when the probed rate is missing or non-positive.
func EffectiveFPS(probed, fallback float64) float64 {
	if probed > 0 && !math.IsInf(probed, 0) {
		return probed
	}
	return fallback
}
