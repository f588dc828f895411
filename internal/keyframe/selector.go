package keyframe

import (
	"sort"

	"github.com/MhdAstro/video-to-frame/internal/domain/entity"
)

// Selection is a retained candidate with its output identifier.
type Selection struct {
	FileID int
	entity.ChangeCandidate
}

// Selector keeps the MaxFrames highest-scoring candidates. With MinSpacing > 0
// candidates closer than MinSpacing frames to the last kept candidate (in
// frame order) are dropped before ranking.
type Selector struct {
	MaxFrames  int
	MinSpacing int
}

func NewTopKSelector(maxFrames int) *Selector {
	return &Selector{MaxFrames: maxFrames}
}

func NewSpacingSelector(maxFrames, minSpacing int) *Selector {
	return &Selector{MaxFrames: maxFrames, MinSpacing: minSpacing}
}

// Select ranks candidates by descending score, breaking ties by ascending
// frame index, truncates to MaxFrames and numbers the result 0..K-1.
func (s *Selector) Select(candidates []entity.ChangeCandidate) []Selection {
	pool := make([]entity.ChangeCandidate, len(candidates))
	copy(pool, candidates)

	if s.MinSpacing > 0 {
		pool = spaced(pool, s.MinSpacing)
	}

	rank(pool)

	if s.MaxFrames >= 0 && len(pool) > s.MaxFrames {
		pool = pool[:s.MaxFrames]
	}

	out := make([]Selection, len(pool))
	for i, c := range pool {
		out[i] = Selection{FileID: i, ChangeCandidate: c}
	}
	return out
}

// Prune drops candidates that can no longer be selected so a long video does
// not hold every changed frame in memory. It only acts once the list has grown
// past twice the cap, and never in spacing mode, where every candidate counts.
func (s *Selector) Prune(candidates []entity.ChangeCandidate) []entity.ChangeCandidate {
	if s.MinSpacing > 0 || s.MaxFrames < 0 || len(candidates) <= 2*s.MaxFrames {
		return candidates
	}
	rank(candidates)
	kept := make([]entity.ChangeCandidate, s.MaxFrames, 2*s.MaxFrames+1)
	copy(kept, candidates)
	return kept
}

func rank(pool []entity.ChangeCandidate) {
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Score != pool[j].Score {
			return pool[i].Score > pool[j].Score
		}
		return pool[i].FrameIndex < pool[j].FrameIndex
	})
}

func spaced(pool []entity.ChangeCandidate, minSpacing int) []entity.ChangeCandidate {
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].FrameIndex < pool[j].FrameIndex })

	kept := pool[:0]
	last := 0
	for _, c := range pool {
		if len(kept) > 0 && c.FrameIndex-last < minSpacing {
			continue
		}
		kept = append(kept, c)
		last = c.FrameIndex
	}
	return kept
}
