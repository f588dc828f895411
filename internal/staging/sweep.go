package staging

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MhdAstro/video-to-frame/internal/domain/entity"
	"github.com/MhdAstro/video-to-frame/internal/infra/metrics"
)

// SweepResult contains the outcome of a stale staging sweep.
type SweepResult struct {
	Removed []string
	Errors  []*entity.CleanupError
}

// SweepStale removes staging areas and leftover downloads older than maxAge.
// Deferred removals are lost when the process exits, so this runs at startup.
// Areas still owned by a live run are never touched.
func (m *Manager) SweepStale(maxAge time.Duration) SweepResult {
	result := SweepResult{}

	entries, err := os.ReadDir(m.root)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			result.Errors = append(result.Errors, &entity.CleanupError{Path: m.root, Err: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, areaPrefix) && !strings.HasPrefix(name, downloadPrefix) {
			continue
		}

		path := filepath.Join(m.root, name)
		m.mu.Lock()
		_, live := m.live[path]
		m.mu.Unlock()
		if live {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				result.Errors = append(result.Errors, &entity.CleanupError{Path: path, Err: err})
			}
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.RemoveAll(path); err != nil {
			cerr := &entity.CleanupError{Path: path, Err: err}
			result.Errors = append(result.Errors, cerr)
			metrics.StagingCleanupTotal.WithLabelValues("stale", "failed").Inc()
			m.logger.Warn("failed to remove stale staging entry", zap.String("path", path), zap.Error(cerr))
			continue
		}

		result.Removed = append(result.Removed, path)
		metrics.StagingCleanupTotal.WithLabelValues("stale", "removed").Inc()
		m.logger.Info("removed stale staging entry",
			zap.String("path", path),
			zap.Duration("age", time.Since(info.ModTime())),
		)
	}

	return result
}
