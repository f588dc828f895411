// Package staging owns the per-run directories that hold materialized keyframes.
//
// A Manager is the single creation point and the single deletion authority for
// staging areas under its root. An area is removed either synchronously with
// Discard (failed runs) or after the configured delay with Release (successful
// runs, whose files are fetched later by an external reader). Removal happens at
// most once per area and a directory that is already gone is only logged.
package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MhdAstro/video-to-frame/internal/domain/entity"
	"github.com/MhdAstro/video-to-frame/internal/infra/metrics"
)

const (
	areaPrefix     = "keyframes-"
	downloadPrefix = "download-"
)

var ErrOutsideRoot = errors.New("path outside staging root")

type Manager struct {
	root   string
	delay  time.Duration
	logger *zap.Logger

	mu   sync.Mutex
	live map[string]*Area
	wg   sync.WaitGroup
}

// Area is one run's staging directory.
type Area struct {
	ID        string
	Path      string
	CreatedAt time.Time

	once    sync.Once
	removed atomic.Bool
}

func NewManager(root string, delay time.Duration, logger *zap.Logger) (*Manager, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create staging root: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve staging root: %w", err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve staging root: %w", err)
	}
	return &Manager{
		root:   real,
		delay:  delay,
		logger: logger,
		live:   make(map[string]*Area),
	}, nil
}

func (m *Manager) Root() string {
	return m.root
}

// Delay is how long a released area outlives its run.
func (m *Manager) Delay() time.Duration {
	return m.delay
}

// Create makes a new uniquely named staging area. The directory is created
// exclusively, so two runs can never share one.
func (m *Manager) Create() (*Area, error) {
	id := uuid.NewString()
	path := filepath.Join(m.root, areaPrefix+id)
	if err := os.Mkdir(path, 0o755); err != nil {
		return nil, &entity.WriteError{Path: path, Err: err}
	}

	area := &Area{ID: id, Path: path, CreatedAt: time.Now()}
	m.mu.Lock()
	m.live[path] = area
	m.mu.Unlock()

	m.logger.Debug("staging area created", zap.String("path", path))
	return area, nil
}

// Discard removes the area now. Used when a run fails before producing a manifest.
func (m *Manager) Discard(area *Area) {
	m.remove(area, "immediate")
}

// Release arms the deferred removal of a successful run's area. The timer runs
// to completion independently of the request that armed it.
func (m *Manager) Release(area *Area) {
	m.wg.Add(1)
	time.AfterFunc(m.delay, func() {
		defer m.wg.Done()
		m.remove(area, "deferred")
	})
	m.logger.Debug("staging area removal scheduled",
		zap.String("path", area.Path),
		zap.Duration("delay", m.delay),
	)
}

// Wait blocks until every armed removal has fired.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) remove(area *Area, mode string) {
	area.once.Do(func() {
		area.removed.Store(true)

		m.mu.Lock()
		delete(m.live, area.Path)
		m.mu.Unlock()

		log := m.logger.With(zap.String("path", area.Path), zap.String("mode", mode))

		if _, err := os.Stat(area.Path); errors.Is(err, os.ErrNotExist) {
			metrics.StagingCleanupTotal.WithLabelValues(mode, "missing").Inc()
			log.Warn("staging area already missing")
			return
		}

		if err := os.RemoveAll(area.Path); err != nil {
			metrics.StagingCleanupTotal.WithLabelValues(mode, "failed").Inc()
			log.Error("failed to remove staging area", zap.Error(&entity.CleanupError{Path: area.Path, Err: err}))
			return
		}

		metrics.StagingCleanupTotal.WithLabelValues(mode, "removed").Inc()
		log.Info("staging area removed", zap.Duration("age", time.Since(area.CreatedAt)))
	})
}

// Removed reports whether the area has been handed to removal.
func (a *Area) Removed() bool {
	return a.removed.Load()
}

// Resolve maps a requested path to a staged file inside one of the manager's
// areas. Paths outside the root are rejected before the filesystem is consulted.
func (m *Manager) Resolve(requested string) (string, error) {
	if strings.TrimSpace(requested) == "" {
		return "", ErrOutsideRoot
	}
	abs, err := filepath.Abs(requested)
	if err != nil {
		return "", ErrOutsideRoot
	}
	if !m.insideArea(abs) {
		return "", ErrOutsideRoot
	}

	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	if !m.insideArea(real) {
		return "", ErrOutsideRoot
	}

	info, err := os.Stat(real)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", os.ErrNotExist
	}
	return real, nil
}

func (m *Manager) insideArea(path string) bool {
	rel, err := filepath.Rel(m.root, path)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	return len(parts) >= 2 && strings.HasPrefix(parts[0], areaPrefix)
}
