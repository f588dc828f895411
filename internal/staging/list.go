package staging

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// AreaInfo describes one staging area found on disk.
type AreaInfo struct {
	Path       string    `json:"path"`
	Files      int       `json:"files"`
	Size       int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
	Live       bool      `json:"live"`
}

// List returns the staging areas under the root, oldest first. Live reports
// whether this process still owns the area.
func (m *Manager) List() ([]AreaInfo, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, err
	}

	var out []AreaInfo
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), areaPrefix) {
			continue
		}
		path := filepath.Join(m.root, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}

		area := AreaInfo{Path: path, ModifiedAt: info.ModTime()}
		err = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() {
				if fi, err := d.Info(); err == nil {
					area.Files++
					area.Size += fi.Size()
				}
			}
			return nil
		})
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}

		m.mu.Lock()
		_, area.Live = m.live[path]
		m.mu.Unlock()
		out = append(out, area)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ModifiedAt.Before(out[j].ModifiedAt) })
	return out, nil
}
