package library

import (
	"sync"
	"time"

	"github.com/rjwaters/cineshelf/internal/models"
)

// Catalog is the in-memory view of the library: the file list from the most
// recent completed scan, the groups derived from it, and probe results keyed
// by file path. Probe data outlives rescans so unchanged files are not
// re-probed.
type Catalog struct {
	mu       sync.RWMutex
	files    []models.VideoFile
	groups   []models.MovieGroup
	probes   map[string]models.ProbeInfo
	stats    *models.ScanStats
	scanned  time.Time
	scanning bool
}

func NewCatalog() *Catalog {
	return &Catalog{probes: make(map[string]models.ProbeInfo)}
}

// ReplaceScan installs the results of a completed scan. Probe entries for
// paths no longer present are dropped.
func (c *Catalog) ReplaceScan(files []models.VideoFile, groups []models.MovieGroup, stats *models.ScanStats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.files = files
	c.groups = groups
	c.stats = stats
	c.scanned = time.Now()

	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f.Path] = true
	}
	for path := range c.probes {
		if !present[path] {
			delete(c.probes, path)
		}
	}
}

func (c *Catalog) Files() []models.VideoFile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.VideoFile, len(c.files))
	copy(out, c.files)
	return out
}

func (c *Catalog) Groups() []models.MovieGroup {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.MovieGroup, len(c.groups))
	copy(out, c.groups)
	return out
}

// Unprobed returns the files that have no probe result yet.
func (c *Catalog) Unprobed() []models.VideoFile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []models.VideoFile
	for _, f := range c.files {
		if _, ok := c.probes[f.Path]; !ok {
			out = append(out, f)
		}
	}
	return out
}

func (c *Catalog) SetProbe(path string, info models.ProbeInfo) {
	c.mu.Lock()
	c.probes[path] = info
	c.mu.Unlock()
}

func (c *Catalog) Probes() map[string]models.ProbeInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]models.ProbeInfo, len(c.probes))
	for k, v := range c.probes {
		out[k] = v
	}
	return out
}

// RefreshDurations recomputes each group's total duration from probe data.
// Groups with unprobed parts keep a partial total.
func (c *Catalog) RefreshDurations() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.groups {
		var total float64
		for _, part := range c.groups[i].Parts {
			if info, ok := c.probes[part.Path]; ok {
				total += info.Duration
			}
		}
		c.groups[i].TotalDuration = total
	}
}

// RemoveFiles drops deleted paths from the file list and groups. The old
// slices are left untouched because Groups() copies share their Parts
// backing arrays with earlier callers.
func (c *Catalog) RemoveFiles(paths []string) {
	gone := make(map[string]bool, len(paths))
	for _, p := range paths {
		gone[p] = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	kept := make([]models.VideoFile, 0, len(c.files))
	for _, f := range c.files {
		if !gone[f.Path] {
			kept = append(kept, f)
		}
	}
	c.files = kept

	groups := make([]models.MovieGroup, 0, len(c.groups))
	for _, g := range c.groups {
		parts := make([]models.VideoFile, 0, len(g.Parts))
		var size int64
		for _, p := range g.Parts {
			if !gone[p.Path] {
				parts = append(parts, p)
				size += p.Size
			}
		}
		if len(parts) == 0 {
			continue
		}
		g.Parts = parts
		g.TotalSize = size
		groups = append(groups, g)
	}
	c.groups = groups

	for _, p := range paths {
		delete(c.probes, p)
	}
}

func (c *Catalog) Stats() (*models.ScanStats, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats, c.scanned
}

func (c *Catalog) SetScanning(v bool) {
	c.mu.Lock()
	c.scanning = v
	c.mu.Unlock()
}

func (c *Catalog) Scanning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scanning
}

// Counts returns the file and group totals plus combined byte size.
func (c *Catalog) Counts() (files, groups int, bytes int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, f := range c.files {
		bytes += f.Size
	}
	return len(c.files), len(c.groups), bytes
}
