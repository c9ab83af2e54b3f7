package models

import (
	"path/filepath"
	"time"
)

// ──────────────────── Video Files ────────────────────

// VideoFile describes one discovered video file. Recomputed on every scan;
// persisted only inside a directory cache entry or the snapshot file.
type VideoFile struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Dir     string `json:"dir"`
	Size    int64  `json:"size"`
	Base    string `json:"base"`
	Part    int    `json:"part"` // 0 = not a multi-part file
	NFOPath string `json:"nfo_path,omitempty"`
}

// MovieGroup consolidates the parts of one logical movie. Derived, never
// persisted. Parts are sorted ascending by part index, 0 first.
type MovieGroup struct {
	Dir           string      `json:"dir"`
	Base          string      `json:"base"`
	Parts         []VideoFile `json:"parts"`
	TotalSize     int64       `json:"total_size"`
	TotalDuration float64     `json:"total_duration,omitempty"` // seconds, filled in by probe jobs
	NFOPath       string      `json:"nfo_path,omitempty"`
	PosterPath    string      `json:"poster_path,omitempty"`
}

// Primary returns the anchor file for metadata operations: the part with
// the lowest index.
func (g *MovieGroup) Primary() *VideoFile {
	if len(g.Parts) == 0 {
		return nil
	}
	return &g.Parts[0]
}

// GroupKey identifies a movie group within a library.
type GroupKey struct {
	Dir  string
	Base string
}

// Key returns the grouping key of a video file.
func (f *VideoFile) Key() GroupKey {
	return GroupKey{Dir: f.Dir, Base: f.Base}
}

// ──────────────────── Directory Cache ────────────────────

// DirCacheEntry is the cached view of a single directory: the modification
// timestamp observed when it was last listed, the video files found directly
// inside it, and its immediate subdirectories. The entry is reusable only
// while the directory's current mtime equals ModTime.
type DirCacheEntry struct {
	ModTime time.Time   `json:"mod_time"`
	Files   []VideoFile `json:"files"`
	Subdirs []string    `json:"subdirs"`
}

// ──────────────────── Scan Statistics ────────────────────

// ScanStats aggregates diagnostic counters across one full scan.
type ScanStats struct {
	Elapsed    time.Duration `json:"elapsed"`
	DirsListed int64         `json:"dirs_listed"` // cache misses
	CacheHits  int64         `json:"cache_hits"`
	FilesFound int64         `json:"files_found"`
	DirsTotal  int64         `json:"dirs_total"`
}

// ──────────────────── Probe Results ────────────────────

// ProbeInfo is the technical metadata returned by the external prober.
type ProbeInfo struct {
	VideoCodec string  `json:"video_codec,omitempty"`
	AudioCodec string  `json:"audio_codec,omitempty"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	Duration   float64 `json:"duration,omitempty"` // seconds
	Bitrate    int64   `json:"bitrate,omitempty"`
	FrameRate  float64 `json:"frame_rate,omitempty"`
	Channels   int     `json:"channels,omitempty"`
}

// ProbeOutcome is the per-file result of a batch probe. A failure for one
// file never aborts the rest of the batch.
type ProbeOutcome struct {
	Path  string     `json:"path"`
	Info  *ProbeInfo `json:"info,omitempty"`
	Error string     `json:"error,omitempty"`
}

// ──────────────────── Duplicate Deletion ────────────────────

// DeleteOutcome is the per-file result of a duplicate cleanup request.
type DeleteOutcome struct {
	Path    string `json:"path"`
	Deleted bool   `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

// BaseName strips the extension from a file name.
func BaseName(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
