package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/rjwaters/cineshelf/internal/models"
)

// Snapshot is the last completed scan's file list, persisted so the API can
// serve groups and duplicates before the first scan of a new process.
type Snapshot struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Roots       []string           `json:"roots"`
	Files       []models.VideoFile `json:"files"`
	Stats       *models.ScanStats  `json:"stats,omitempty"`
}

// envelope wraps the snapshot payload with an integrity checksum. A
// truncated or hand-edited snapshot fails the checksum and is discarded
// rather than half-loaded.
type envelope struct {
	Version  int             `json:"version"`
	Checksum uint64          `json:"checksum"` // xxhash64 of Payload
	Payload  json.RawMessage `json:"payload"`
}

const snapshotVersion = 1

// SaveSnapshot writes the snapshot atomically via a temp file rename.
func SaveSnapshot(path string, snap *Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	data, err := json.Marshal(envelope{
		Version:  snapshotVersion,
		Checksum: xxhash.Sum64(payload),
		Payload:  payload,
	})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads and verifies a snapshot. Any failure, including a
// checksum mismatch, returns an error; callers treat that as "no snapshot".
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if env.Version != snapshotVersion {
		return nil, fmt.Errorf("snapshot version %d not supported", env.Version)
	}
	if sum := xxhash.Sum64(env.Payload); sum != env.Checksum {
		return nil, fmt.Errorf("snapshot checksum mismatch: have %x, want %x", sum, env.Checksum)
	}

	var snap Snapshot
	if err := json.Unmarshal(env.Payload, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot payload: %w", err)
	}
	return &snap, nil
}
