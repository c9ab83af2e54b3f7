package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rjwaters/cineshelf/internal/models"
)

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	snap := &Snapshot{
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
		Roots:       []string{"/movies"},
		Files: []models.VideoFile{
			{Path: "/movies/Foo.mkv", Name: "Foo.mkv", Dir: "/movies", Base: "Foo", Size: 42},
		},
		Stats: &models.ScanStats{FilesFound: 1, DirsTotal: 1},
	}

	require.NoError(t, SaveSnapshot(path, snap))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, snap.Files, loaded.Files)
	assert.Equal(t, snap.Roots, loaded.Roots)
	assert.Equal(t, snap.Stats.FilesFound, loaded.Stats.FilesFound)
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	_, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadSnapshotCorruptPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, SaveSnapshot(path, &Snapshot{Roots: []string{"/movies"}}))

	// Flip a byte inside the file; the checksum must catch it.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)/2] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = LoadSnapshot(path)
	assert.Error(t, err)
}

func TestLoadSnapshotGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, []byte("not json at all"), 0644))

	_, err := LoadSnapshot(path)
	assert.Error(t, err)
}
