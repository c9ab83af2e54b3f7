package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rjwaters/cineshelf/internal/models"
	"github.com/rjwaters/cineshelf/internal/netdrive"
)

func newTestScanner() *Scanner {
	resolver := netdrive.NewResolverWithQuery(func() (map[string]string, error) {
		return nil, nil
	})
	return New(resolver, NewDirCache(nil), NewPosterCache(), 4)
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func collect(t *testing.T, sc *Scanner, roots []string) ([]models.VideoFile, *models.ScanStats) {
	t.Helper()
	var mu sync.Mutex
	var files []models.VideoFile
	stats, err := sc.Scan(context.Background(), roots, func(f models.VideoFile) {
		mu.Lock()
		files = append(files, f)
		mu.Unlock()
	})
	require.NoError(t, err)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, stats
}

func TestScanFindsVideosAndSidecars(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Foo-cd1.mkv"))
	writeFile(t, filepath.Join(dir, "Foo-cd2.mkv"))
	writeFile(t, filepath.Join(dir, "Foo.nfo"))
	writeFile(t, filepath.Join(dir, "readme.txt"))

	sc := newTestScanner()
	files, stats := collect(t, sc, []string{dir})

	require.Len(t, files, 2)
	assert.Equal(t, "Foo", files[0].Base)
	assert.Equal(t, 1, files[0].Part)
	assert.Equal(t, 2, files[1].Part)
	assert.Equal(t, filepath.Join(dir, "Foo.nfo"), files[0].NFOPath)
	assert.Equal(t, filepath.Join(dir, "Foo.nfo"), files[1].NFOPath)

	assert.Equal(t, int64(2), stats.FilesFound)
	assert.Equal(t, int64(1), stats.DirsListed)
	assert.Equal(t, int64(0), stats.CacheHits)
}

func TestScanRecursesSubdirectories(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "Series", "Extras")
	require.NoError(t, os.MkdirAll(sub, 0755))
	writeFile(t, filepath.Join(root, "A.mkv"))
	writeFile(t, filepath.Join(sub, "B.mkv"))

	sc := newTestScanner()
	files, stats := collect(t, sc, []string{root})

	require.Len(t, files, 2)
	assert.Equal(t, int64(3), stats.DirsTotal)
}

func TestSecondScanServedFromCache(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Foo.mkv"))
	writeFile(t, filepath.Join(dir, "Bar.mkv"))

	sc := newTestScanner()
	first, _ := collect(t, sc, []string{dir})

	second, stats := collect(t, sc, []string{dir})
	assert.Equal(t, first, second)
	assert.Equal(t, int64(0), stats.DirsListed, "unchanged directory must not be re-listed")
	assert.Equal(t, int64(1), stats.CacheHits)
}

func TestChangedDirectoryIsRelisted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Foo.mkv"))

	sc := newTestScanner()
	collect(t, sc, []string{dir})

	// Adding a file bumps the directory mtime, invalidating the entry.
	writeFile(t, filepath.Join(dir, "Bar.mkv"))

	files, stats := collect(t, sc, []string{dir})
	require.Len(t, files, 2)
	assert.Equal(t, int64(1), stats.DirsListed)
}

func TestInvalidateForcesRelist(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Foo.mkv"))

	sc := newTestScanner()
	collect(t, sc, []string{dir})

	sc.Cache().Invalidate(context.Background(), dir)

	_, stats := collect(t, sc, []string{dir})
	assert.Equal(t, int64(1), stats.DirsListed)
	assert.Equal(t, int64(0), stats.CacheHits)
}

func TestScanMissingRootIsSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Foo.mkv"))

	sc := newTestScanner()
	files, _ := collect(t, sc, []string{filepath.Join(dir, "nope"), dir})
	require.Len(t, files, 1)
}

func TestGenericSidecarFallback(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Foo.mkv"))
	writeFile(t, filepath.Join(dir, "movie.nfo"))

	sc := newTestScanner()
	files, _ := collect(t, sc, []string{dir})
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(dir, "movie.nfo"), files[0].NFOPath)
}

func TestSidecarCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Foo.mkv"))
	writeFile(t, filepath.Join(dir, "FOO.NFO"))

	sc := newTestScanner()
	files, _ := collect(t, sc, []string{dir})
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(dir, "FOO.NFO"), files[0].NFOPath)
}

func TestSupersededScanDiscardsPartialResults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "A.mkv"))
	writeFile(t, filepath.Join(dir, "B.mkv"))
	writeFile(t, filepath.Join(dir, "C.mkv"))

	sc := newTestScanner()

	first := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	var stale []models.VideoFile

	errc := make(chan error, 1)
	go func() {
		_, err := sc.Scan(context.Background(), []string{dir}, func(f models.VideoFile) {
			mu.Lock()
			stale = append(stale, f)
			mu.Unlock()
			once.Do(func() {
				close(first)
				<-release
			})
		})
		errc <- err
	}()

	// Start a second scan while the first is stalled on its first file.
	<-first
	fresh, _ := collect(t, sc, []string{dir})
	close(release)

	err := <-errc
	require.ErrorIs(t, err, ErrSuperseded)

	mu.Lock()
	staleCount := len(stale)
	mu.Unlock()
	assert.Equal(t, 1, staleCount, "no further files emitted once superseded")
	assert.Len(t, fresh, 3)
}

func TestAttachPosters(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Foo.mkv"))
	writeFile(t, filepath.Join(dir, "Foo-poster.jpg"))

	sc := newTestScanner()
	files, _ := collect(t, sc, []string{dir})

	groups := BuildGroups(files)
	sc.AttachPosters(groups)
	require.Len(t, groups, 1)
	assert.Equal(t, filepath.Join(dir, "Foo-poster.jpg"), groups[0].PosterPath)
}
