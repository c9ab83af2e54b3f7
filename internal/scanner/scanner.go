package scanner

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rjwaters/cineshelf/internal/metadata"
	"github.com/rjwaters/cineshelf/internal/models"
	"github.com/rjwaters/cineshelf/internal/netdrive"
)

// videoExtensions is the closed set of recognized video file extensions,
// matched case-insensitively against the extension only.
var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true,
	".m4v": true, ".wmv": true, ".flv": true, ".webm": true,
	".ts": true, ".m2ts": true, ".mts": true, ".mpg": true,
	".mpeg": true, ".vob": true, ".ogv": true, ".3gp": true,
	".divx": true, ".rmvb": true,
}

// IsVideoFile reports whether a file name carries a recognized extension.
func IsVideoFile(name string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

// OnFound is invoked once per discovered video file. All files of one
// directory are emitted together; no global order is guaranteed.
type OnFound func(file models.VideoFile)

// ErrSuperseded is returned by Scan when a newer scan started while this
// one was in flight. The partial results must be discarded; only the
// superseding scan's completion counts.
var ErrSuperseded = errors.New("scan superseded by a newer scan")

// Scanner walks library roots incrementally. A directory whose modification
// timestamp matches its cache entry is replayed without any listing I/O;
// only changed directories are re-listed. Subdirectory recursion fans out
// with a fixed concurrency limit so slow network shares are not overwhelmed.
type Scanner struct {
	resolver   *netdrive.Resolver
	cache      *DirCache
	posters    *PosterCache
	dirWorkers int

	// generation suppresses callbacks from superseded scans. There is no
	// hard abort of in-flight I/O; stale results are simply discarded.
	generation atomic.Int64
}

func New(resolver *netdrive.Resolver, cache *DirCache, posters *PosterCache, dirWorkers int) *Scanner {
	if dirWorkers < 1 {
		dirWorkers = 1
	}
	return &Scanner{
		resolver:   resolver,
		cache:      cache,
		posters:    posters,
		dirWorkers: dirWorkers,
	}
}

// Cache exposes the directory cache for watcher-driven invalidation.
func (s *Scanner) Cache() *DirCache { return s.cache }

// AttachPosters fills in each group's poster artwork. Lookups are memoized
// per scan session, so repeat groups in one directory cost a single stat
// sweep.
func (s *Scanner) AttachPosters(groups []models.MovieGroup) {
	if s.posters == nil {
		return
	}
	for i := range groups {
		groups[i].PosterPath = s.posters.Find(groups[i].Dir, groups[i].Base)
	}
}

// Generation returns the current scan generation counter.
func (s *Scanner) Generation() int64 { return s.generation.Load() }

type scanCounters struct {
	dirsListed atomic.Int64
	cacheHits  atomic.Int64
	filesFound atomic.Int64
	dirsTotal  atomic.Int64
}

// Scan walks the given roots and streams every discovered video file to
// onFound. Failures inside one subtree are logged and skipped; siblings
// and ancestors keep scanning. Starting a new scan supersedes any
// in-flight one.
func (s *Scanner) Scan(ctx context.Context, roots []string, onFound OnFound) (*models.ScanStats, error) {
	gen := s.generation.Add(1)
	start := time.Now()

	// Session state resets once per scan, not per directory.
	s.resolver.Reset()
	if s.posters != nil {
		s.posters.Reset()
	}

	counters := &scanCounters{}
	sem := semaphore.NewWeighted(int64(s.dirWorkers))
	var wg sync.WaitGroup

	for _, root := range roots {
		dir := s.resolver.Resolve(root)
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.scanDir(ctx, gen, dir, onFound, sem, counters, &wg)
		}()
	}
	wg.Wait()

	stats := &models.ScanStats{
		Elapsed:    time.Since(start),
		DirsListed: counters.dirsListed.Load(),
		CacheHits:  counters.cacheHits.Load(),
		FilesFound: counters.filesFound.Load(),
		DirsTotal:  counters.dirsTotal.Load(),
	}

	if s.superseded(gen) {
		log.Printf("Scan: generation %d superseded, discarding partial results", gen)
		return stats, ErrSuperseded
	}

	log.Printf("Scan: %d dirs (%d listed, %d cached), %d files in %s",
		stats.DirsTotal, stats.DirsListed, stats.CacheHits, stats.FilesFound, stats.Elapsed.Round(time.Millisecond))
	return stats, ctx.Err()
}

func (s *Scanner) scanDir(ctx context.Context, gen int64, dir string, onFound OnFound, sem *semaphore.Weighted, counters *scanCounters, wg *sync.WaitGroup) {
	if s.superseded(gen) || ctx.Err() != nil {
		return
	}
	counters.dirsTotal.Add(1)

	// One stat call is the cheap probe that decides hit vs. miss.
	fi, err := os.Stat(dir)
	if err != nil {
		log.Printf("Scan: stat %s: %v", dir, err)
		return
	}
	mod := fi.ModTime()

	var files []models.VideoFile
	var subdirs []string

	if entry, ok := s.cache.Get(ctx, dir); ok && entry.ModTime.Equal(mod) {
		counters.cacheHits.Add(1)
		files = entry.Files
		subdirs = entry.Subdirs
	} else {
		files, subdirs, err = s.listDir(dir)
		if err != nil {
			log.Printf("Scan: list %s: %v", dir, err)
			return
		}
		counters.dirsListed.Add(1)
		s.cache.Put(ctx, dir, models.DirCacheEntry{ModTime: mod, Files: files, Subdirs: subdirs})
	}

	for _, f := range files {
		if s.superseded(gen) {
			return
		}
		counters.filesFound.Add(1)
		onFound(f)
	}

	for _, sub := range subdirs {
		if sem.TryAcquire(1) {
			wg.Add(1)
			go func(sub string) {
				defer wg.Done()
				defer sem.Release(1)
				s.scanDir(ctx, gen, sub, onFound, sem, counters, wg)
			}(sub)
		} else {
			s.scanDir(ctx, gen, sub, onFound, sem, counters, wg)
		}
	}
}

// listDir reads one directory and classifies its entries. The sidecar for
// each video file is resolved against the listing just fetched; no extra
// stat or existence calls are made.
func (s *Scanner) listDir(dir string) ([]models.VideoFile, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}

	// Lowercased name → actual name, for case-insensitive sidecar lookup.
	names := make(map[string]string, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names[strings.ToLower(e.Name())] = e.Name()
		}
	}

	var files []models.VideoFile
	var subdirs []string

	for _, e := range entries {
		if e.IsDir() {
			subdirs = append(subdirs, filepath.Join(dir, e.Name()))
			continue
		}
		if !IsVideoFile(e.Name()) {
			continue
		}

		info, err := e.Info()
		if err != nil {
			log.Printf("Scan: stat %s: %v", filepath.Join(dir, e.Name()), err)
			continue
		}

		base, part := ParseParts(e.Name())
		files = append(files, models.VideoFile{
			Path:    filepath.Join(dir, e.Name()),
			Name:    e.Name(),
			Dir:     dir,
			Size:    info.Size(),
			Base:    base,
			Part:    part,
			NFOPath: findSidecar(dir, names, base, e.Name()),
		})
	}
	return files, subdirs, nil
}

// findSidecar resolves the metadata sidecar for a video file using only the
// directory listing: <base>.nfo, then <strippedName>.nfo when the file is a
// multi-part member, then the generic movie.nfo, all case-insensitive.
func findSidecar(dir string, names map[string]string, base, filename string) string {
	stripped := models.BaseName(filename)

	candidates := []string{base + metadata.Extension}
	if stripped != base {
		candidates = append(candidates, stripped+metadata.Extension)
	}
	candidates = append(candidates, metadata.GenericName)

	for _, c := range candidates {
		if actual, ok := names[strings.ToLower(c)]; ok {
			return filepath.Join(dir, actual)
		}
	}
	return ""
}

func (s *Scanner) superseded(gen int64) bool {
	return s.generation.Load() != gen
}
