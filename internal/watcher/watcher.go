package watcher

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rjwaters/cineshelf/internal/scanner"
)

// OnDirChanged is called after the debounce window when a watched directory
// has seen relevant file activity.
type OnDirChanged func(dir string)

// Watcher monitors the library roots for filesystem changes. Its job is to
// keep the directory cache honest between scans: any create, remove, or
// rename inside a watched directory invalidates that directory's cache
// entry, so the next scan re-lists it even if the mtime probe races.
type Watcher struct {
	cache    *scanner.DirCache
	callback OnDirChanged
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	watched  map[string]bool
	debounce map[string]*time.Timer
	stop     chan struct{}
}

func New(cache *scanner.DirCache, cb OnDirChanged) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		cache:    cache,
		callback: cb,
		watcher:  fw,
		watched:  make(map[string]bool),
		debounce: make(map[string]*time.Timer),
		stop:     make(chan struct{}),
	}, nil
}

// Start begins watching the given roots and processing events.
func (w *Watcher) Start(roots []string) {
	go w.eventLoop()

	w.mu.Lock()
	for _, root := range roots {
		if err := w.addRecursive(root); err != nil {
			log.Printf("[watcher] error adding %s: %v", root, err)
		}
	}
	count := len(w.watched)
	w.mu.Unlock()

	log.Printf("[watcher] watching %d directories across %d roots", count, len(roots))
}

func (w *Watcher) Stop() {
	close(w.stop)
	w.watcher.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip inaccessible dirs
		}
		if info.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				return nil
			}
			w.watched[path] = true
		}
		return nil
	})
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[watcher] error: %v", err)
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Skip hidden files and in-progress copies
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".tmp") ||
		strings.HasSuffix(base, ".part") {
		return
	}

	isCreate := event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
	isRemove := event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
	if !isCreate && !isRemove {
		return
	}

	// Created directories join the watch list so new movie folders are
	// covered without a restart.
	if isCreate {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.mu.Lock()
			if err := w.watcher.Add(event.Name); err == nil {
				w.watched[event.Name] = true
			}
			w.mu.Unlock()
			w.invalidate(filepath.Dir(event.Name))
			return
		}
	}

	// A removed or renamed-away directory rarely carries a video extension,
	// but its parent's listing changed all the same. fsnotify already drops
	// deleted paths from its own watch list.
	if isRemove {
		w.mu.Lock()
		wasDir := w.watched[event.Name]
		if wasDir {
			delete(w.watched, event.Name)
		}
		w.mu.Unlock()
		if wasDir {
			w.invalidate(filepath.Dir(event.Name))
			return
		}
	}

	// Only video files and sidecars matter to the index.
	ext := strings.ToLower(filepath.Ext(event.Name))
	if !scanner.IsVideoFile(event.Name) && ext != ".nfo" {
		return
	}

	w.invalidate(filepath.Dir(event.Name))
}

// invalidate drops the cache entry for dir and fires the callback after a
// one second debounce, collapsing bursts from bulk copies.
func (w *Watcher) invalidate(dir string) {
	w.cache.Invalidate(context.Background(), dir)

	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.debounce[dir]; ok {
		timer.Stop()
	}
	w.debounce[dir] = time.AfterFunc(1*time.Second, func() {
		w.mu.Lock()
		delete(w.debounce, dir)
		w.mu.Unlock()
		if w.callback != nil {
			w.callback(dir)
		}
	})
}
