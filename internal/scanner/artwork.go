package scanner

import (
	"os"
	"path/filepath"
	"sync"
)

// artworkExtensions lists the image extensions checked for each candidate name.
var artworkExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// PosterCache memoizes poster lookups per (directory, base name). Reset at
// the start of each scan session.
type PosterCache struct {
	mu    sync.Mutex
	found map[string]string
}

func NewPosterCache() *PosterCache {
	return &PosterCache{found: make(map[string]string)}
}

func (c *PosterCache) Reset() {
	c.mu.Lock()
	c.found = make(map[string]string)
	c.mu.Unlock()
}

// Find returns the poster image for a movie, following the usual
// Plex/Jellyfin/Kodi naming conventions; first existing candidate wins.
func (c *PosterCache) Find(dir, base string) string {
	key := dir + "|" + base

	c.mu.Lock()
	path, ok := c.found[key]
	c.mu.Unlock()
	if ok {
		return path
	}

	path = FindPoster(dir, base)
	c.mu.Lock()
	c.found[key] = path
	c.mu.Unlock()
	return path
}

// FindPoster checks the fixed candidate list in priority order:
// <base>-poster > poster > movie-poster > folder > cover.
func FindPoster(dir, base string) string {
	candidates := []string{
		base + "-poster",
		"poster",
		"movie-poster",
		"folder",
		"cover",
	}
	for _, name := range candidates {
		for _, ext := range artworkExtensions {
			path := filepath.Join(dir, name+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
