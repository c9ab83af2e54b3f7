package netdrive

import (
	"context"
	"log"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Resolver rewrites drive-letter prefixes of mapped network drives to their
// canonical remote address, so that two mount letters pointing at the same
// share resolve to the same directory identity. The drive map is built
// lazily on first use and kept until Reset (once per scan session).
type Resolver struct {
	mu     sync.Mutex
	built  bool
	drives map[string]string // "Z:" → `\\host\share`

	// query is swappable for tests; defaults to the OS network-connection list.
	query func() (map[string]string, error)
}

func NewResolver() *Resolver {
	return &Resolver{query: queryDriveMap}
}

// NewResolverWithQuery builds a resolver with a custom drive-map source.
func NewResolverWithQuery(query func() (map[string]string, error)) *Resolver {
	return &Resolver{query: query}
}

// Resolve maps a drive-letter path onto its remote address, preserving the
// remainder of the path exactly. Paths without a mapped drive prefix are
// returned unchanged, as is everything on platforms without drive mounts.
func (r *Resolver) Resolve(path string) string {
	if len(path) < 2 || path[1] != ':' {
		return path
	}

	r.mu.Lock()
	if !r.built {
		drives, err := r.query()
		if err != nil {
			log.Printf("netdrive: drive map query failed: %v", err)
		}
		r.drives = drives
		r.built = true
	}
	remote, ok := r.drives[strings.ToUpper(path[:2])]
	r.mu.Unlock()

	if !ok || remote == "" {
		return path
	}
	return remote + path[2:]
}

// Reset discards the cached drive map; the next Resolve rebuilds it.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.built = false
	r.drives = nil
	r.mu.Unlock()
}

// driveLinePattern matches a "net use" listing row: a drive letter column
// followed by a UNC remote column.
var driveLinePattern = regexp.MustCompile(`(?i)\b([A-Z]:)\s+(\\\\\S+)`)

// queryDriveMap asks the OS for the current network-connection list. On
// anything but Windows there are no drive-letter mounts and the map is empty.
func queryDriveMap() (map[string]string, error) {
	if runtime.GOOS != "windows" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "net", "use").Output()
	if err != nil {
		return nil, err
	}
	return ParseNetUse(string(out)), nil
}

// ParseNetUse extracts drive → remote pairs from "net use" output.
func ParseNetUse(out string) map[string]string {
	drives := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		if m := driveLinePattern.FindStringSubmatch(line); m != nil {
			drives[strings.ToUpper(m[1])] = strings.TrimSpace(m[2])
		}
	}
	return drives
}
