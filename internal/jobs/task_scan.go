package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/time/rate"

	"github.com/rjwaters/cineshelf/internal/cache"
	"github.com/rjwaters/cineshelf/internal/config"
	"github.com/rjwaters/cineshelf/internal/library"
	"github.com/rjwaters/cineshelf/internal/models"
	"github.com/rjwaters/cineshelf/internal/scanner"
)

type ScanHandler struct {
	scanner  *scanner.Scanner
	catalog  *library.Catalog
	queue    *Queue
	notifier EventNotifier
	cfg      *config.Config
}

func NewScanHandler(sc *scanner.Scanner, cat *library.Catalog, queue *Queue, notifier EventNotifier, cfg *config.Config) *ScanHandler {
	return &ScanHandler{scanner: sc, catalog: cat, queue: queue, notifier: notifier, cfg: cfg}
}

func (h *ScanHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ScanPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	if err := RunScan(ctx, h.scanner, h.catalog, h.cfg, h.notifier, p.Roots); err != nil {
		// Supersession is not a failure; retrying would race the newer scan.
		if errors.Is(err, scanner.ErrSuperseded) {
			return nil
		}
		return err
	}

	// Probe whatever the scan surfaced that has no technical metadata yet.
	if h.queue != nil {
		if _, err := h.queue.EnqueueUnique(TaskProbeBatch, ProbePayload{}, "probe:batch",
			asynq.Queue("low"), asynq.Timeout(6*time.Hour), asynq.Retention(time.Hour)); err != nil {
			log.Printf("Job: failed to enqueue probe batch: %v", err)
		}
	}
	return nil
}

// RunScan performs one full library scan and installs the results in the
// catalog. Shared between the queue handler and the queueless inline path.
func RunScan(ctx context.Context, sc *scanner.Scanner, cat *library.Catalog, cfg *config.Config, notifier EventNotifier, roots []string) error {
	if len(roots) == 0 {
		roots = cfg.ScanRoots
	}
	if len(roots) == 0 {
		log.Println("Job: no scan roots configured, nothing to do")
		return nil
	}

	cat.SetScanning(true)
	defer cat.SetScanning(false)

	log.Printf("Job: scanning %d roots", len(roots))
	if notifier != nil {
		notifier.Broadcast("scan:start", map[string]interface{}{"roots": roots})
	}

	// Progress broadcasts are throttled so a fast local scan does not flood
	// every connected client. The file list is shared with scanner goroutines.
	var mu sync.Mutex
	var files []models.VideoFile
	limiter := rate.NewLimiter(rate.Every(500*time.Millisecond), 1)

	stats, err := sc.Scan(ctx, roots, func(f models.VideoFile) {
		mu.Lock()
		files = append(files, f)
		count := len(files)
		mu.Unlock()

		if notifier != nil && limiter.Allow() {
			notifier.Broadcast("scan:progress", map[string]interface{}{
				"files_found": count,
				"filename":    f.Name,
			})
		}
	})
	if err != nil {
		// A superseded scan's results and completion signal are discarded
		// outright; the superseding scan owns the catalog and snapshot.
		if errors.Is(err, scanner.ErrSuperseded) {
			log.Println("Job: scan superseded, discarding results")
			return err
		}
		if notifier != nil {
			notifier.Broadcast("scan:failed", map[string]string{"error": err.Error()})
		}
		return fmt.Errorf("scan: %w", err)
	}

	groups := scanner.BuildGroups(files)
	sc.AttachPosters(groups)
	cat.ReplaceScan(files, groups, stats)

	if cfg.SnapshotPath != "" {
		snap := &cache.Snapshot{
			GeneratedAt: time.Now(),
			Roots:       roots,
			Files:       files,
			Stats:       stats,
		}
		if err := cache.SaveSnapshot(cfg.SnapshotPath, snap); err != nil {
			log.Printf("Job: snapshot write failed: %v", err)
		}
	}

	log.Printf("Job: scan complete - %d files, %d groups", len(files), len(groups))
	if notifier != nil {
		notifier.Broadcast("scan:complete", map[string]interface{}{
			"files":  len(files),
			"groups": len(groups),
			"stats":  stats,
		})
	}
	return nil
}
