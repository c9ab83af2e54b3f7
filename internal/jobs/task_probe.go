package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/rjwaters/cineshelf/internal/ffmpeg"
	"github.com/rjwaters/cineshelf/internal/library"
	"github.com/rjwaters/cineshelf/internal/models"
)

type ProbeHandler struct {
	probe    *ffmpeg.FFprobe
	catalog  *library.Catalog
	notifier EventNotifier
	workers  int
}

func NewProbeHandler(probe *ffmpeg.FFprobe, cat *library.Catalog, notifier EventNotifier, workers int) *ProbeHandler {
	return &ProbeHandler{probe: probe, catalog: cat, notifier: notifier, workers: workers}
}

func (h *ProbeHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ProbePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	_, err := RunProbe(ctx, h.probe, h.catalog, h.notifier, h.workers, p.Paths)
	return err
}

// RunProbe probes the given paths, or every unprobed catalog file when paths
// is empty, with a bounded number of concurrent ffprobe processes. One
// failed file never aborts the batch.
func RunProbe(ctx context.Context, probe *ffmpeg.FFprobe, cat *library.Catalog, notifier EventNotifier, workers int, paths []string) ([]models.ProbeOutcome, error) {
	if workers < 1 {
		workers = 1
	}

	var targets []models.VideoFile
	if len(paths) > 0 {
		for _, path := range paths {
			targets = append(targets, models.VideoFile{Path: path})
		}
	} else {
		targets = cat.Unprobed()
	}
	if len(targets) == 0 {
		log.Println("Probe: nothing to probe")
		return nil, nil
	}

	log.Printf("Probe: probing %d files with %d workers", len(targets), workers)

	sem := semaphore.NewWeighted(int64(workers))
	limiter := rate.NewLimiter(rate.Every(500*time.Millisecond), 1)
	outcomes := make([]models.ProbeOutcome, len(targets))
	var wg sync.WaitGroup
	var mu sync.Mutex
	done, failed := 0, 0

	for i, f := range targets {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(i int, f models.VideoFile) {
			defer wg.Done()
			defer sem.Release(1)

			result, err := probe.Probe(ctx, f.Path)

			mu.Lock()
			done++
			if err != nil {
				failed++
				outcomes[i] = models.ProbeOutcome{Path: f.Path, Error: err.Error()}
				log.Printf("Probe: %s: %v", f.Path, err)
			} else {
				info := result.Info()
				outcomes[i] = models.ProbeOutcome{Path: f.Path, Info: info}
				cat.SetProbe(f.Path, *info)
			}
			current, total := done, len(targets)
			mu.Unlock()

			if notifier != nil && (limiter.Allow() || current == total) {
				notifier.Broadcast("probe:progress", map[string]interface{}{
					"current":  current,
					"total":    total,
					"filename": f.Name,
				})
			}
		}(i, f)
	}
	wg.Wait()

	cat.RefreshDurations()

	log.Printf("Probe: complete - %d probed, %d failed", done-failed, failed)
	if notifier != nil {
		notifier.Broadcast("probe:complete", map[string]interface{}{
			"probed": done - failed,
			"failed": failed,
		})
	}
	return outcomes, ctx.Err()
}
