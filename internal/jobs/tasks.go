package jobs

import (
	"github.com/rjwaters/cineshelf/internal/config"
	"github.com/rjwaters/cineshelf/internal/ffmpeg"
	"github.com/rjwaters/cineshelf/internal/library"
	"github.com/rjwaters/cineshelf/internal/scanner"
)

const (
	TaskScanLibrary = "scan:library"
	TaskProbeBatch  = "probe:batch"
)

// ──────── Payloads ────────

type ScanPayload struct {
	Roots []string `json:"roots,omitempty"` // empty = configured roots
}

type ProbePayload struct {
	Paths []string `json:"paths,omitempty"` // empty = every unprobed file
}

// EventNotifier pushes job events to connected clients.
type EventNotifier interface {
	Broadcast(event string, data interface{})
}

// ──────── Register all handlers ────────

func RegisterHandlers(q *Queue, sc *scanner.Scanner, cat *library.Catalog,
	probe *ffmpeg.FFprobe, notifier EventNotifier, cfg *config.Config) {

	q.RegisterHandler(TaskScanLibrary, NewScanHandler(sc, cat, q, notifier, cfg))
	q.RegisterHandler(TaskProbeBatch, NewProbeHandler(probe, cat, notifier, cfg.ProbeWorkers))
}
