package scheduler

import (
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// OnScanDue is called when a scheduled rescan fires.
type OnScanDue func()

// Scheduler runs periodic library rescans on a cron expression, e.g.
// "0 3 * * *" for a nightly 03:00 scan. An empty expression disables it.
type Scheduler struct {
	cron     *cron.Cron
	callback OnScanDue
}

func New(cb OnScanDue) *Scheduler {
	return &Scheduler{cron: cron.New(), callback: cb}
}

// Start registers the schedule and begins the cron loop.
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		log.Println("[scheduler] no scan schedule configured")
		return nil
	}

	if _, err := s.cron.AddFunc(schedule, func() {
		log.Println("[scheduler] scheduled scan firing")
		s.callback()
	}); err != nil {
		return fmt.Errorf("invalid scan schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	log.Printf("[scheduler] scheduled scans enabled: %q", schedule)
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
