package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rjwaters/cineshelf/internal/api"
	"github.com/rjwaters/cineshelf/internal/cache"
	"github.com/rjwaters/cineshelf/internal/config"
	"github.com/rjwaters/cineshelf/internal/ffmpeg"
	"github.com/rjwaters/cineshelf/internal/jobs"
	"github.com/rjwaters/cineshelf/internal/library"
	"github.com/rjwaters/cineshelf/internal/netdrive"
	"github.com/rjwaters/cineshelf/internal/scanner"
	"github.com/rjwaters/cineshelf/internal/scheduler"
	"github.com/rjwaters/cineshelf/internal/version"
	"github.com/rjwaters/cineshelf/internal/watcher"
)

func main() {
	log.Printf("CineShelf %s starting...", version.Version)

	cfg := config.Load()
	cfg.LoadSettingsFile()

	// Redis is optional. Without it there is no job queue and no persistent
	// directory cache; scans run inline and the cache lives in memory.
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("redis unreachable at %s, continuing without it: %v", cfg.RedisAddr, err)
			redisClient = nil
		}
		cancel()
	}

	var store scanner.PersistentStore
	if redisClient != nil && cfg.PersistDirCache {
		store = cache.NewRedisDirStore(redisClient)
	}

	resolver := netdrive.NewResolver()
	dirCache := scanner.NewDirCache(store)
	sc := scanner.New(resolver, dirCache, scanner.NewPosterCache(), cfg.ScanDirWorkers)
	probe := ffmpeg.NewFFprobe(cfg.FFprobePath)
	catalog := library.NewCatalog()

	// Warm the catalog from the last run's snapshot; a corrupt or missing
	// snapshot just means starting empty.
	if cfg.SnapshotPath != "" {
		if snap, err := cache.LoadSnapshot(cfg.SnapshotPath); err == nil {
			catalog.ReplaceScan(snap.Files, scanner.BuildGroups(snap.Files), snap.Stats)
			log.Printf("loaded snapshot: %d files from %s", len(snap.Files), snap.GeneratedAt.Format(time.RFC3339))
		} else if !os.IsNotExist(err) {
			log.Printf("snapshot unusable, starting empty: %v", err)
		}
	}

	var queue *jobs.Queue
	if redisClient != nil {
		queue = jobs.NewQueue(cfg.RedisAddr)
	}

	srv, err := api.NewServer(cfg, catalog, sc, queue, probe)
	if err != nil {
		log.Fatalf("server init failed: %v", err)
	}

	if queue != nil {
		jobs.RegisterHandlers(queue, sc, catalog, probe, srv.WSHub(), cfg)
		if err := queue.Start(context.Background()); err != nil {
			log.Fatalf("job queue failed: %v", err)
		}
		defer queue.Stop()
	}

	triggerScan := func() {
		if queue != nil {
			if _, err := queue.EnqueueUnique(jobs.TaskScanLibrary, jobs.ScanPayload{}, "scan:library"); err != nil {
				log.Printf("enqueue scan failed: %v", err)
			}
			return
		}
		go func() {
			if err := jobs.RunScan(context.Background(), sc, catalog, cfg, srv.WSHub(), nil); err != nil {
				log.Printf("scan failed: %v", err)
			}
		}()
	}

	if len(cfg.ScanRoots) > 0 {
		w, err := watcher.New(dirCache, func(dir string) {
			log.Printf("change detected in %s, rescanning", dir)
			triggerScan()
		})
		if err != nil {
			log.Printf("filesystem watcher unavailable: %v", err)
		} else {
			w.Start(cfg.ScanRoots)
			defer w.Stop()
		}
	}

	sched := scheduler.New(triggerScan)
	if err := sched.Start(cfg.ScanSchedule); err != nil {
		log.Fatalf("scheduler failed: %v", err)
	}
	defer sched.Stop()

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
