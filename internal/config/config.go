package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

type Config struct {
	Port            int
	DataDir         string
	RedisAddr       string
	JWTSecret       string
	FFprobePath     string
	ScanRoots       []string
	ScanDirWorkers  int // bounded fan-out for subdirectory recursion
	ProbeWorkers    int // bounded fan-out for per-file probes
	ScanSchedule    string
	SnapshotPath    string
	PersistDirCache bool
}

func Load() *Config {
	cfg := &Config{
		Port:            envInt("PORT", 8750),
		DataDir:         env("DATA_DIR", "/data"),
		RedisAddr:       env("REDIS_ADDR", ""),
		JWTSecret:       env("JWT_SECRET", "change-me-in-production"),
		FFprobePath:     env("FFPROBE_PATH", "ffprobe"),
		ScanRoots:       envList("SCAN_ROOTS"),
		ScanDirWorkers:  envInt("SCAN_DIR_WORKERS", 4),
		ProbeWorkers:    envInt("PROBE_WORKERS", 8),
		ScanSchedule:    env("SCAN_SCHEDULE", ""),
		PersistDirCache: env("DIRCACHE_PERSIST", "") == "true",
	}
	cfg.SnapshotPath = env("SNAPSHOT_PATH", filepath.Join(cfg.DataDir, "scan-snapshot.json"))
	return cfg
}

// MergeSettings overlays runtime-editable settings on top of the environment
// configuration. Values arrive as strings (settings file or API) and are
// coerced individually; a bad value keeps the current one.
func (c *Config) MergeSettings(settings map[string]string) {
	for key, value := range settings {
		switch key {
		case "scan_dir_workers":
			if v := cast.ToInt(value); v > 0 {
				c.ScanDirWorkers = v
			}
		case "probe_workers":
			if v := cast.ToInt(value); v > 0 {
				c.ProbeWorkers = v
			}
		case "scan_schedule":
			c.ScanSchedule = value
		case "scan_roots":
			if roots := splitList(value); len(roots) > 0 {
				c.ScanRoots = roots
			}
		case "persist_dir_cache":
			c.PersistDirCache = cast.ToBool(value)
		}
	}
}

// LoadSettingsFile reads DATA_DIR/settings.json if present. A missing or
// unreadable file is not an error; the env configuration stands.
func (c *Config) LoadSettingsFile() {
	path := filepath.Join(c.DataDir, "settings.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var settings map[string]string
	if err := json.Unmarshal(data, &settings); err != nil {
		log.Printf("config: ignoring malformed settings file %s: %v", path, err)
		return
	}
	c.MergeSettings(settings)
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envList(key string) []string {
	return splitList(os.Getenv(key))
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, string(os.PathListSeparator)) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
