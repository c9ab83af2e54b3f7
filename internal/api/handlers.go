package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rjwaters/cineshelf/internal/duplicates"
	"github.com/rjwaters/cineshelf/internal/httputil"
	"github.com/rjwaters/cineshelf/internal/jobs"
	"github.com/rjwaters/cineshelf/internal/metadata"
	"github.com/rjwaters/cineshelf/internal/models"
	"github.com/rjwaters/cineshelf/internal/scanner"
	"github.com/rjwaters/cineshelf/internal/version"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": version.Version,
	})
}

// ──────────────────── Auth ────────────────────

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Secret string `json:"secret"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(s.config.JWTSecret)) != 1 {
		httputil.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid secret")
		return
	}

	token, err := s.tokens.Issue()
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "TOKEN_ERROR", err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}

// ──────────────────── Scanning ────────────────────

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Roots []string `json:"roots,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := httputil.ReadJSON(r, &req); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
			return
		}
	}

	if s.queue != nil {
		id, err := s.queue.EnqueueUnique(jobs.TaskScanLibrary, jobs.ScanPayload{Roots: req.Roots}, "scan:library")
		if err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "ENQUEUE_FAILED", err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"task_id": id})
		return
	}

	// Queueless mode: run the scan directly, still off the request path.
	if s.catalog.Scanning() {
		httputil.WriteError(w, http.StatusConflict, "SCAN_RUNNING", "a scan is already in progress")
		return
	}
	go func() {
		ctx := context.Background()
		if err := jobs.RunScan(ctx, s.scanner, s.catalog, s.config, s.wsHub, req.Roots); err != nil {
			return
		}
		jobs.RunProbe(ctx, s.probe, s.catalog, s.wsHub, s.config.ProbeWorkers, nil)
	}()
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"task_id": "scan:inline"})
}

// ──────────────────── Library Views ────────────────────

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups := s.catalog.Groups()

	if dir := r.URL.Query().Get("dir"); dir != "" {
		filtered := groups[:0]
		for _, g := range groups {
			if strings.HasPrefix(g.Dir, dir) {
				filtered = append(filtered, g)
			}
		}
		groups = filtered
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"groups": groups,
		"total":  len(groups),
	})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files := s.catalog.Files()
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"files": files,
		"total": len(files),
	})
}

// ──────────────────── Duplicates ────────────────────

type duplicateCluster struct {
	Base       string             `json:"base"`
	Part       int                `json:"part"`
	Keep       models.VideoFile   `json:"keep"`
	Candidates []models.VideoFile `json:"candidates"`
}

func (s *Server) handleListDuplicates(w http.ResponseWriter, r *http.Request) {
	strategy, err := duplicates.ParseStrategy(r.URL.Query().Get("strategy"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_STRATEGY", err.Error())
		return
	}

	clusters := duplicates.FindDuplicates(s.catalog.Files())
	probes := s.catalog.Probes()

	out := make([]duplicateCluster, 0, len(clusters))
	for i := range clusters {
		duplicates.Rank(&clusters[i], strategy, probes)
		out = append(out, duplicateCluster{
			Base:       clusters[i].Base,
			Part:       clusters[i].Part,
			Keep:       clusters[i].Files[0],
			Candidates: clusters[i].DeletionCandidates(),
		})
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"clusters": out,
		"total":    len(out),
		"strategy": strategy,
	})
}

func (s *Server) handleDeleteDuplicates(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Paths []string `json:"paths"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if len(req.Paths) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "no paths given")
		return
	}

	// Only files the catalog knows about may be deleted through this
	// endpoint; arbitrary filesystem paths are refused.
	known := make(map[string]bool)
	for _, f := range s.catalog.Files() {
		known[f.Path] = true
	}
	for _, p := range req.Paths {
		if !known[p] {
			httputil.WriteError(w, http.StatusBadRequest, "UNKNOWN_PATH", "not a library file: "+p)
			return
		}
	}

	outcomes := duplicates.DeleteFiles(req.Paths)

	var deleted []string
	dirs := make(map[string]bool)
	for _, o := range outcomes {
		if o.Deleted {
			deleted = append(deleted, o.Path)
			dirs[filepath.Dir(o.Path)] = true
		}
	}
	s.catalog.RemoveFiles(deleted)
	for dir := range dirs {
		s.scanner.Cache().Invalidate(r.Context(), dir)
	}

	s.wsHub.Broadcast("duplicates:deleted", map[string]interface{}{"deleted": len(deleted)})
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"outcomes": outcomes})
}

// ──────────────────── Metadata ────────────────────

func (s *Server) handleGetMetadata(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "path parameter required")
		return
	}

	nfoPath := s.resolveNFOPath(path)
	if nfoPath == "" {
		httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", "no metadata sidecar for "+path)
		return
	}

	nfo, err := metadata.LoadMovieNFO(nfoPath)
	if err != nil {
		var parseErr *metadata.ParseError
		if errors.As(err, &parseErr) {
			httputil.WriteError(w, http.StatusUnprocessableEntity, "MALFORMED_NFO", err.Error())
			return
		}
		if errors.Is(err, fs.ErrNotExist) {
			httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", "no metadata sidecar for "+path)
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "READ_FAILED", err.Error())
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"nfo_path": nfoPath,
		"metadata": nfo,
	})
}

func (s *Server) handleUpdateMetadata(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path     string            `json:"path"`
		Metadata *metadata.MovieNFO `json:"metadata"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if req.Path == "" || req.Metadata == nil {
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "path and metadata required")
		return
	}

	nfoPath := s.resolveNFOPath(req.Path)
	if nfoPath == "" {
		// First-time save: the sidecar sits next to the file, named after
		// the group base so every part shares it.
		base, _ := scanner.ParseParts(filepath.Base(req.Path))
		nfoPath = filepath.Join(filepath.Dir(req.Path), base+metadata.Extension)
	}

	// Unknown fields from the existing sidecar survive the update; the
	// client only ever supplies recognized fields.
	if existing, err := metadata.LoadMovieNFO(nfoPath); err == nil {
		req.Metadata.Unknown = existing.Unknown
	}

	if err := metadata.SaveMovieNFO(nfoPath, req.Metadata); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "WRITE_FAILED", err.Error())
		return
	}

	s.scanner.Cache().Invalidate(r.Context(), filepath.Dir(nfoPath))
	s.wsHub.Broadcast("metadata:updated", map[string]string{"path": req.Path, "nfo_path": nfoPath})
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"nfo_path": nfoPath})
}

// resolveNFOPath maps a request path to its sidecar: a .nfo path passes
// through, a library file resolves via its scan-time sidecar association.
func (s *Server) resolveNFOPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), metadata.Extension) {
		return path
	}
	for _, f := range s.catalog.Files() {
		if f.Path == path {
			return f.NFOPath
		}
	}
	return ""
}

// ──────────────────── Stats ────────────────────

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	files, groups, bytes := s.catalog.Counts()
	stats, scannedAt := s.catalog.Stats()

	resp := map[string]interface{}{
		"files":       files,
		"groups":      groups,
		"total_bytes": bytes,
		"scanning":    s.catalog.Scanning(),
		"cached_dirs": s.scanner.Cache().Len(),
		"ws_clients":  s.wsHub.ClientCount(),
	}
	if stats != nil {
		resp["last_scan"] = map[string]interface{}{
			"at":          scannedAt.Format(time.RFC3339),
			"elapsed_ms":  stats.Elapsed.Milliseconds(),
			"dirs_total":  stats.DirsTotal,
			"dirs_listed": stats.DirsListed,
			"cache_hits":  stats.CacheHits,
			"files_found": stats.FilesFound,
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
