package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/rjwaters/cineshelf/internal/auth"
	"github.com/rjwaters/cineshelf/internal/config"
	"github.com/rjwaters/cineshelf/internal/ffmpeg"
	"github.com/rjwaters/cineshelf/internal/jobs"
	"github.com/rjwaters/cineshelf/internal/library"
	"github.com/rjwaters/cineshelf/internal/scanner"
)

type Server struct {
	config   *config.Config
	catalog  *library.Catalog
	scanner  *scanner.Scanner
	queue    *jobs.Queue
	probe    *ffmpeg.FFprobe
	tokens   *auth.TokenService
	wsHub    *WSHub
	router   *http.ServeMux
	listener *http.Server
}

func NewServer(cfg *config.Config, cat *library.Catalog, sc *scanner.Scanner, queue *jobs.Queue, probe *ffmpeg.FFprobe) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret, 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}

	s := &Server{
		config:  cfg,
		catalog: cat,
		scanner: sc,
		queue:   queue,
		probe:   probe,
		tokens:  tokens,
		wsHub:   NewWSHub(),
		router:  http.NewServeMux(),
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) WSHub() *WSHub { return s.wsHub }

func (s *Server) setupRoutes() {
	mw := auth.NewMiddleware(s.tokens)
	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return mw.RequireAuth(h).ServeHTTP
	}

	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("POST /api/v1/auth/token", s.handleIssueToken)
	s.router.HandleFunc("GET /api/v1/ws", s.handleWebSocket)

	s.router.HandleFunc("POST /api/v1/scan", authed(s.handleScan))
	s.router.HandleFunc("GET /api/v1/groups", authed(s.handleListGroups))
	s.router.HandleFunc("GET /api/v1/files", authed(s.handleListFiles))
	s.router.HandleFunc("GET /api/v1/duplicates", authed(s.handleListDuplicates))
	s.router.HandleFunc("POST /api/v1/duplicates/delete", authed(s.handleDeleteDuplicates))
	s.router.HandleFunc("GET /api/v1/metadata", authed(s.handleGetMetadata))
	s.router.HandleFunc("PUT /api/v1/metadata", authed(s.handleUpdateMetadata))
	s.router.HandleFunc("GET /api/v1/stats", authed(s.handleStats))
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.listener = &http.Server{
		Addr:         addr,
		Handler:      s.corsMiddleware(s.router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // websocket connections stay open
	}
	log.Printf("API: listening on %s", addr)
	return s.listener.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Shutdown(ctx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
