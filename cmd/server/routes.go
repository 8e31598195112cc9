//go:build !js && !wasm

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/TuneTrigger/internal/observe"
)

// setupRoutes registers all HTTP routes and middleware.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/health/metrics", s.handleMetrics)
	mux.Handle("GET /metrics", observe.Handler())

	mux.HandleFunc("GET /api/tunes", s.handleListTunes)
	mux.HandleFunc("POST /api/tunes", s.handleAddTune)
	mux.HandleFunc("GET /api/tunes/{id}", s.handleGetTune)
	mux.HandleFunc("DELETE /api/tunes/{id}", s.handleDeleteTune)

	mux.HandleFunc("POST /api/match", s.handleMatchFile)
	mux.HandleFunc("POST /api/search-fingerprint", s.handleSearchFingerprint)

	mux.HandleFunc("GET /ws/detect", s.handleLiveDetect)

	var handler http.Handler = mux
	if s.metrics != nil {
		handler = observe.Middleware(s.metrics, s.log)(handler)
	}
	return corsMiddleware(s.config.AllowedOrigins)(handler)
}

// corsMiddleware adds CORS headers to responses.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				allowed = true
			} else {
				for _, allowedOrigin := range allowedOrigins {
					if allowedOrigin == origin {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Infof("TuneTrigger server starting on %s", addr)
	s.log.Infof("   Database: %s", s.config.DBPath)
	s.log.Infof("   CORS Origins: %v", s.config.AllowedOrigins)
	s.log.Infof("Endpoints:")
	s.log.Infof("   GET    /health                    - Health check")
	s.log.Infof("   GET    /api/health/metrics        - Server metrics")
	s.log.Infof("   GET    /metrics                   - Prometheus metrics")
	s.log.Infof("   GET    /api/tunes                 - List all tunes")
	s.log.Infof("   POST   /api/tunes                 - Add tune from file")
	s.log.Infof("   GET    /api/tunes/{id}            - Get tune by ID")
	s.log.Infof("   DELETE /api/tunes/{id}            - Delete tune by ID")
	s.log.Infof("   POST   /api/match                 - Match audio file")
	s.log.Infof("   POST   /api/search-fingerprint    - Search a detector fingerprint")
	s.log.Infof("   GET    /ws/detect                 - Live stream detection")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Infof("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
