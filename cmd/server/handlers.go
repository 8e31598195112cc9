//go:build !js && !wasm

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/himanishpuri/TuneTrigger/internal/observe"
	"github.com/himanishpuri/TuneTrigger/pkg/logger"
	"github.com/himanishpuri/TuneTrigger/pkg/models"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/detect"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/fingerprint"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/storage"
)

// Server encapsulates the HTTP server and its dependencies.
type Server struct {
	service  tunetrigger.Service
	searcher detect.Searcher
	config   *ServerConfig
	metrics  *observe.Metrics
	log      tunetrigger.Logger
	live     atomic.Int64
}

type ServerConfig struct {
	Port           int
	DBPath         string
	TempDir        string
	AllowedOrigins []string

	// DetectOptions configure the stream detector behind /ws/detect.
	DetectOptions []detect.Option
}

// NewServer creates a server. Live sessions search with searcher, or with
// the local index when it is nil.
func NewServer(service tunetrigger.Service, searcher detect.Searcher, config *ServerConfig, metrics *observe.Metrics) *Server {
	if searcher == nil {
		searcher = service
	}
	return &Server{
		service:  service,
		searcher: searcher,
		config:   config,
		metrics:  metrics,
		log:      logger.GetLogger().With("[server]"),
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.respondError(w, http.StatusNotFound, "Not found")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "TuneTrigger API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":            "GET /health",
			"metrics":           "GET /api/health/metrics",
			"prometheus":        "GET /metrics",
			"tunes":             "GET /api/tunes",
			"addTune":           "POST /api/tunes",
			"getTune":           "GET /api/tunes/{id}",
			"deleteTune":        "DELETE /api/tunes/{id}",
			"matchFile":         "POST /api/match",
			"searchFingerprint": "POST /api/search-fingerprint",
			"liveDetect":        "GET /ws/detect",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tunes, err := s.service.ListTunes()
	if err != nil {
		s.log.Errorf("Failed to get tune count: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:       "healthy",
		DatabasePath: s.config.DBPath,
		TuneCount:    len(tunes),
		LiveSessions: s.live.Load(),
		SampleRate:   fingerprint.SampleRate,
	})
}

// handleListTunes handles GET /api/tunes
func (s *Server) handleListTunes(w http.ResponseWriter, r *http.Request) {
	tunes, err := s.service.ListTunes()
	if err != nil {
		s.log.Errorf("Failed to list tunes: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve tunes")
		return
	}

	dtos := make([]TuneDTO, len(tunes))
	for i, t := range tunes {
		dtos[i] = tuneDTO(t)
	}
	s.respondJSON(w, http.StatusOK, ListTunesResponse{Tunes: dtos, Count: len(dtos)})
}

// handleGetTune handles GET /api/tunes/{id}
func (s *Server) handleGetTune(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	tune, err := s.service.GetTune(id)
	if err != nil {
		s.respondTuneError(w, id, err)
		return
	}
	s.respondJSON(w, http.StatusOK, tuneDTO(*tune))
}

// handleDeleteTune handles DELETE /api/tunes/{id}
func (s *Server) handleDeleteTune(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.service.DeleteTune(id); err != nil {
		s.respondTuneError(w, id, err)
		return
	}

	s.log.Infof("Deleted tune %s", id)
	s.respondJSON(w, http.StatusOK, DeleteTuneResponse{
		Message: "Tune deleted successfully",
		ID:      id,
	})
}

func (s *Server) respondTuneError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Tune with ID %s not found", id))
		return
	}
	s.log.Errorf("Tune %s: %v", id, err)
	s.respondError(w, http.StatusInternalServerError, "Failed to access tune")
}

// handleAddTune handles POST /api/tunes (multipart file upload)
func (s *Server) handleAddTune(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(100 << 20); err != nil {
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	meta := models.TuneMeta{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Info:        r.FormValue("info"),
		Type:        models.MatchOpenPage,
	}
	if t := r.FormValue("type"); t != "" {
		meta.Type = models.ParseMatchType(t)
	}
	if meta.Name == "" || meta.Info == "" {
		s.respondError(w, http.StatusBadRequest, "name and info are required")
		return
	}

	tempFile, err := s.saveUpload(r, "upload")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(tempFile)

	id, err := s.service.AddTune(ctx, tempFile, meta)
	if err != nil {
		s.log.Errorf("Failed to add tune: %v", err)
		status := http.StatusInternalServerError
		if errors.Is(err, tunetrigger.ErrNoAudio) {
			status = http.StatusUnprocessableEntity
		}
		s.respondError(w, status, fmt.Sprintf("Failed to add tune: %v", err))
		return
	}
	if s.metrics != nil {
		s.metrics.TunesIndexed.Add(ctx, 1)
	}

	s.log.Infof("Successfully added tune: %s (ID: %s)", meta.Name, id)
	s.respondJSON(w, http.StatusCreated, AddTuneResponse{
		Message: "Tune added successfully",
		ID:      id,
		Name:    meta.Name,
		Type:    string(meta.Type),
	})
}

// handleMatchFile handles POST /api/match (multipart file upload)
func (s *Server) handleMatchFile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(50 << 20); err != nil {
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	tempFile, err := s.saveUpload(r, "query")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(tempFile)

	matches, err := s.service.MatchFile(ctx, tempFile)
	if err != nil {
		s.log.Errorf("Failed to match file: %v", err)
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to match file: %v", err))
		return
	}

	s.log.Infof("Match complete: found %d matches", len(matches))
	s.respondJSON(w, http.StatusOK, MatchResponse{Matches: matchDTOs(matches), Count: len(matches)})
}

// handleSearchFingerprint handles POST /api/search-fingerprint, the endpoint
// detectors submit fingerprints to.
func (s *Server) handleSearchFingerprint(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req SearchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 8*MaxFingerprintBytes)).Decode(&req); err != nil {
		s.log.Debugf("Failed to decode request: %v", err)
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	fp, err := fingerprint.ParseFingerprint(req.Fingerprint)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	candidates, err := s.service.Search(ctx, fp)
	if err != nil {
		if errors.Is(err, fingerprint.ErrBadFormat) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Errorf("Search failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Search failed")
		return
	}
	if candidates == nil {
		candidates = []models.Candidate{}
	}

	s.log.Debugf("Fingerprint search: %d bytes, %d candidates", len(fp), len(candidates))
	s.respondJSON(w, http.StatusOK, SearchResponse{Result: candidates})
}

// saveUpload copies the "audio" form file into the temp dir.
func (s *Server) saveUpload(r *http.Request, prefix string) (string, error) {
	file, header, err := r.FormFile("audio")
	if err != nil {
		return "", errors.New("audio file is required")
	}
	defer file.Close()

	return s.writeTemp(file, header, prefix)
}

func (s *Server) writeTemp(file multipart.File, header *multipart.FileHeader, prefix string) (string, error) {
	name := filepath.Base(header.Filename)
	tempFile := filepath.Join(s.config.TempDir, fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixNano(), name))
	out, err := os.Create(tempFile)
	if err != nil {
		s.log.Errorf("Failed to create temp file: %v", err)
		return "", errors.New("failed to process upload")
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.Remove(tempFile)
		s.log.Errorf("Failed to save file: %v", err)
		return "", errors.New("failed to save uploaded file")
	}
	return tempFile, nil
}
