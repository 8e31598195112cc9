//go:build !js && !wasm

package main

import (
	"fmt"
	"time"

	"github.com/himanishpuri/TuneTrigger/pkg/models"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger"
)

// MaxFingerprintBytes bounds a search request (about two minutes of audio).
const MaxFingerprintBytes = 1 + 6*20000

// SearchRequest is the request body for POST /api/search-fingerprint.
type SearchRequest struct {
	// Fingerprint bytes as comma separated unsigned decimals.
	Fingerprint string `json:"fingerprint"`
}

func (r *SearchRequest) Validate() error {
	if r.Fingerprint == "" {
		return fmt.Errorf("fingerprint is required")
	}
	// Each byte needs at least one digit and one comma.
	if len(r.Fingerprint) > 4*MaxFingerprintBytes {
		return fmt.Errorf("fingerprint too large (maximum %d bytes)", MaxFingerprintBytes)
	}
	return nil
}

// SearchResponse is the body the detector's search client parses.
type SearchResponse struct {
	Result []models.Candidate `json:"result"`
}

// MatchResultDTO is one index match for an uploaded file.
type MatchResultDTO struct {
	TuneID      string  `json:"tune_id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Info        string  `json:"info"`
	Type        string  `json:"type"`
	Score       int     `json:"score"`
	OffsetMs    int32   `json:"offset_ms"`
	Confidence  float64 `json:"confidence"`
}

func matchDTOs(matches []tunetrigger.MatchResult) []MatchResultDTO {
	out := make([]MatchResultDTO, len(matches))
	for i, m := range matches {
		out[i] = MatchResultDTO{
			TuneID:      m.TuneID,
			Name:        m.Name,
			Description: m.Description,
			Info:        m.Info,
			Type:        string(m.Type),
			Score:       m.Score,
			OffsetMs:    m.OffsetMs,
			Confidence:  m.Confidence,
		}
	}
	return out
}

type MatchResponse struct {
	Matches []MatchResultDTO `json:"matches"`
	Count   int              `json:"count"`
}

type AddTuneResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
}

type TuneDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Info        string    `json:"info"`
	Type        string    `json:"type"`
	DurationMs  int       `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

func tuneDTO(t models.Tune) TuneDTO {
	return TuneDTO{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Info:        t.Info,
		Type:        string(t.Type),
		DurationMs:  t.DurationMs,
		CreatedAt:   t.CreatedAt,
	}
}

type ListTunesResponse struct {
	Tunes []TuneDTO `json:"tunes"`
	Count int       `json:"count"`
}

type DeleteTuneResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// MetricsResponse provides server health and index size.
type MetricsResponse struct {
	Status       string `json:"status"`
	DatabasePath string `json:"database_path"`
	TuneCount    int    `json:"tune_count"`
	LiveSessions int64  `json:"live_sessions"`
	SampleRate   int    `json:"sample_rate"`
}

// LiveEvent is sent to websocket clients for every accepted match.
type LiveEvent struct {
	Session     string  `json:"session"`
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Info        string  `json:"info"`
	Type        string  `json:"type"`
	Confidence  float64 `json:"confidence"`
	Date        string  `json:"date"`
}

func liveEvent(session string, m models.MatchResult) LiveEvent {
	return LiveEvent{
		Session:     session,
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Info:        m.Info,
		Type:        string(m.Type),
		Confidence:  m.Confidence,
		Date:        m.DateString(),
	}
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
