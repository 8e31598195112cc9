//go:build !js && !wasm

package main

import (
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/himanishpuri/TuneTrigger/pkg/logger"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/audio"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/detect"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/source"
)

const maxLiveMessage = 1 << 20

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  32 << 10,
		WriteBufferSize: 4 << 10,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(s.config.AllowedOrigins) == 0 || slices.Contains(s.config.AllowedOrigins, "*") {
				return true
			}
			return slices.Contains(s.config.AllowedOrigins, origin)
		},
	}
}

// liveFormat reads the PCM layout from ?rate=&channels=, defaulting to 44.1 kHz stereo.
func liveFormat(q url.Values) (audio.Format, error) {
	f := source.StreamFormat
	if v := q.Get("rate"); v != "" {
		rate, err := strconv.Atoi(v)
		if err != nil || rate < 8000 || rate > 192000 {
			return f, fmt.Errorf("invalid rate %q", v)
		}
		f.SampleRate = rate
	}
	if v := q.Get("channels"); v != "" {
		ch, err := strconv.Atoi(v)
		if err != nil || ch < 1 || ch > 8 {
			return f, fmt.Errorf("invalid channels %q", v)
		}
		f.Channels = ch
	}
	return f, nil
}

// handleLiveDetect handles GET /ws/detect. The client sends binary messages
// of 16-bit little-endian PCM and receives a LiveEvent for each match found
// by a stream-mode detector running over that audio.
func (s *Server) handleLiveDetect(w http.ResponseWriter, r *http.Request) {
	format, err := liveFormat(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxLiveMessage)

	session := uuid.NewString()
	log := logger.GetLogger().With("[live " + session[:8] + "]")

	opts := append(slices.Clone(s.config.DetectOptions), detect.WithLogger(log))
	mgr, err := detect.NewManager(nil, nil, s.searcher, opts...)
	if err != nil {
		log.Errorf("Failed to create detector: %v", err)
		conn.WriteJSON(ErrorResponse{Error: "detector unavailable", Code: http.StatusInternalServerError})
		return
	}
	defer mgr.Close()

	src := source.NewPush(format)
	if err := mgr.StartStream(r.Context(), src); err != nil {
		log.Errorf("Failed to start stream detection: %v", err)
		conn.WriteJSON(ErrorResponse{Error: "detector unavailable", Code: http.StatusInternalServerError})
		return
	}

	s.live.Add(1)
	defer s.live.Add(-1)
	if s.metrics != nil {
		s.metrics.LiveSessions.Add(r.Context(), 1)
		defer s.metrics.LiveSessions.Add(r.Context(), -1)
	}
	log.Infof("Live session started (%d Hz, %d ch)", format.SampleRate, format.Channels)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range mgr.Events() {
			if err := conn.WriteJSON(liveEvent(session, ev)); err != nil {
				log.Warnf("Failed to send match: %v", err)
				return
			}
		}
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debugf("Read ended: %v", err)
			}
			break
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		if _, err := src.Write(data); err != nil {
			log.Warnf("Dropped audio: %v", err)
		}
	}

	if err := mgr.Close(); err != nil {
		log.Warnf("Detector shutdown: %v", err)
	}
	<-done
	log.Infof("Live session ended")
}
