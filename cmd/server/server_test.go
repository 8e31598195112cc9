//go:build !js && !wasm

package main

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/himanishpuri/TuneTrigger/pkg/logger"
	"github.com/himanishpuri/TuneTrigger/pkg/models"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/audio"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/detect"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/fingerprint"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	logger.SetLevel(logger.ERROR)
	os.Exit(m.Run())
}

var stereo44k = audio.Format{SampleRate: 44100, Channels: 2}

func stereoMelody(seed int64, seconds float64) []int16 {
	const rate = 44100
	rng := rand.New(rand.NewSource(seed))
	notes := []float64{330, 392, 440, 494, 587, 659, 784, 880, 1047, 1319}

	n := int(seconds * rate)
	seg := rate / 8
	out := make([]int16, 2*n)
	var f1, f2 float64
	for i := 0; i < n; i++ {
		if i%seg == 0 {
			f1 = notes[rng.Intn(len(notes))]
			f2 = notes[rng.Intn(len(notes))] * 2
		}
		t := float64(i) / rate
		v := int16(8000*math.Sin(2*math.Pi*f1*t) + 6000*math.Sin(2*math.Pi*f2*t))
		out[2*i] = v
		out[2*i+1] = v
	}
	return out
}

type testEnv struct {
	service tunetrigger.Service
	server  *httptest.Server
	dir     string
}

func setupServer(t *testing.T, opts ...detect.Option) *testEnv {
	t.Helper()
	dir := t.TempDir()

	svc, err := tunetrigger.NewService(
		tunetrigger.WithDBPath(filepath.Join(dir, "server.sqlite3")),
		tunetrigger.WithTempDir(dir),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	s := NewServer(svc, nil, &ServerConfig{
		DBPath:         "server.sqlite3",
		TempDir:        dir,
		AllowedOrigins: []string{"*"},
		DetectOptions:  opts,
	}, nil)

	ts := httptest.NewServer(s.setupRoutes())
	t.Cleanup(ts.Close)
	return &testEnv{service: svc, server: ts, dir: dir}
}

func (e *testEnv) addTune(t *testing.T, name string, samples []int16) string {
	t.Helper()
	path := filepath.Join(e.dir, name+".wav")
	if err := audio.WriteWAV(path, audio.Buffer{Format: stereo44k, Data: audio.SamplesToBytes(samples)}); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	id, err := e.service.AddTune(t.Context(), path, models.TuneMeta{Name: name, Info: "http://example.com/" + name})
	if err != nil {
		t.Fatalf("AddTune: %v", err)
	}
	return id
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	env := setupServer(t)

	resp, err := http.Get(env.server.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if resp.StatusCode != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("status %d body %v", resp.StatusCode, body)
	}
}

func TestSearchFingerprint(t *testing.T) {
	env := setupServer(t)
	samples := stereoMelody(7, 6)
	id := env.addTune(t, "jingle", samples)

	mono := audio.Prepare(audio.Buffer{Format: stereo44k, Data: audio.SamplesToBytes(samples)}, fingerprint.SampleRate, audio.LeftChannel)
	fp := fingerprint.Extract(mono)
	if len(fp) == 0 {
		t.Fatal("no fingerprint")
	}

	payload, _ := json.Marshal(SearchRequest{Fingerprint: fp.String()})
	resp, err := http.Post(env.server.URL+"/api/search-fingerprint", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	var body SearchResponse
	decodeBody(t, resp, &body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(body.Result) == 0 {
		t.Fatal("no candidates")
	}
	top := body.Result[0]
	if top.ID != id || top.Name != "jingle" || top.Info != "http://example.com/jingle" {
		t.Errorf("top candidate = %+v", top)
	}
	if top.MatchPercentage < 90 {
		t.Errorf("matchPercentage = %.1f, want >= 90", top.MatchPercentage)
	}
}

func TestSearchFingerprintBadRequests(t *testing.T) {
	env := setupServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"missing fingerprint", `{}`},
		{"not bytes", `{"fingerprint":"1,2,300"}`},
		{"bad version", `{"fingerprint":"9,0,0,0,0,0,0"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(env.server.URL+"/api/search-fingerprint", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestTuneEndpoints(t *testing.T) {
	env := setupServer(t)
	id := env.addTune(t, "promo", stereoMelody(3, 3))

	resp, err := http.Get(env.server.URL + "/api/tunes")
	if err != nil {
		t.Fatalf("GET /api/tunes: %v", err)
	}
	var list ListTunesResponse
	decodeBody(t, resp, &list)
	if list.Count != 1 || list.Tunes[0].ID != id || list.Tunes[0].Type != "open_page" {
		t.Errorf("list = %+v", list)
	}

	resp, err = http.Get(env.server.URL + "/api/tunes/" + id)
	if err != nil {
		t.Fatalf("GET tune: %v", err)
	}
	var tune TuneDTO
	decodeBody(t, resp, &tune)
	if tune.Name != "promo" {
		t.Errorf("tune = %+v", tune)
	}

	req, _ := http.NewRequest(http.MethodDelete, env.server.URL+"/api/tunes/"+id, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("DELETE status = %d", resp.StatusCode)
	}

	resp, err = http.Get(env.server.URL + "/api/tunes/" + id)
	if err != nil {
		t.Fatalf("GET deleted tune: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET deleted tune status = %d, want 404", resp.StatusCode)
	}
}

func TestAddTuneUpload(t *testing.T) {
	env := setupServer(t)

	wavPath := filepath.Join(env.dir, "upload.wav")
	if err := audio.WriteWAV(wavPath, audio.Buffer{Format: stereo44k, Data: audio.SamplesToBytes(stereoMelody(9, 3))}); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	data, err := os.ReadFile(wavPath)
	if err != nil {
		t.Fatal(err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("name", "coupon spot")
	mw.WriteField("info", "SAVE10")
	mw.WriteField("type", "coupon")
	fw, _ := mw.CreateFormFile("audio", "upload.wav")
	fw.Write(data)
	mw.Close()

	resp, err := http.Post(env.server.URL+"/api/tunes", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST /api/tunes: %v", err)
	}
	var added AddTuneResponse
	decodeBody(t, resp, &added)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if added.ID == "" || added.Type != "coupon" {
		t.Errorf("response = %+v", added)
	}

	var missing bytes.Buffer
	mw = multipart.NewWriter(&missing)
	mw.WriteField("name", "no info")
	mw.Close()
	resp, err = http.Post(env.server.URL+"/api/tunes", mw.FormDataContentType(), &missing)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing info status = %d, want 400", resp.StatusCode)
	}
}

func TestLiveFormat(t *testing.T) {
	tests := []struct {
		query   string
		want    audio.Format
		wantErr bool
	}{
		{"", stereo44k, false},
		{"rate=16000&channels=1", audio.Format{SampleRate: 16000, Channels: 1}, false},
		{"rate=abc", audio.Format{}, true},
		{"channels=0", audio.Format{}, true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ws/detect?"+tt.query, nil)
		got, err := liveFormat(req.URL.Query())
		if (err != nil) != tt.wantErr {
			t.Errorf("liveFormat(%q) error = %v", tt.query, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("liveFormat(%q) = %+v, want %+v", tt.query, got, tt.want)
		}
	}
}

func TestLiveDetect(t *testing.T) {
	env := setupServer(t,
		detect.WithIntervals(time.Second, 50*time.Millisecond),
	)
	samples := stereoMelody(11, 5)
	id := env.addTune(t, "station id", samples)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/detect?rate=44100&channels=2"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	pcm := audio.SamplesToBytes(samples)
	for off := 0; off < len(pcm); off += 32 << 10 {
		end := min(off+32<<10, len(pcm))
		if err := conn.WriteMessage(websocket.BinaryMessage, pcm[off:end]); err != nil {
			t.Fatalf("WriteMessage: %v", err)
		}
	}

	conn.SetReadDeadline(time.Now().Add(15 * time.Second))
	var ev LiveEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if ev.ID != id || ev.Name != "station id" || ev.Session == "" {
		t.Errorf("event = %+v", ev)
	}
}
