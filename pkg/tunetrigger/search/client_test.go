package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/fingerprint"
)

type nopLogger struct{}

func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
func (nopLogger) Debugf(string, ...any) {}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL+"/search", WithLogger(nopLogger{}))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestSearchSendsCommaSeparatedBytes(t *testing.T) {
	var got string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		var body struct {
			Fingerprint string `json:"fingerprint"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		got = body.Fingerprint
		w.Write([]byte(`{"result":[]}`))
	})

	cands, err := c.Search(context.Background(), fingerprint.Fingerprint{1, 200, 0, 37})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(cands) != 0 {
		t.Errorf("expected no candidates, got %v", cands)
	}
	if got != "1,200,0,37" {
		t.Errorf("fingerprint field = %q", got)
	}
}

func TestSearchParsesCandidates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":[
			{"id":1,"name":"Jingle","info":"https://example.com","matchPercentage":30,"type":"coupon"},
			{"id":"2","name":"NoScore","info":"x"},
			{"id":"3","name":"Str","info":"y","matchPercentage":"12.5","description":"d"}
		]}`))
	})

	cands, err := c.Search(context.Background(), fingerprint.Fingerprint{1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(cands) != 3 {
		t.Fatalf("got %d candidates, want 3: %+v", len(cands), cands)
	}

	first := cands[0]
	if first.ID != "1" || first.Name != "Jingle" || first.Info != "https://example.com" ||
		first.Type != "coupon" || first.MatchPercentage != 30 || first.Description != "" {
		t.Errorf("first candidate = %+v", first)
	}
	if cands[1].ID != "2" || cands[1].MatchPercentage != 0 {
		t.Errorf("second candidate = %+v, want id 2 at 0%%", cands[1])
	}
	if cands[2].ID != "3" || cands[2].MatchPercentage != 12.5 || cands[2].Description != "d" {
		t.Errorf("third candidate = %+v", cands[2])
	}
}

func TestParseResponseKeepsUnscoredTopCandidate(t *testing.T) {
	raw := []byte(`{"result":[
		{"id":"bad","name":"Top","info":"http://a"},
		{"id":"2","name":"Second","info":"http://b","matchPercentage":90,"type":"coupon"},
		{"id":"3","name":"Third","info":"http://c","matchPercentage":{"v":80}}
	]}`)

	cands := ParseResponse(raw, nopLogger{})
	if len(cands) != 3 {
		t.Fatalf("got %d candidates, want 3: %+v", len(cands), cands)
	}
	if cands[0].ID != "bad" || cands[0].MatchPercentage != 0 {
		t.Errorf("first candidate = %+v, want id bad at 0%%", cands[0])
	}
	if cands[1].ID != "2" || cands[1].MatchPercentage != 90 {
		t.Errorf("second candidate = %+v", cands[1])
	}
	if cands[2].MatchPercentage != 0 {
		t.Errorf("object matchPercentage = %v, want 0", cands[2].MatchPercentage)
	}
}

func TestSearchMalformedAndEmpty(t *testing.T) {
	bodies := []string{``, `not json`, `{"result":`, `{}`, `{"result":null}`, `{"result":"x"}`}
	for _, body := range bodies {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})
		cands, err := c.Search(context.Background(), fingerprint.Fingerprint{1})
		if err != nil || cands != nil {
			t.Errorf("body %q: got %v, %v; want nil, nil", body, cands, err)
		}
	}
}

func TestSearchNon2xx(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index down", http.StatusServiceUnavailable)
	})

	_, err := c.Search(context.Background(), fingerprint.Fingerprint{1})
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("err = %v, want ErrStatus", err)
	}
}

func TestSearchHonoursContext(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := c.Search(ctx, fingerprint.Fingerprint{1}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestSearchEmptyFingerprint(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	if cands, err := c.Search(context.Background(), nil); cands != nil || err != nil {
		t.Errorf("got %v, %v", cands, err)
	}
	if called {
		t.Error("empty fingerprint reached the server")
	}
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Error("expected error for empty endpoint")
	}
}
