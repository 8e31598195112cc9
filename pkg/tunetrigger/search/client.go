// Package search talks to a remote fingerprint index over HTTP.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/himanishpuri/TuneTrigger/pkg/logger"
	"github.com/himanishpuri/TuneTrigger/pkg/models"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/fingerprint"
)

// DefaultTimeout bounds one search round trip.
const DefaultTimeout = 10 * time.Second

// ErrStatus is returned when the index answers with a non-2xx status.
var ErrStatus = errors.New("search: unexpected status")

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

// Client submits fingerprints to the index's search endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	log        Logger
}

type config struct {
	timeout    time.Duration
	httpClient *http.Client
	log        Logger
}

type Option func(*config)

// WithTimeout sets the per-request timeout. Ignored when WithHTTPClient is used.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

func WithLogger(l Logger) Option {
	return func(c *config) {
		c.log = l
	}
}

// NewClient returns a client for endpoint, the full URL of the search route.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("search: endpoint must not be empty")
	}

	cfg := &config{timeout: DefaultTimeout}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.log == nil {
		cfg.log = logger.GetLogger()
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	return &Client{
		endpoint:   endpoint,
		httpClient: hc,
		log:        cfg.log,
	}, nil
}

type searchRequest struct {
	Fingerprint string `json:"fingerprint"`
}

// Search posts fp and returns the candidates in the order the index ranked
// them. An empty or absent result list, or a body that is not JSON, yields
// no candidates and no error.
func (c *Client) Search(ctx context.Context, fp fingerprint.Fingerprint) ([]models.Candidate, error) {
	if len(fp) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(searchRequest{Fingerprint: fp.String()})
	if err != nil {
		return nil, fmt.Errorf("search: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("search: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("search: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	return ParseResponse(raw, c.log), nil
}

// ParseResponse extracts candidates from a search response body in the
// server's order. An entry without a usable matchPercentage is kept at 0%
// so that the candidates after it never move up to first place.
func ParseResponse(raw []byte, log Logger) []models.Candidate {
	if !gjson.ValidBytes(raw) {
		if log != nil {
			log.Debugf("search: discarding malformed response (%d bytes)", len(raw))
		}
		return nil
	}

	result := gjson.GetBytes(raw, "result")
	if !result.IsArray() {
		return nil
	}

	var candidates []models.Candidate
	result.ForEach(func(_, item gjson.Result) bool {
		var pct float64
		if v := item.Get("matchPercentage"); v.Type == gjson.Number || v.Type == gjson.String {
			pct = v.Float()
		}
		candidates = append(candidates, models.Candidate{
			ID:              item.Get("id").String(),
			Name:            item.Get("name").String(),
			Description:     item.Get("description").String(),
			Info:            item.Get("info").String(),
			Type:            item.Get("type").String(),
			MatchPercentage: pct,
		})
		return true
	})
	return candidates
}
