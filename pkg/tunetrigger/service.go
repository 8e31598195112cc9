package tunetrigger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/TuneTrigger/pkg/logger"
	"github.com/himanishpuri/TuneTrigger/pkg/models"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/audio"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/fingerprint"
)

// ErrNoAudio is returned when a file decodes to too little audio to index.
var ErrNoAudio = errors.New("not enough audio to fingerprint")

// tuneService is the default implementation of the Service interface.
type tuneService struct {
	storage Storage
	log     Logger
	config  *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	var stor Storage
	var err error
	if cfg.Storage != nil {
		stor = cfg.Storage
	} else {
		stor, err = NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	return &tuneService{
		storage: stor,
		log:     cfg.Logger,
		config:  cfg,
	}, nil
}

// landmarks decodes an audio file and runs it through the canonical
// downmix, resample and landmark pipeline.
func (s *tuneService) landmarks(ctx context.Context, audioPath string) ([]fingerprint.Landmark, int, error) {
	buf, err := audio.DecodeFile(ctx, audioPath, s.config.TempDir)
	if err != nil {
		return nil, 0, fmt.Errorf("audio decode failed: %w", err)
	}

	samples := audio.Prepare(buf, fingerprint.SampleRate, s.config.Downmix)
	if len(samples) < fingerprint.MinSamples {
		return nil, 0, fmt.Errorf("%s: %w", audioPath, ErrNoAudio)
	}
	durationMs := len(samples) * 1000 / fingerprint.SampleRate

	lms := fingerprint.Landmarks(audio.Float64(samples), fingerprint.SampleRate)
	if len(lms) == 0 {
		return nil, 0, fmt.Errorf("%s: %w", audioPath, ErrNoAudio)
	}
	return lms, durationMs, nil
}

// AddTune fingerprints a reference recording and stores it in the index.
// A tune whose name is already indexed is returned as is.
func (s *tuneService) AddTune(ctx context.Context, audioPath string, meta models.TuneMeta) (string, error) {
	if strings.TrimSpace(meta.Name) == "" {
		return "", errors.New("tune name must not be empty")
	}
	if meta.Type == "" {
		meta.Type = models.MatchOpenPage
	}
	s.log.Infof("Processing tune: %s (%s)", meta.Name, audioPath)

	lms, durationMs, err := s.landmarks(ctx, audioPath)
	if err != nil {
		return "", err
	}
	s.log.Infof("Generated %d landmarks", len(lms))

	return s.store(meta, durationMs, lms)
}

func (s *tuneService) store(meta models.TuneMeta, durationMs int, lms []fingerprint.Landmark) (string, error) {
	tuneID, created, err := s.storage.RegisterTune(meta, durationMs)
	if err != nil {
		return "", fmt.Errorf("failed to register tune: %w", err)
	}
	if !created {
		s.log.Infof("Tune %q already indexed as %s", meta.Name, tuneID)
		return tuneID, nil
	}

	if err := s.storage.StoreFingerprints(fingerprint.Couples(lms, tuneID)); err != nil {
		s.storage.DeleteTuneByID(tuneID) // Rollback
		return "", fmt.Errorf("failed to store fingerprints: %w", err)
	}

	s.log.Infof("Successfully added tune ID=%s", tuneID)
	return tuneID, nil
}

// AddTunes fingerprints files concurrently and stores them in order. The
// returned IDs line up with files.
func (s *tuneService) AddTunes(ctx context.Context, files []TuneFile) ([]string, error) {
	type prepared struct {
		lms        []fingerprint.Landmark
		durationMs int
	}
	results := make([]prepared, len(files))

	for _, f := range files {
		if strings.TrimSpace(f.Meta.Name) == "" {
			return nil, fmt.Errorf("file %s: tune name must not be empty", f.Path)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)
	for i, f := range files {
		g.Go(func() error {
			lms, durationMs, err := s.landmarks(gctx, f.Path)
			if err != nil {
				return err
			}
			results[i] = prepared{lms: lms, durationMs: durationMs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ids := make([]string, len(files))
	for i, f := range files {
		meta := f.Meta
		if meta.Type == "" {
			meta.Type = models.MatchOpenPage
		}
		id, err := s.store(meta, results[i].durationMs, results[i].lms)
		if err != nil {
			return ids[:i], err
		}
		ids[i] = id
	}
	return ids, nil
}

// MatchFile finds indexed tunes in a query audio file.
func (s *tuneService) MatchFile(ctx context.Context, audioPath string) ([]MatchResult, error) {
	s.log.Infof("Matching audio: %s", audioPath)

	lms, _, err := s.landmarks(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	return s.match(lms)
}

// MatchFingerprint finds indexed tunes for an extracted fingerprint.
func (s *tuneService) MatchFingerprint(ctx context.Context, fp fingerprint.Fingerprint) ([]MatchResult, error) {
	lms, err := fingerprint.Decode(fp)
	if err != nil {
		return nil, err
	}
	return s.match(lms)
}

// Search answers a detector query: the best matches as wire candidates,
// strongest first, capped at MaxResults.
func (s *tuneService) Search(ctx context.Context, fp fingerprint.Fingerprint) ([]models.Candidate, error) {
	matches, err := s.MatchFingerprint(ctx, fp)
	if err != nil {
		return nil, err
	}

	out := make([]models.Candidate, 0, min(len(matches), s.config.MaxResults))
	for _, m := range matches {
		if len(out) == s.config.MaxResults {
			break
		}
		if m.Confidence <= 0 {
			continue
		}
		out = append(out, m.Candidate())
	}
	return out, nil
}

func (s *tuneService) match(query []fingerprint.Landmark) ([]MatchResult, error) {
	if len(query) == 0 {
		return nil, nil
	}

	seen := make(map[uint32]struct{}, len(query))
	hashes := make([]uint32, 0, len(query))
	for _, lm := range query {
		if _, ok := seen[lm.Hash]; !ok {
			seen[lm.Hash] = struct{}{}
			hashes = append(hashes, lm.Hash)
		}
	}

	dbMap, err := s.storage.GetCouplesByHashes(hashes)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch couples: %w", err)
	}
	s.log.Debugf("Retrieved couples for %d/%d hashes", len(dbMap), len(hashes))

	matches := fingerprint.MatchLandmarks(query, dbMap)
	s.log.Debugf("Found %d candidate matches", len(matches))

	results := make([]MatchResult, 0, len(matches))
	for _, match := range matches {
		tune, err := s.storage.GetTune(match.TuneID)
		if err != nil {
			s.log.Warnf("Failed to get tune %s: %v", match.TuneID, err)
			continue
		}

		dbCount, err := s.storage.FingerprintCount(match.TuneID)
		if err != nil {
			s.log.Warnf("Failed to get fingerprint count for tune %s: %v", match.TuneID, err)
			dbCount = len(query)
		}

		results = append(results, MatchResult{
			TuneID:      tune.ID,
			Name:        tune.Name,
			Description: tune.Description,
			Info:        tune.Info,
			Type:        tune.Type,
			Score:       match.Count,
			OffsetMs:    match.OffsetMs,
			Confidence:  calculateConfidence(match.Count, len(query), dbCount),
		})
	}
	return results, nil
}

// calculateConfidence maps an aligned-hash count to a percentage. The
// smaller of the query and reference landmark counts is the reference, a
// logistic curve centred on a 15% ratio shapes the score, and matches with
// fewer than five aligned hashes are scaled down.
func calculateConfidence(matchCount, queryCount, dbCount int) float64 {
	if matchCount == 0 || queryCount == 0 || dbCount == 0 {
		return 0.0
	}

	ratio := float64(matchCount) / float64(min(queryCount, dbCount))

	const (
		steepness = 20.0
		midpoint  = 0.15
	)

	confidence := 100.0 / (1.0 + math.Exp(-steepness*(ratio-midpoint)))

	if ratio > 0.30 {
		confidence = math.Min(100.0, confidence+(ratio-0.30)*50)
	}

	if matchCount < 5 {
		confidence *= float64(matchCount) / 5.0
	}

	return confidence
}

func (s *tuneService) GetTune(tuneID string) (*models.Tune, error) {
	return s.storage.GetTune(tuneID)
}

func (s *tuneService) ListTunes() ([]models.Tune, error) {
	return s.storage.ListTunes()
}

// DeleteTune removes a tune and all its fingerprints from the index.
func (s *tuneService) DeleteTune(tuneID string) error {
	return s.storage.DeleteTuneByID(tuneID)
}

func (s *tuneService) SaveHistory(ctx context.Context, e models.HistoryEntry) error {
	return s.storage.SaveHistory(ctx, e)
}

func (s *tuneService) RecordInterest(ctx context.Context, in models.Interest) error {
	return s.storage.RecordInterest(ctx, in)
}

func (s *tuneService) History(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	return s.storage.ListHistory(ctx, limit)
}

// Close releases all resources held by the service.
func (s *tuneService) Close() error {
	return s.storage.Close()
}
