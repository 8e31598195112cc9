package tunetrigger

import (
	"context"

	"github.com/himanishpuri/TuneTrigger/pkg/models"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/fingerprint"
)

// Service is the reference fingerprint index: it registers tunes and
// answers fingerprint searches against them.
type Service interface {
	AddTune(ctx context.Context, audioPath string, meta models.TuneMeta) (string, error)
	AddTunes(ctx context.Context, files []TuneFile) ([]string, error)
	MatchFile(ctx context.Context, audioPath string) ([]MatchResult, error)
	MatchFingerprint(ctx context.Context, fp fingerprint.Fingerprint) ([]MatchResult, error)
	Search(ctx context.Context, fp fingerprint.Fingerprint) ([]models.Candidate, error)
	GetTune(tuneID string) (*models.Tune, error)
	ListTunes() ([]models.Tune, error)
	DeleteTune(tuneID string) error
	SaveHistory(ctx context.Context, e models.HistoryEntry) error
	RecordInterest(ctx context.Context, in models.Interest) error
	History(ctx context.Context, limit int) ([]models.HistoryEntry, error)
	Close() error
}

type Storage interface {
	RegisterTune(meta models.TuneMeta, durationMs int) (id string, created bool, err error)
	StoreFingerprints(fingerprints map[uint32][]models.Couple) error
	GetCouplesByHash(hash uint32) ([]models.Couple, error)
	GetCouplesByHashes(hashes []uint32) (map[uint32][]models.Couple, error)
	DeleteTuneByID(tuneID string) error
	GetTune(tuneID string) (*models.Tune, error)
	FingerprintCount(tuneID string) (int, error)
	ListTunes() ([]models.Tune, error)
	SaveHistory(ctx context.Context, e models.HistoryEntry) error
	ListHistory(ctx context.Context, limit int) ([]models.HistoryEntry, error)
	RecordInterest(ctx context.Context, in models.Interest) error
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
