package detect

import (
	"context"

	"github.com/himanishpuri/TuneTrigger/pkg/models"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/audio"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/fingerprint"
)

// Source produces raw PCM. Start begins delivering chunks to push, in
// arrival order, until Stop is called or ctx ends. Stop must release the
// underlying device or connection before it returns.
type Source interface {
	Format() audio.Format
	Start(ctx context.Context, push func([]byte)) error
	Stop() error
}

// Searcher identifies a fingerprint against an index.
type Searcher interface {
	Search(ctx context.Context, fp fingerprint.Fingerprint) ([]models.Candidate, error)
}

// Recorder keeps listener-facing records of accepted matches.
type Recorder interface {
	RecordInterest(ctx context.Context, in models.Interest) error
	SaveHistory(ctx context.Context, e models.HistoryEntry) error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
