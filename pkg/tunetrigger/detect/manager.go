package detect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/himanishpuri/TuneTrigger/pkg/logger"
	"github.com/himanishpuri/TuneTrigger/pkg/models"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/fingerprint"
)

var (
	ErrNoSearcher   = errors.New("detect: searcher is required")
	ErrNoMicrophone = errors.New("detect: no microphone source configured")
	ErrNoTemplate   = errors.New("detect: no trigger template loaded")
	ErrNoSource     = errors.New("detect: stream source is nil")
	ErrStreamActive = errors.New("detect: stream mode is active")
	ErrClosed       = errors.New("detect: manager is closed")
)

const recordTimeout = 5 * time.Second

// Manager runs ambient and stream detection over two mutually exclusive
// audio sources and delivers accepted matches on Events.
//
// Lock order is mu, then a session's mu, then deliverMu. Recorder calls
// happen outside all of them.
type Manager struct {
	cfg      *Config
	log      Logger
	mic      Source
	template *Template
	searcher Searcher
	cmp      *fingerprint.Comparator
	dedup    *dedup
	metrics  *metrics
	events   chan models.MatchResult

	base       context.Context
	cancelBase context.CancelFunc

	state   stateVar
	skipped atomic.Int64

	mu      sync.Mutex
	mode    Mode
	ambient *session
	stream  *session
	paused  bool
	closed  bool

	deliverMu    sync.Mutex
	holding      bool
	eventsClosed bool
}

// NewManager creates an idle manager. mic and template may be nil when only
// stream mode is used.
func NewManager(mic Source, template *Template, searcher Searcher, opts ...Option) (*Manager, error) {
	if searcher == nil {
		return nil, ErrNoSearcher
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger().With("[detect]")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.AmbientInterval <= 0 || cfg.StreamInterval <= 0 {
		return nil, fmt.Errorf("detect: tick intervals must be positive")
	}
	if cfg.EventBuffer < 1 {
		cfg.EventBuffer = 1
	}

	cmp, err := fingerprint.NewComparator(fingerprint.SampleRate)
	if err != nil {
		return nil, err
	}
	met, err := newMetrics(cfg.MeterProvider)
	if err != nil {
		return nil, err
	}

	base, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:        cfg,
		log:        cfg.Logger,
		mic:        mic,
		template:   template,
		searcher:   searcher,
		cmp:        cmp,
		dedup:      newDedup(cfg.Cooldown, cfg.DedupCap),
		metrics:    met,
		events:     make(chan models.MatchResult, cfg.EventBuffer),
		base:       base,
		cancelBase: cancel,
	}, nil
}

// Events delivers one value per accepted match. It is closed by Close.
func (m *Manager) Events() <-chan models.MatchResult {
	return m.events
}

// StartAmbient starts listening on the microphone for the trigger. It is a
// no-op when ambient mode is already running.
func (m *Manager) StartAmbient(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.closed:
		return ErrClosed
	case m.stream != nil:
		return ErrStreamActive
	case m.ambient != nil:
		return nil
	}
	m.paused = false
	return m.startAmbientLocked()
}

func (m *Manager) startAmbientLocked() error {
	if m.mic == nil {
		return ErrNoMicrophone
	}
	if m.template == nil {
		return ErrNoTemplate
	}

	s := m.newSession(ModeAmbient, m.mic, m.cfg.AmbientWindowBytes, m.cfg.AmbientInterval)
	if err := s.start(); err != nil {
		m.log.Errorf("failed to start microphone: %v", err)
		return fmt.Errorf("start microphone: %w", err)
	}
	m.ambient = s
	m.mode = ModeAmbient
	m.log.Infof("ambient detection started")
	return nil
}

// StopAmbient stops ambient mode and releases the microphone.
func (m *Manager) StopAmbient() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopAmbientLocked()
}

func (m *Manager) stopAmbientLocked() error {
	if m.ambient == nil {
		return nil
	}
	err := m.ambient.stop()
	m.ambient = nil
	if m.stream == nil {
		m.mode = ModeNone
		m.state.Store(StateIdle)
	}
	m.log.Infof("ambient detection stopped")
	if err != nil {
		return fmt.Errorf("release microphone: %w", err)
	}
	return nil
}

// StartStream switches to stream mode on src. Ambient mode is stopped and
// the microphone released before src is started. If src fails to start,
// ambient mode is resumed when it was running before.
func (m *Manager) StartStream(ctx context.Context, src Source) error {
	if src == nil {
		return ErrNoSource
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.stream != nil {
		if err := m.stopStreamLocked(); err != nil {
			m.log.Warnf("previous stream did not stop cleanly: %v", err)
		}
	}

	wasAmbient := m.ambient != nil
	if err := m.stopAmbientLocked(); err != nil {
		m.log.Warnf("%v", err)
	}

	s := m.newSession(ModeStream, src, m.cfg.StreamWindowBytes, m.cfg.StreamInterval)
	if err := s.start(); err != nil {
		m.log.Errorf("failed to start stream: %v", err)
		if wasAmbient && !m.paused {
			if aerr := m.startAmbientLocked(); aerr != nil {
				m.log.Warnf("could not resume ambient detection: %v", aerr)
			}
		}
		return fmt.Errorf("start stream: %w", err)
	}

	m.stream = s
	m.mode = ModeStream
	m.log.Infof("stream detection started")
	return nil
}

// StopStream stops stream mode, then restarts ambient mode unless it is
// paused or unavailable.
func (m *Manager) StopStream(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return nil
	}
	err := m.stopStreamLocked()

	if m.closed || m.paused || m.mic == nil || m.template == nil || ctx.Err() != nil {
		return err
	}
	return errors.Join(err, m.startAmbientLocked())
}

func (m *Manager) stopStreamLocked() error {
	err := m.stream.stop()
	m.stream = nil
	m.mode = ModeNone
	m.state.Store(StateIdle)
	m.log.Infof("stream detection stopped")
	if err != nil {
		return fmt.Errorf("release stream: %w", err)
	}
	return nil
}

// PauseAmbient releases the microphone for another user, such as voice
// input, without forgetting that ambient mode is wanted.
func (m *Manager) PauseAmbient() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.paused = true
	return m.stopAmbientLocked()
}

// ResumeAmbient undoes PauseAmbient. While a stream is active it only clears
// the pause, so ambient mode comes back when the stream stops.
func (m *Manager) ResumeAmbient(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.paused = false
	if m.stream != nil || m.ambient != nil {
		return nil
	}
	return m.startAmbientLocked()
}

// deliver applies hold and dedup rules and emits res. It returns the cycle
// outcome. Results from a stopped session are dropped. A result that does
// not fit in the events buffer is neither held nor remembered by dedup.
func (m *Manager) deliver(s *session, res models.MatchResult) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return outcomeCancelled
	}

	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	if m.eventsClosed {
		return outcomeCancelled
	}
	if m.cfg.HoldUntilDismissed && m.holding {
		m.log.Debugf("holding previous match, ignoring %s", res.ID)
		return outcomeHeld
	}
	if !m.dedup.Allowed(res.ID, res.Timestamp) {
		m.log.Debugf("match %s seen within cooldown", res.ID)
		return outcomeDuplicate
	}

	select {
	case m.events <- res:
	default:
		m.log.Warnf("event buffer full, dropped match %s", res.ID)
		return outcomeDropped
	}
	m.dedup.Accept(res.ID, res.Timestamp)
	if m.cfg.HoldUntilDismissed {
		m.holding = true
	}
	return outcomeMatched
}

// record stores a heard interest for res and, for savable types, a history
// entry.
func (m *Manager) record(ctx context.Context, res models.MatchResult) {
	r := m.cfg.Recorder
	if r == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := r.RecordInterest(ctx, models.Interest{
		MatchID:  res.ID,
		Kind:     "heard",
		Date:     res.DateString(),
		RecordAt: res.Timestamp,
	}); err != nil {
		m.log.Warnf("failed to record interest for %s: %v", res.ID, err)
	}

	if !res.Type.CanSave() {
		return
	}
	if err := r.SaveHistory(ctx, models.HistoryEntry{
		MatchID:    res.ID,
		Name:       res.Name,
		Info:       res.Info,
		Type:       res.Type,
		Confidence: res.Confidence,
		HeardAt:    res.Timestamp,
	}); err != nil {
		m.log.Warnf("failed to save history for %s: %v", res.ID, err)
	}
}

// Dismiss releases a match held by WithHoldUntilDismissed.
func (m *Manager) Dismiss() {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()
	m.holding = false
}

// MarkInterested records that the listener acted on match id.
func (m *Manager) MarkInterested(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("detect: empty match id")
	}
	if m.cfg.Recorder == nil {
		return nil
	}
	now := m.cfg.Clock()
	return m.cfg.Recorder.RecordInterest(ctx, models.Interest{
		MatchID:  id,
		Kind:     "interested",
		Date:     now.Format(models.MatchDateLayout),
		RecordAt: now,
	})
}

func (m *Manager) State() State {
	return m.state.Load()
}

func (m *Manager) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Paused reports whether ambient mode is paused.
func (m *Manager) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// SkippedTicks counts ticks dropped because a cycle was in flight.
func (m *Manager) SkippedTicks() int64 {
	return m.skipped.Load()
}

// Close stops both modes and closes Events.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true

	var errs []error
	if m.stream != nil {
		errs = append(errs, m.stopStreamLocked())
	}
	errs = append(errs, m.stopAmbientLocked())
	m.mu.Unlock()

	m.cancelBase()

	m.deliverMu.Lock()
	m.eventsClosed = true
	close(m.events)
	m.deliverMu.Unlock()

	return errors.Join(errs...)
}
