package detect

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/audio"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/fingerprint"
)

// session is one running mode: a source feeding a rolling window and a
// ticker that starts detection cycles over it.
type session struct {
	mode     Mode
	src      Source
	format   audio.Format
	window   *Window
	interval time.Duration
	m        *Manager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	busy   atomic.Bool

	mu      sync.Mutex
	stopped bool
}

func (m *Manager) newSession(mode Mode, src Source, windowBytes int, interval time.Duration) *session {
	f := src.Format()
	ctx, cancel := context.WithCancel(m.base)
	return &session{
		mode:     mode,
		src:      src,
		format:   f,
		window:   NewWindow(windowBytes, f.BytesPerFrame()),
		interval: interval,
		m:        m,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// start acquires the source and begins ticking.
func (s *session) start() error {
	if !s.format.Valid() {
		s.cancel()
		return errors.New("source reports an invalid audio format")
	}
	if err := s.src.Start(s.ctx, s.window.Append); err != nil {
		s.cancel()
		return err
	}

	s.wg.Add(1)
	go s.loop()
	return nil
}

// stop discards any later results, cancels in-flight work, releases the
// source and waits for every goroutine of the session to finish.
func (s *session) stop() error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	err := s.src.Stop()
	s.wg.Wait()
	s.window.Reset()
	return err
}

func (s *session) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick dispatches a cycle unless one is already running.
func (s *session) tick() {
	if !s.busy.CompareAndSwap(false, true) {
		s.m.skipped.Add(1)
		s.m.metrics.skipped(s.ctx, s.mode)
		s.m.log.Debugf("%s tick skipped: previous cycle still running", s.mode)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.busy.Store(false)

		var outcome string
		if s.mode == ModeAmbient {
			outcome = s.ambientCycle()
		} else {
			outcome = s.streamCycle()
		}

		s.m.metrics.cycle(context.WithoutCancel(s.ctx), s.mode, outcome)
		if outcome == outcomeMatched {
			s.m.state.Store(StateCooldown)
		} else {
			s.m.state.Store(StateIdle)
		}
	}()
}

// ambientCycle gates the window against the trigger template and only
// fingerprints when the trigger is heard.
func (s *session) ambientCycle() string {
	m := s.m
	m.state.Store(StateCapturing)
	samples := s.prepare(s.window.Snapshot())
	if len(samples) < fingerprint.MinSamples {
		return outcomeShort
	}

	m.state.Store(StateGating)
	score := m.cmp.Compare(samples, m.template.Samples())
	m.metrics.triggerScore.Record(s.ctx, score)
	if score < m.cfg.TriggerThreshold {
		m.log.Debugf("ambient score %.3f below trigger threshold %.3f", score, m.cfg.TriggerThreshold)
		return outcomeBelowGate
	}

	m.log.Infof("trigger heard (score %.3f), capturing %s more", score, m.cfg.ExtraCapture)
	m.state.Store(StateCapturing)
	if !sleep(s.ctx, m.cfg.ExtraCapture) {
		return outcomeCancelled
	}

	return s.submit(s.prepare(s.window.Snapshot()), m.cfg.AmbientMinConfidence)
}

func (s *session) streamCycle() string {
	s.m.state.Store(StateCapturing)
	return s.submit(s.prepare(s.window.Snapshot()), s.m.cfg.StreamMinConfidence)
}

func (s *session) prepare(pcm []byte) []int16 {
	return audio.Prepare(audio.Buffer{Format: s.format, Data: pcm}, fingerprint.SampleRate, s.m.cfg.Downmix)
}

// submit fingerprints samples, searches, and hands an accepted result to the
// manager.
func (s *session) submit(samples []int16, minConfidence float64) string {
	m := s.m
	if len(samples) < fingerprint.MinSamples {
		return outcomeShort
	}

	m.state.Store(StateFingerprinting)
	fp := fingerprint.Extract(samples)
	if len(fp) == 0 {
		m.log.Debugf("%s cycle produced no fingerprint", s.mode)
		return outcomeNoPrint
	}

	m.state.Store(StateSubmitted)
	ctx, cancel := context.WithTimeout(s.ctx, m.cfg.SearchTimeout)
	start := time.Now()
	candidates, err := m.searcher.Search(ctx, fp)
	cancel()
	m.metrics.searchLatency.Record(context.WithoutCancel(s.ctx), time.Since(start).Seconds())

	if err != nil {
		if s.ctx.Err() != nil {
			return outcomeCancelled
		}
		m.log.Warnf("%s search failed: %v", s.mode, err)
		return outcomeError
	}
	if len(candidates) == 0 {
		return outcomeNoMatch
	}

	res, ok := accept(candidates, minConfidence, m.cfg.Clock())
	if !ok {
		m.log.Debugf("%s discarded candidate %q at %.1f%%", s.mode, candidates[0].ID, candidates[0].MatchPercentage)
		return outcomeRejected
	}

	outcome := m.deliver(s, res)
	if outcome == outcomeMatched {
		m.log.Infof("%s match: %s (%s) %.1f%%", s.mode, res.Name, res.ID, res.Confidence)
		m.record(s.ctx, res)
	}
	return outcome
}

// sleep waits for d or until ctx is done, reporting whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
