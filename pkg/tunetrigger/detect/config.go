package detect

import (
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/audio"
)

// Defaults for the detector tunables.
const (
	DefaultTriggerThreshold     = 0.15
	DefaultAmbientMinConfidence = 10.0
	DefaultStreamMinConfidence  = 25.0
	DefaultAmbientWindowBytes   = 44100 * 2 * 10
	DefaultStreamWindowBytes    = 44100 * 2 * 2 * 10
	DefaultAmbientInterval      = time.Second
	DefaultStreamInterval       = 10 * time.Second
	DefaultExtraCapture         = 3 * time.Second
	DefaultCooldown             = 30 * time.Second
	DefaultDedupCap             = 10
	DefaultSearchTimeout        = 15 * time.Second
	DefaultEventBuffer          = 16
)

type Config struct {
	TriggerThreshold     float64
	AmbientMinConfidence float64
	StreamMinConfidence  float64
	AmbientWindowBytes   int
	StreamWindowBytes    int
	AmbientInterval      time.Duration
	StreamInterval       time.Duration
	ExtraCapture         time.Duration
	Cooldown             time.Duration
	DedupCap             int
	SearchTimeout        time.Duration
	EventBuffer          int
	Downmix              audio.DownmixPolicy
	HoldUntilDismissed   bool

	Logger        Logger
	Recorder      Recorder
	MeterProvider metric.MeterProvider
	Clock         func() time.Time
}

type Option func(*Config)

// WithTriggerThreshold sets the similarity score in [0, 1] at which ambient
// audio is considered to contain the trigger.
func WithTriggerThreshold(v float64) Option {
	return func(c *Config) {
		c.TriggerThreshold = v
	}
}

// WithMinConfidence sets the minimum match percentage accepted in each mode.
func WithMinConfidence(ambient, stream float64) Option {
	return func(c *Config) {
		c.AmbientMinConfidence = ambient
		c.StreamMinConfidence = stream
	}
}

// WithWindowBytes sets the rolling window ceiling for each mode.
func WithWindowBytes(ambient, stream int) Option {
	return func(c *Config) {
		c.AmbientWindowBytes = ambient
		c.StreamWindowBytes = stream
	}
}

// WithIntervals sets the tick period for each mode.
func WithIntervals(ambient, stream time.Duration) Option {
	return func(c *Config) {
		c.AmbientInterval = ambient
		c.StreamInterval = stream
	}
}

// WithExtraCapture sets how long ambient mode keeps recording after the
// trigger is heard before fingerprinting.
func WithExtraCapture(d time.Duration) Option {
	return func(c *Config) {
		c.ExtraCapture = d
	}
}

// WithCooldown sets how long an accepted match ID is suppressed.
func WithCooldown(d time.Duration) Option {
	return func(c *Config) {
		c.Cooldown = d
	}
}

// WithDedupCap bounds how many recent match IDs are remembered.
func WithDedupCap(n int) Option {
	return func(c *Config) {
		c.DedupCap = n
	}
}

func WithSearchTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.SearchTimeout = d
	}
}

// WithEventBuffer sets the capacity of the Events channel.
func WithEventBuffer(n int) Option {
	return func(c *Config) {
		c.EventBuffer = n
	}
}

func WithDownmix(policy audio.DownmixPolicy) Option {
	return func(c *Config) {
		c.Downmix = policy
	}
}

// WithHoldUntilDismissed makes the manager ignore new matches after one is
// delivered until Dismiss is called.
func WithHoldUntilDismissed(hold bool) Option {
	return func(c *Config) {
		c.HoldUntilDismissed = hold
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

// WithRecorder stores interest and history for accepted matches.
func WithRecorder(r Recorder) Option {
	return func(c *Config) {
		c.Recorder = r
	}
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Config) {
		c.MeterProvider = mp
	}
}

// WithClock replaces time.Now for dedup and match timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		c.Clock = now
	}
}

func defaultConfig() *Config {
	return &Config{
		TriggerThreshold:     DefaultTriggerThreshold,
		AmbientMinConfidence: DefaultAmbientMinConfidence,
		StreamMinConfidence:  DefaultStreamMinConfidence,
		AmbientWindowBytes:   DefaultAmbientWindowBytes,
		StreamWindowBytes:    DefaultStreamWindowBytes,
		AmbientInterval:      DefaultAmbientInterval,
		StreamInterval:       DefaultStreamInterval,
		ExtraCapture:         DefaultExtraCapture,
		Cooldown:             DefaultCooldown,
		DedupCap:             DefaultDedupCap,
		SearchTimeout:        DefaultSearchTimeout,
		EventBuffer:          DefaultEventBuffer,
		Downmix:              audio.LeftChannel,
		Clock:                time.Now,
	}
}
