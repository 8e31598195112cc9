package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/himanishpuri/TuneTrigger/pkg/logger"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/audio"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/detect"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/search"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/storage"
)

// Config is the file-based configuration shared by the binaries.
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	DBPath     string           `yaml:"db_path"`
	TempDir    string           `yaml:"temp_dir"`
	Search     SearchConfig     `yaml:"search"`
	Trigger    TriggerConfig    `yaml:"trigger"`
	Detect     DetectConfig     `yaml:"detect"`
	Microphone MicrophoneConfig `yaml:"microphone"`
	Server     ServerConfig     `yaml:"server"`
}

type SearchConfig struct {
	URL     string        `yaml:"url"`     // Fingerprint search endpoint
	Timeout time.Duration `yaml:"timeout"` // Per-request timeout
}

type TriggerConfig struct {
	Asset        string        `yaml:"asset"`         // Trigger audio file (WAV, MP3, ...)
	Threshold    float64       `yaml:"threshold"`     // Similarity score in [0, 1]
	ExtraCapture time.Duration `yaml:"extra_capture"` // Recording kept after the trigger
}

type DetectConfig struct {
	AmbientMinConfidence float64       `yaml:"ambient_min_confidence"`
	StreamMinConfidence  float64       `yaml:"stream_min_confidence"`
	AmbientWindowBytes   int           `yaml:"ambient_window_bytes"`
	StreamWindowBytes    int           `yaml:"stream_window_bytes"`
	AmbientInterval      time.Duration `yaml:"ambient_interval"`
	StreamInterval       time.Duration `yaml:"stream_interval"`
	Cooldown             time.Duration `yaml:"cooldown"`
	DedupCap             int           `yaml:"dedup_cap"`
	Downmix              string        `yaml:"downmix"` // "left" or "average"
	HoldUntilDismissed   bool          `yaml:"hold_until_dismissed"`
}

type MicrophoneConfig struct {
	SampleRate      int `yaml:"sample_rate"`
	FramesPerBuffer int `yaml:"frames_per_buffer"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		DBPath:   storage.DefaultDBFile,
		TempDir:  os.TempDir(),
		Search: SearchConfig{
			Timeout: search.DefaultTimeout,
		},
		Trigger: TriggerConfig{
			Threshold:    detect.DefaultTriggerThreshold,
			ExtraCapture: detect.DefaultExtraCapture,
		},
		Detect: DetectConfig{
			AmbientMinConfidence: detect.DefaultAmbientMinConfidence,
			StreamMinConfidence:  detect.DefaultStreamMinConfidence,
			AmbientWindowBytes:   detect.DefaultAmbientWindowBytes,
			StreamWindowBytes:    detect.DefaultStreamWindowBytes,
			AmbientInterval:      detect.DefaultAmbientInterval,
			StreamInterval:       detect.DefaultStreamInterval,
			Cooldown:             detect.DefaultCooldown,
			DedupCap:             detect.DefaultDedupCap,
			Downmix:              audio.LeftChannel.String(),
		},
		Microphone: MicrophoneConfig{
			SampleRate:      44100,
			FramesPerBuffer: 1024,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path yields the defaults. Unknown keys are
// rejected.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := os.LookupEnv("TUNETRIGGER_DB_PATH"); ok && v != "" {
		c.DBPath = v
	}
	if v, ok := os.LookupEnv("TUNETRIGGER_TEMP_DIR"); ok && v != "" {
		c.TempDir = v
	}
	if v, ok := os.LookupEnv("TUNETRIGGER_SEARCH_URL"); ok && v != "" {
		c.Search.URL = v
	}
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := logger.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not a known level", c.LogLevel))
	}
	if c.Search.Timeout <= 0 {
		errs = append(errs, errors.New("search.timeout must be positive"))
	}
	if c.Trigger.Threshold < 0 || c.Trigger.Threshold > 1 {
		errs = append(errs, fmt.Errorf("trigger.threshold %.3f must be within [0, 1]", c.Trigger.Threshold))
	}
	if c.Trigger.ExtraCapture < 0 {
		errs = append(errs, errors.New("trigger.extra_capture must not be negative"))
	}

	d := c.Detect
	for name, pct := range map[string]float64{
		"detect.ambient_min_confidence": d.AmbientMinConfidence,
		"detect.stream_min_confidence":  d.StreamMinConfidence,
	} {
		if pct < 0 || pct > 100 {
			errs = append(errs, fmt.Errorf("%s %.1f must be within [0, 100]", name, pct))
		}
	}
	if d.AmbientWindowBytes <= 0 || d.StreamWindowBytes <= 0 {
		errs = append(errs, errors.New("detect window sizes must be positive"))
	}
	if d.AmbientInterval <= 0 || d.StreamInterval <= 0 {
		errs = append(errs, errors.New("detect intervals must be positive"))
	}
	if d.Cooldown < 0 {
		errs = append(errs, errors.New("detect.cooldown must not be negative"))
	}
	if d.DedupCap <= 0 {
		errs = append(errs, errors.New("detect.dedup_cap must be positive"))
	}
	if _, err := audio.ParseDownmixPolicy(d.Downmix); err != nil {
		errs = append(errs, fmt.Errorf("detect.downmix: %w", err))
	}
	if c.Microphone.SampleRate <= 0 {
		errs = append(errs, errors.New("microphone.sample_rate must be positive"))
	}

	return errors.Join(errs...)
}

// DownmixPolicy returns the configured policy. Validate guarantees it parses.
func (c *Config) DownmixPolicy() audio.DownmixPolicy {
	p, _ := audio.ParseDownmixPolicy(c.Detect.Downmix)
	return p
}

// DetectOptions maps the file settings onto detector options.
func (c *Config) DetectOptions() []detect.Option {
	d := c.Detect
	return []detect.Option{
		detect.WithTriggerThreshold(c.Trigger.Threshold),
		detect.WithExtraCapture(c.Trigger.ExtraCapture),
		detect.WithMinConfidence(d.AmbientMinConfidence, d.StreamMinConfidence),
		detect.WithWindowBytes(d.AmbientWindowBytes, d.StreamWindowBytes),
		detect.WithIntervals(d.AmbientInterval, d.StreamInterval),
		detect.WithCooldown(d.Cooldown),
		detect.WithDedupCap(d.DedupCap),
		detect.WithDownmix(c.DownmixPolicy()),
		detect.WithHoldUntilDismissed(d.HoldUntilDismissed),
		detect.WithSearchTimeout(c.Search.Timeout),
	}
}
