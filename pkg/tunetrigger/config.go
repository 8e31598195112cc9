package tunetrigger

import (
	"runtime"

	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/audio"
)

type Config struct {
	DBPath     string
	TempDir    string
	Downmix    audio.DownmixPolicy
	MaxResults int
	Workers    int
	Logger     Logger
	Storage    Storage
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

// WithDownmix selects how multi-channel reference audio is folded to mono.
func WithDownmix(policy audio.DownmixPolicy) Option {
	return func(c *Config) {
		c.Downmix = policy
	}
}

// WithMaxResults caps how many candidates a search returns.
func WithMaxResults(n int) Option {
	return func(c *Config) {
		c.MaxResults = n
	}
}

// WithWorkers bounds how many files AddTunes fingerprints at once.
func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:     "tunetrigger.sqlite3",
		TempDir:    "/tmp",
		Downmix:    audio.LeftChannel,
		MaxResults: 5,
		Workers:    runtime.NumCPU(),
		Logger:     nil,
	}
}
