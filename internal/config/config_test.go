package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/audio"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/detect"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TUNETRIGGER_DB_PATH", "")
	t.Setenv("TUNETRIGGER_SEARCH_URL", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Trigger.Threshold != detect.DefaultTriggerThreshold {
		t.Errorf("Threshold = %v", cfg.Trigger.Threshold)
	}
	if cfg.Detect.AmbientWindowBytes != 882000 || cfg.Detect.StreamWindowBytes != 1764000 {
		t.Errorf("window bytes = %d/%d", cfg.Detect.AmbientWindowBytes, cfg.Detect.StreamWindowBytes)
	}
	if cfg.DownmixPolicy() != audio.LeftChannel {
		t.Errorf("DownmixPolicy() = %v", cfg.DownmixPolicy())
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("TUNETRIGGER_SEARCH_URL", "")
	path := writeConfig(t, `
log_level: debug
search:
  url: http://index.local/api/search-fingerprint
  timeout: 4s
trigger:
  asset: trigger.mp3
  threshold: 0.2
  extra_capture: 2500ms
detect:
  ambient_min_confidence: 12
  stream_interval: 5s
  downmix: average
  hold_until_dismissed: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.Timeout != 4*time.Second {
		t.Errorf("Search.Timeout = %v", cfg.Search.Timeout)
	}
	if cfg.Trigger.ExtraCapture != 2500*time.Millisecond {
		t.Errorf("ExtraCapture = %v", cfg.Trigger.ExtraCapture)
	}
	if cfg.Detect.StreamInterval != 5*time.Second {
		t.Errorf("StreamInterval = %v", cfg.Detect.StreamInterval)
	}
	if cfg.Detect.AmbientInterval != detect.DefaultAmbientInterval {
		t.Errorf("unset AmbientInterval lost its default: %v", cfg.Detect.AmbientInterval)
	}
	if cfg.DownmixPolicy() != audio.AverageChannels {
		t.Errorf("DownmixPolicy() = %v", cfg.DownmixPolicy())
	}
	if !cfg.Detect.HoldUntilDismissed {
		t.Error("HoldUntilDismissed not set")
	}
	if got := len(cfg.DetectOptions()); got == 0 {
		t.Error("DetectOptions() returned nothing")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "detect:\n  cooldwn: 5s\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted an unknown key")
	}
}

func TestLoadEmptyFile(t *testing.T) {
	if _, err := Load(writeConfig(t, "")); err != nil {
		t.Errorf("Load(empty file): %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TUNETRIGGER_DB_PATH", "/data/index.sqlite3")
	t.Setenv("TUNETRIGGER_SEARCH_URL", "http://env.local/search")
	path := writeConfig(t, "db_path: file.sqlite3\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/data/index.sqlite3" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Search.URL != "http://env.local/search" {
		t.Errorf("Search.URL = %q", cfg.Search.URL)
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "loud"
	cfg.Trigger.Threshold = 1.5
	cfg.Detect.DedupCap = 0
	cfg.Detect.Downmix = "right"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate accepted a bad config")
	}
	for _, want := range []string{"log_level", "trigger.threshold", "dedup_cap", "downmix"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
