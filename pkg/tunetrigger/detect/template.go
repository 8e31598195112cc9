package detect

import (
	"context"
	"errors"
	"fmt"

	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/audio"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/fingerprint"
)

var ErrEmptyTemplate = errors.New("trigger template has no usable audio")

// Template is the reference trigger audio, held as mono samples at the
// canonical rate. It is read-only once built.
type Template struct {
	samples []int16
}

// NewTemplate downmixes and resamples buf to the canonical rate.
func NewTemplate(buf audio.Buffer, policy audio.DownmixPolicy) (*Template, error) {
	samples := audio.Prepare(buf, fingerprint.SampleRate, policy)
	if len(samples) == 0 {
		return nil, ErrEmptyTemplate
	}
	return &Template{samples: samples}, nil
}

// LoadTemplate decodes the trigger asset at path. Non-WAV inputs are
// converted with ffmpeg into tempDir first.
func LoadTemplate(ctx context.Context, path, tempDir string, policy audio.DownmixPolicy) (*Template, error) {
	buf, err := audio.DecodeFile(ctx, path, tempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to decode trigger %s: %w", path, err)
	}
	return NewTemplate(buf, policy)
}

// Samples returns the template audio. Callers must not modify it.
func (t *Template) Samples() []int16 {
	if t == nil {
		return nil
	}
	return t.samples
}
