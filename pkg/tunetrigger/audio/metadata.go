package audio

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"
)

// Metadata is what ffprobe reports about the first audio stream of a file.
type Metadata struct {
	Filename  string
	Title     string
	Container string
	Codec     string
	Duration  time.Duration
	Format    Format
	BitDepth  int
}

var ErrNoAudioStream = errors.New("no audio stream found")

// fallbackRate is used when ffprobe cannot tell the native rate (some raw streams).
const fallbackRate = 44100

// Probe runs ffprobe on path and returns the first audio stream's properties.
func Probe(ctx context.Context, path string) (*Metadata, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(
		ctx,
		"ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffprobe %s: %w", filepath.Base(path), err)
	}
	return parseProbe(path, out)
}

func parseProbe(path string, out []byte) (*Metadata, error) {
	if !gjson.ValidBytes(out) {
		return nil, fmt.Errorf("ffprobe %s: malformed output", filepath.Base(path))
	}
	doc := gjson.ParseBytes(out)

	stream := doc.Get(`streams.#(codec_type=="audio")`)
	if !stream.Exists() {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrNoAudioStream)
	}

	meta := &Metadata{
		Filename:  filepath.Base(path),
		Title:     doc.Get("format.tags.title").String(),
		Container: doc.Get("format.format_name").String(),
		Codec:     stream.Get("codec_name").String(),
		Duration:  time.Duration(doc.Get("format.duration").Float() * float64(time.Second)),
		Format: Format{
			// sample_rate is a JSON string; gjson converts it.
			SampleRate: int(stream.Get("sample_rate").Int()),
			Channels:   int(stream.Get("channels").Int()),
		},
		BitDepth: int(stream.Get("bits_per_sample").Int()),
	}
	return meta, nil
}

// PCMFormat returns the PCM layout ffmpeg will produce when decoding at the
// file's native rate and channel count.
func (m *Metadata) PCMFormat() Format {
	f := m.Format
	if f.Channels <= 0 {
		f.Channels = 1
	}
	if f.SampleRate <= 0 {
		f.SampleRate = fallbackRate
	}
	return f
}
