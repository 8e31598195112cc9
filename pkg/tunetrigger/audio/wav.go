package audio

import (
	"errors"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var ErrInvalidWAV = errors.New("invalid WAV file")

// ReadWAV decodes a PCM WAV file into 16-bit interleaved samples at its
// native rate and channel count. Other bit depths are scaled to 16 bits.
func ReadWAV(path string) (Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return Buffer{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return Buffer{}, fmt.Errorf("%s: %w", path, ErrInvalidWAV)
	}

	pcm, err := decoder.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf("read samples from %s: %w", path, err)
	}

	depth := int(decoder.BitDepth)
	samples := make([]int16, len(pcm.Data))
	for i, v := range pcm.Data {
		samples[i] = scaleTo16(v, depth)
	}

	return Buffer{
		Format: Format{
			SampleRate: int(decoder.SampleRate),
			Channels:   int(decoder.NumChans),
		},
		Data: SamplesToBytes(samples),
	}, nil
}

// WriteWAV writes buf as a 16-bit PCM WAV file.
func WriteWAV(path string, buf Buffer) error {
	if !buf.Valid() {
		return fmt.Errorf("write wav: invalid format %+v", buf.Format)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer f.Close()

	samples := buf.Samples()
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}

	encoder := wav.NewEncoder(f, buf.SampleRate, 16, buf.Channels, 1)
	err = encoder.Write(&goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: buf.Channels,
			SampleRate:  buf.SampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	})
	if err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

func scaleTo16(v, depth int) int16 {
	switch {
	case depth == 16 || depth == 0:
		return int16(v)
	case depth == 8:
		// 8-bit WAV is unsigned
		return int16((v - 128) << 8)
	case depth > 16:
		return int16(v >> uint(depth-16))
	default:
		return int16(v << uint(16-depth))
	}
}
