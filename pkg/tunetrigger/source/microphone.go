//go:build !js && !wasm

package source

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/audio"
)

// DefaultFramesPerBuffer is the portaudio callback size for the microphone.
const DefaultFramesPerBuffer = 1024

// Microphone captures mono 16-bit PCM from the default input device. The
// device is held only between Start and Stop.
type Microphone struct {
	format          audio.Format
	framesPerBuffer int

	mu     sync.Mutex
	stream *portaudio.Stream
}

func NewMicrophone(sampleRate, framesPerBuffer int) *Microphone {
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultFramesPerBuffer
	}
	return &Microphone{
		format:          audio.Format{SampleRate: sampleRate, Channels: 1},
		framesPerBuffer: framesPerBuffer,
	}
}

func (m *Microphone) Format() audio.Format {
	return m.format
}

// Start opens the default input device and pushes each callback buffer.
func (m *Microphone) Start(ctx context.Context, push func([]byte)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream != nil {
		return ErrBusy
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.format.SampleRate), m.framesPerBuffer, func(in []int16) {
		if len(in) > 0 {
			push(audio.SamplesToBytes(in))
		}
	})
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open microphone: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start microphone: %w", err)
	}

	m.stream = stream
	return nil
}

// Stop releases the input device. It is safe to call when not started.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream == nil {
		return nil
	}

	err := errors.Join(m.stream.Stop(), m.stream.Close(), portaudio.Terminate())
	m.stream = nil
	return err
}
