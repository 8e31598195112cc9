package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/himanishpuri/TuneTrigger/pkg/logger"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/audio"
)

// StreamFormat is the PCM layout decoded streams are delivered in.
var StreamFormat = audio.Format{SampleRate: 44100, Channels: 2}

const chunkDuration = 100 * time.Millisecond

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

// FFmpeg decodes a URL or file to PCM with an ffmpeg child process.
type FFmpeg struct {
	input    string
	format   audio.Format
	realtime bool
	log      Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type FFmpegOption func(*FFmpeg)

// WithRealtime reads the input at its native rate, so local files behave
// like a live stream.
func WithRealtime(on bool) FFmpegOption {
	return func(f *FFmpeg) {
		f.realtime = on
	}
}

func WithFormat(format audio.Format) FFmpegOption {
	return func(f *FFmpeg) {
		f.format = format
	}
}

func WithLogger(log Logger) FFmpegOption {
	return func(f *FFmpeg) {
		f.log = log
	}
}

func NewFFmpeg(input string, opts ...FFmpegOption) *FFmpeg {
	f := &FFmpeg{input: input, format: StreamFormat}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = logger.GetLogger().With("[ffmpeg]")
	}
	return f
}

func (f *FFmpeg) Format() audio.Format {
	return f.format
}

func (f *FFmpeg) args() []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if f.realtime {
		args = append(args, "-re")
	}
	return append(args,
		"-i", f.input,
		"-vn",
		"-f", "s16le",
		"-ac", strconv.Itoa(f.format.Channels),
		"-ar", strconv.Itoa(f.format.SampleRate),
		"pipe:1",
	)
}

// Start launches ffmpeg and pushes frame-aligned chunks until the input ends,
// Stop is called, or ctx is done.
func (f *FFmpeg) Start(ctx context.Context, push func([]byte)) error {
	if f.input == "" {
		return errors.New("ffmpeg source: empty input")
	}
	if !f.format.Valid() {
		return fmt.Errorf("ffmpeg source: invalid format %+v", f.format)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return ErrBusy
	}

	runCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(runCtx, "ffmpeg", f.args()...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	f.cancel = cancel
	f.done = make(chan struct{})
	go f.pump(runCtx, cmd, stdout, &stderr, push)

	f.log.Infof("decoding %s", f.input)
	return nil
}

func (f *FFmpeg) pump(ctx context.Context, cmd *exec.Cmd, stdout io.Reader, stderr *bytes.Buffer, push func([]byte)) {
	defer close(f.done)

	size := f.format.Bytes(chunkDuration)
	buf := make([]byte, size)
	for {
		n, err := io.ReadFull(stdout, buf)
		n -= n % f.format.BytesPerFrame()
		if n > 0 {
			push(append([]byte(nil), buf[:n]...))
		}
		if err != nil {
			break
		}
	}

	if err := cmd.Wait(); err != nil && ctx.Err() == nil {
		f.log.Errorf("ffmpeg exited: %v: %s", err, bytes.TrimSpace(stderr.Bytes()))
		return
	}
	f.log.Debugf("decoder for %s finished", f.input)
}

// Stop kills ffmpeg and waits for the reader to finish.
func (f *FFmpeg) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel == nil {
		return nil
	}

	f.cancel()
	<-f.done
	f.cancel = nil
	f.done = nil
	return nil
}
