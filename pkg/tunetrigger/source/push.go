package source

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/audio"
)

var (
	ErrBusy       = errors.New("source already started")
	ErrNotStarted = errors.New("source not started")
)

// Push is a source fed by the caller, for audio that arrives over the network.
// Writes are regrouped into whole frames before they are forwarded.
type Push struct {
	format audio.Format

	mu      sync.Mutex
	push    func([]byte)
	partial []byte
}

func NewPush(format audio.Format) *Push {
	return &Push{format: format}
}

func (p *Push) Format() audio.Format {
	return p.format
}

func (p *Push) Start(ctx context.Context, push func([]byte)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.format.Valid() {
		return fmt.Errorf("push source: invalid format %+v", p.format)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.push != nil {
		return ErrBusy
	}
	p.push = push
	p.partial = p.partial[:0]
	return nil
}

func (p *Push) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.push = nil
	p.partial = nil
	return nil
}

// Write forwards b. Bytes that do not complete a frame are held until the
// next call.
func (p *Push) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.push == nil {
		return 0, ErrNotStarted
	}

	data := append(p.partial, b...)
	whole := len(data) - len(data)%p.format.BytesPerFrame()
	if whole > 0 {
		p.push(append([]byte(nil), data[:whole]...))
	}
	p.partial = append([]byte(nil), data[whole:]...)
	return len(b), nil
}
