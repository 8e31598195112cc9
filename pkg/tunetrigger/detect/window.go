package detect

import "sync"

// Window is a bounded FIFO of PCM chunks holding the most recent audio.
// Append evicts whole chunks from the front until the new chunk fits, so the
// buffered size never exceeds the limit. A single chunk larger than the limit
// is cut to its newest frame-aligned tail.
type Window struct {
	mu     sync.Mutex
	chunks [][]byte
	size   int
	limit  int
	frame  int
}

// NewWindow creates a window of at most limit bytes. frameBytes keeps
// oversize chunks aligned to whole frames.
func NewWindow(limit, frameBytes int) *Window {
	if frameBytes <= 0 {
		frameBytes = 1
	}
	limit -= limit % frameBytes
	return &Window{limit: limit, frame: frameBytes}
}

// Append copies chunk into the window.
func (w *Window) Append(chunk []byte) {
	if len(chunk) == 0 || w.limit <= 0 {
		return
	}
	if len(chunk) > w.limit {
		chunk = chunk[len(chunk)-w.limit:]
	}
	c := append([]byte(nil), chunk...)

	w.mu.Lock()
	defer w.mu.Unlock()

	for len(w.chunks) > 0 && w.size+len(c) > w.limit {
		w.size -= len(w.chunks[0])
		w.chunks[0] = nil
		w.chunks = w.chunks[1:]
	}
	w.chunks = append(w.chunks, c)
	w.size += len(c)
}

// Snapshot returns a contiguous copy of the buffered audio, oldest first.
func (w *Window) Snapshot() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]byte, 0, w.size)
	for _, c := range w.chunks {
		out = append(out, c...)
	}
	return out
}

func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

func (w *Window) Limit() int {
	return w.limit
}

func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chunks = nil
	w.size = 0
}
