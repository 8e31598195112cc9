package detect

import (
	"sync"
	"time"
)

// dedup remembers recently accepted match IDs. An ID is suppressed while it
// was accepted less than cooldown ago; at most cap IDs are kept and the
// oldest goes first.
type dedup struct {
	mu       sync.Mutex
	cooldown time.Duration
	cap      int
	seen     map[string]time.Time
	order    []string
}

func newDedup(cooldown time.Duration, capacity int) *dedup {
	if capacity <= 0 {
		capacity = DefaultDedupCap
	}
	return &dedup{
		cooldown: cooldown,
		cap:      capacity,
		seen:     make(map[string]time.Time, capacity),
	}
}

// Allowed reports whether id may be delivered at now without recording it.
func (d *dedup) Allowed(id string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	at, ok := d.seen[id]
	return !ok || now.Sub(at) >= d.cooldown
}

// Accept reports whether id may be delivered at now and, if so, records it.
// A suppressed ID keeps its original acceptance time.
func (d *dedup) Accept(id string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if at, ok := d.seen[id]; ok {
		if now.Sub(at) < d.cooldown {
			return false
		}
		d.remove(id)
	}

	d.seen[id] = now
	d.order = append(d.order, id)
	for len(d.order) > d.cap {
		delete(d.seen, d.order[0])
		d.order = d.order[1:]
	}
	return true
}

func (d *dedup) remove(id string) {
	delete(d.seen, id)
	for i, v := range d.order {
		if v == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			return
		}
	}
}

func (d *dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}
