package services

import (
	"sync"
	"time"

	"github.com/osvaldoandrade/classifyq/pkg/domain"
)

const subscriberBuffer = 8

// StatusHub keeps the latest snapshot of every in-flight result and fans
// updates out to subscribers of that result id.
type StatusHub interface {
	Publish(result domain.Result)
	Latest(id string) (domain.Result, bool)
	// Subscribe returns a channel of updates for id, starting with the
	// latest known snapshot. The channel is closed after a terminal update
	// or when cancel is called.
	Subscribe(id string) (<-chan domain.Result, func())
}

type hubEntry struct {
	latest    domain.Result
	updatedAt time.Time
	subs      map[int]chan domain.Result
}

type statusHub struct {
	mu        sync.Mutex
	entries   map[string]*hubEntry
	nextSub   int
	retention time.Duration
	now       func() time.Time
}

// NewStatusHub keeps terminal snapshots for retention before evicting them.
func NewStatusHub(retention time.Duration, now func() time.Time) StatusHub {
	if retention <= 0 {
		retention = 10 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &statusHub{entries: map[string]*hubEntry{}, retention: retention, now: now}
}

func (h *statusHub) Publish(result domain.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	h.evictLocked(now)

	e, ok := h.entries[result.ID]
	if !ok {
		e = &hubEntry{subs: map[int]chan domain.Result{}}
		h.entries[result.ID] = e
	}
	if e.latest.State.IsTerminal() {
		return
	}
	e.latest = result.Clone()
	e.updatedAt = now

	for id, ch := range e.subs {
		select {
		case ch <- result.Clone():
		default:
		}
		if result.State.IsTerminal() {
			close(ch)
			delete(e.subs, id)
		}
	}
}

func (h *statusHub) Latest(id string) (domain.Result, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.entries[id]
	if !ok || e.latest.ID == "" {
		return domain.Result{}, false
	}
	return e.latest.Clone(), true
}

func (h *statusHub) Subscribe(id string) (<-chan domain.Result, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan domain.Result, subscriberBuffer)
	e, ok := h.entries[id]
	if !ok {
		e = &hubEntry{subs: map[int]chan domain.Result{}, updatedAt: h.now()}
		h.entries[id] = e
	}
	if e.latest.ID != "" {
		ch <- e.latest.Clone()
		if e.latest.State.IsTerminal() {
			close(ch)
			return ch, func() {}
		}
	}

	subID := h.nextSub
	h.nextSub++
	e.subs[subID] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if e, ok := h.entries[id]; ok {
				if c, ok := e.subs[subID]; ok {
					close(c)
					delete(e.subs, subID)
				}
			}
		})
	}
}

// evictLocked drops terminal entries, and idle entries nobody published to,
// once they are older than the retention window.
func (h *statusHub) evictLocked(now time.Time) {
	for id, e := range h.entries {
		if now.Sub(e.updatedAt) < h.retention {
			continue
		}
		if e.latest.ID != "" && !e.latest.State.IsTerminal() {
			continue
		}
		for _, c := range e.subs {
			close(c)
		}
		delete(h.entries, id)
	}
}
