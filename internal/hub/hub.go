// Package hub fans "history changed" events out to subscribers.
// It is transport-agnostic: the UI bridge, the gRPC Watch stream and tests
// all subscribe the same way.
package hub

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.klb.dev/bepaste/internal/history"
)

// Reason says which mutation produced an event.
type Reason string

const (
	ReasonCapture Reason = "capture"
	ReasonClear   Reason = "clear"
	ReasonResize  Reason = "resize"
	ReasonLoad    Reason = "load"
)

// Event carries the full ordered history after a mutation.
type Event struct {
	Reason  Reason
	Entries []history.Entry
}

// Handler receives events. A returned error or a panic is logged and does
// not affect delivery to other handlers.
type Handler func(Event) error

type subscriber struct {
	id      uint64
	name    string
	handler Handler
}

// Hub routes history events to all registered subscribers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]subscriber
	nextID uint64
}

// New returns an empty Hub.
func New() *Hub {
	return &Hub{subs: make(map[uint64]subscriber)}
}

// Subscribe registers h under name (used in logs) and returns a function
// that removes it. The cancel function is safe to call more than once.
func (h *Hub) Subscribe(name string, fn Handler) (cancel func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = subscriber{id: id, name: name, handler: fn}
	total := len(h.subs)
	h.mu.Unlock()

	slog.Debug("subscriber registered", "subscriber", name, "total", total)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			total := len(h.subs)
			h.mu.Unlock()
			slog.Debug("subscriber removed", "subscriber", name, "total", total)
		})
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish delivers ev to every subscriber synchronously, in registration
// order. It returns the number of handlers that failed.
func (h *Hub) Publish(ev Event) int {
	h.mu.RLock()
	targets := make([]subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		targets = append(targets, s)
	}
	h.mu.RUnlock()
	sort.Slice(targets, func(i, j int) bool { return targets[i].id < targets[j].id })

	failed := 0
	for _, s := range targets {
		// Each handler gets its own copy so one cannot mutate another's view.
		own := Event{Reason: ev.Reason, Entries: append([]history.Entry(nil), ev.Entries...)}
		if err := deliver(s, own); err != nil {
			failed++
			slog.Error("subscriber failed", "subscriber", s.name, "reason", ev.Reason, "err", err)
		}
	}
	return failed
}

func deliver(s subscriber, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.handler(ev)
}
