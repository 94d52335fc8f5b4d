package hub

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/bepaste/internal/history"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	h := New()
	var a, b []Event
	h.Subscribe("a", func(ev Event) error { a = append(a, ev); return nil })
	h.Subscribe("b", func(ev Event) error { b = append(b, ev); return nil })

	entries := []history.Entry{{ID: 1, Kind: history.KindText, Payload: "x"}}
	failed := h.Publish(Event{Reason: ReasonCapture, Entries: entries})

	assert.Zero(t, failed)
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, entries, a[0].Entries)
	assert.Equal(t, ReasonCapture, b[0].Reason)
}

func TestFailingSubscribersAreIsolated(t *testing.T) {
	h := New()
	var order []string
	h.Subscribe("errors", func(Event) error { order = append(order, "errors"); return errors.New("boom") })
	h.Subscribe("panics", func(Event) error { order = append(order, "panics"); panic("bad subscriber") })
	h.Subscribe("healthy", func(Event) error { order = append(order, "healthy"); return nil })

	var failed int
	assert.NotPanics(t, func() { failed = h.Publish(Event{Reason: ReasonClear}) })
	assert.Equal(t, 2, failed)
	assert.Equal(t, []string{"errors", "panics", "healthy"}, order)
}

func TestCancelRemovesSubscriber(t *testing.T) {
	h := New()
	calls := 0
	cancel := h.Subscribe("once", func(Event) error { calls++; return nil })
	h.Publish(Event{})
	cancel()
	cancel()
	h.Publish(Event{})

	assert.Equal(t, 1, calls)
	assert.Zero(t, h.Len())
}

func TestSubscribersGetIndependentCopies(t *testing.T) {
	h := New()
	var seen string
	h.Subscribe("mutator", func(ev Event) error { ev.Entries[0].Payload = "changed"; return nil })
	h.Subscribe("reader", func(ev Event) error { seen = ev.Entries[0].Payload; return nil })

	entries := []history.Entry{{ID: 1, Payload: "original"}}
	h.Publish(Event{Entries: entries})
	assert.Equal(t, "original", seen)
	assert.Equal(t, "original", entries[0].Payload)
}

func TestPublishWithNoSubscribers(t *testing.T) {
	assert.Zero(t, New().Publish(Event{Reason: ReasonCapture}))
}
