// Package message defines the bepaste wire shapes.
//
// Every message is a plain Go struct carried as JSON, both on the gRPC
// surface (through the "json" codec) and on the HTTP routes. History entries
// travel as {id, type, content, timestamp}, the same record shape the
// history ledger is persisted in.
package message

import (
	"fmt"
	"time"

	"go.klb.dev/bepaste/internal/history"
)

// Entry is a single history entry on the wire.
type Entry struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"` // "text" or "image"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// FromEntry converts a history entry to its wire form.
func FromEntry(e history.Entry) Entry {
	return Entry{
		ID:        e.ID,
		Type:      e.Kind.String(),
		Content:   e.Payload,
		Timestamp: e.CapturedAt.UTC(),
	}
}

// FromEntries converts a history snapshot, preserving order.
func FromEntries(es []history.Entry) []Entry {
	out := make([]Entry, len(es))
	for i, e := range es {
		out[i] = FromEntry(e)
	}
	return out
}

// ToEntry converts a wire entry back into a history entry.
func (m Entry) ToEntry() (history.Entry, error) {
	k, err := history.ParseKind(m.Type)
	if err != nil {
		return history.Entry{}, fmt.Errorf("entry %d: %w", m.ID, err)
	}
	return history.Entry{ID: m.ID, Kind: k, Payload: m.Content, CapturedAt: m.Timestamp}, nil
}

// GetHistoryRequest asks for the history, optionally filtered by a
// case-insensitive text query. Limit <= 0 means no limit.
type GetHistoryRequest struct {
	Query string `json:"query,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

type GetHistoryResponse struct {
	Entries  []Entry `json:"entries"`
	Capacity int     `json:"capacity"`
}

type ClearHistoryRequest struct{}

type ClearHistoryResponse struct{}

type CopyToClipboardRequest struct {
	ID int64 `json:"id"`
}

type CopyToClipboardResponse struct {
	Entry Entry `json:"entry"`
}

// WatchRequest opens a stream of history-changed events. When Initial is set
// the current history is sent before any change.
type WatchRequest struct {
	Initial bool `json:"initial,omitempty"`
}

// WatchResponse carries the full history after a change, and why it changed.
type WatchResponse struct {
	Reason  string  `json:"reason"`
	Entries []Entry `json:"entries"`
}

type GetShortcutRequest struct{}

type SetShortcutRequest struct {
	Shortcut string `json:"shortcut"`
}

type ShortcutResponse struct {
	Shortcut string `json:"shortcut"`
}
