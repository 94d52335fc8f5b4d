package history

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// StorageKey is the key the ledger is persisted under.
const StorageKey = "clipboardHistory"

// SchemaVersion is the persisted envelope version written by Encode.
const SchemaVersion = 1

// record is the persisted form of an Entry.
type record struct {
	ID        int64     `json:"id" jsonschema:"minimum=1"`
	Type      string    `json:"type" jsonschema:"enum=text,enum=image"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// envelope is the canonical versioned document stored under StorageKey.
type envelope struct {
	Version int      `json:"version" jsonschema:"minimum=1"`
	Entries []record `json:"entries"`
}

// Encode serialises entries into the current envelope.
func Encode(entries []Entry) ([]byte, error) {
	env := envelope{Version: SchemaVersion, Entries: make([]record, 0, len(entries))}
	for _, e := range entries {
		env.Entries = append(env.Entries, record{
			ID:        e.ID,
			Type:      e.Kind.String(),
			Content:   e.Payload,
			Timestamp: e.CapturedAt.UTC(),
		})
	}
	return json.Marshal(env)
}

// Decoded is the result of Decode.
type Decoded struct {
	Entries []Entry
	// Migrated is true when the input was not already a current envelope, or
	// needed normalising (duplicates, excess entries, bad records dropped).
	Migrated bool
}

// Decode parses a persisted ledger. It accepts the current envelope as well
// as the legacy bare array whose items are either plain strings or
// {id,text,timestamp} / {id,type,content,timestamp} objects. Duplicates
// collapse onto their first (newest) occurrence and the result is cut to
// capacity. Unusable input yields a *ConfigError.
func Decode(raw []byte, capacity int) (Decoded, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Decoded{}, nil
	}

	var (
		recs     []json.RawMessage
		migrated bool
	)
	switch raw[0] {
	case '{':
		if err := validateEnvelope(raw); err != nil {
			return Decoded{}, &ConfigError{Reason: "persisted history", Err: err}
		}
		var env struct {
			Version int               `json:"version"`
			Entries []json.RawMessage `json:"entries"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return Decoded{}, &ConfigError{Reason: "persisted history", Err: err}
		}
		if env.Version > SchemaVersion {
			return Decoded{}, &ConfigError{Reason: fmt.Sprintf("persisted history version %d is newer than %d", env.Version, SchemaVersion)}
		}
		recs = env.Entries
	case '[':
		if err := json.Unmarshal(raw, &recs); err != nil {
			return Decoded{}, &ConfigError{Reason: "legacy history", Err: err}
		}
		migrated = true
	default:
		return Decoded{}, &ConfigError{Reason: "persisted history is neither an object nor an array"}
	}

	base := time.Now().UTC()
	out := make([]Entry, 0, len(recs))
	var lastID int64
	seen := make(map[int64]bool, len(recs))
	for i, r := range recs {
		e, ok := migrateRecord(r, base.Add(-time.Duration(i)*time.Millisecond))
		if !ok {
			slog.Warn("dropping unreadable history record", "index", i)
			migrated = true
			continue
		}
		if containsSame(out, e) {
			migrated = true
			continue
		}
		if seen[e.ID] {
			e.ID = 0
		}
		if e.ID <= 0 {
			migrated = true
		} else {
			seen[e.ID] = true
		}
		if e.ID > lastID {
			lastID = e.ID
		}
		out = append(out, e)
	}
	// Records without a usable or unique id get fresh ones past the largest seen.
	for i := range out {
		if out[i].ID <= 0 {
			lastID++
			out[i].ID = lastID
		}
	}
	if ValidateCapacity(capacity) == nil && len(out) > capacity {
		out = out[:capacity]
		migrated = true
	}
	return Decoded{Entries: out, Migrated: migrated}, nil
}

// legacyRecord covers every object shape the ledger has been stored as.
type legacyRecord struct {
	ID        json.Number `json:"id"`
	Type      string      `json:"type"`
	Content   *string     `json:"content"`
	Text      *string     `json:"text"`
	Timestamp string      `json:"timestamp"`
}

func migrateRecord(raw json.RawMessage, fallback time.Time) (Entry, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Entry{}, false
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil || strings.TrimSpace(text) == "" {
			return Entry{}, false
		}
		return Entry{Kind: KindText, Payload: text, CapturedAt: fallback}, true
	}

	var lr legacyRecord
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&lr); err != nil {
		return Entry{}, false
	}

	e := Entry{Kind: KindText, CapturedAt: fallback}
	switch {
	case lr.Content != nil:
		e.Payload = *lr.Content
	case lr.Text != nil:
		e.Payload = *lr.Text
	default:
		return Entry{}, false
	}
	if lr.Type != "" {
		k, err := ParseKind(lr.Type)
		if err != nil {
			return Entry{}, false
		}
		e.Kind = k
	}
	if e.Kind == KindImage && !strings.HasPrefix(e.Payload, "data:image/") {
		return Entry{}, false
	}
	if e.Kind == KindText && strings.TrimSpace(e.Payload) == "" {
		return Entry{}, false
	}
	if id, err := lr.ID.Int64(); err == nil {
		e.ID = id
	} else if f, err := lr.ID.Float64(); err == nil {
		e.ID = int64(f)
	}
	if lr.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, lr.Timestamp); err == nil {
			e.CapturedAt = ts
		}
	}
	return e, true
}

func containsSame(entries []Entry, e Entry) bool {
	for _, x := range entries {
		if x.Same(e.Kind, e.Payload) {
			return true
		}
	}
	return false
}
