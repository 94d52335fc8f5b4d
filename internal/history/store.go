package history

import (
	"strings"
	"sync"
	"time"
)

const (
	// DefaultCapacity is used when no capacity is configured.
	DefaultCapacity = 500
	// MaxCapacity bounds configured capacities.
	MaxCapacity = 100000
)

// Persister receives the full ordered entry list after every mutation.
type Persister interface {
	Persist(entries []Entry) error
}

// Store is the ledger. All reads and writes go through its mutex, so a
// concurrent All never observes a half-applied mutation.
type Store struct {
	mu       sync.RWMutex
	saveMu   sync.Mutex // orders persists to match mutation order
	entries  []Entry // index 0 = most recent
	capacity int
	lastID   int64
	persist  Persister
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// ValidateCapacity returns a *ConfigError for capacities outside 1..MaxCapacity.
func ValidateCapacity(n int) error {
	if n < 1 || n > MaxCapacity {
		return &ConfigError{Reason: "capacity must be between 1 and 100000"}
	}
	return nil
}

// New returns an empty Store. An invalid capacity falls back to
// DefaultCapacity; p may be nil for an in-memory ledger.
func New(capacity int, p Persister, opts ...Option) *Store {
	if ValidateCapacity(capacity) != nil {
		capacity = DefaultCapacity
	}
	s := &Store{capacity: capacity, persist: p, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load replaces the ledger with entries (head first) without persisting.
// Entries are expected to be deduplicated; excess beyond capacity is dropped.
func (s *Store) Load(entries []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(entries) > s.capacity {
		entries = entries[:s.capacity]
	}
	s.entries = append([]Entry(nil), entries...)
	for _, e := range s.entries {
		if e.ID > s.lastID {
			s.lastID = e.ID
		}
	}
}

// Insert records a capture. Existing content moves to the head keeping its id
// with a refreshed timestamp; new content gets a fresh id. The returned entry
// is always the new head. A non-nil error is a *PersistenceError; the
// in-memory insert has happened regardless.
func (s *Store) Insert(kind Kind, payload string) (Entry, error) {
	s.mu.Lock()
	now := s.now()
	head := Entry{Kind: kind, Payload: payload, CapturedAt: now}

	if i := s.indexLocked(kind, payload); i >= 0 {
		head.ID = s.entries[i].ID
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
	} else {
		head.ID = s.nextIDLocked(now)
	}

	s.entries = append(s.entries, Entry{})
	copy(s.entries[1:], s.entries)
	s.entries[0] = head
	if len(s.entries) > s.capacity {
		s.entries = s.entries[:s.capacity]
	}
	return head, s.commitLocked("insert")
}

// All returns a copy of the ledger, head to tail.
func (s *Store) All() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Search returns entries whose text contains query, ignoring case. An empty
// query returns everything; images never match a non-empty query.
func (s *Store) Search(query string) []Entry {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return s.All()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if e.Kind == KindText && strings.Contains(strings.ToLower(e.Payload), query) {
			out = append(out, e)
		}
	}
	return out
}

// Get looks an entry up by id.
func (s *Store) Get(id int64) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, &NotFoundError{ID: id}
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Capacity returns the current bound.
func (s *Store) Capacity() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capacity
}

// Clear empties the ledger and persists the empty state.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.entries = nil
	return s.commitLocked("clear")
}

// SetCapacity changes the bound, dropping tail entries that no longer fit.
// It returns how many entries were evicted.
func (s *Store) SetCapacity(n int) (int, error) {
	if err := ValidateCapacity(n); err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.capacity = n
	evicted := 0
	if len(s.entries) > n {
		evicted = len(s.entries) - n
		s.entries = s.entries[:n]
	}
	if evicted == 0 {
		s.mu.Unlock()
		return 0, nil
	}
	return evicted, s.commitLocked("resize")
}

// commitLocked snapshots the ledger, releases s.mu and persists the snapshot.
// saveMu is taken before s.mu is released so persists land in mutation order.
func (s *Store) commitLocked(op string) error {
	snap := s.snapshotLocked()
	s.saveMu.Lock()
	s.mu.Unlock()
	defer s.saveMu.Unlock()

	if s.persist == nil {
		return nil
	}
	if err := s.persist.Persist(snap); err != nil {
		return &PersistenceError{Op: op, Err: err}
	}
	return nil
}

func (s *Store) indexLocked(kind Kind, payload string) int {
	for i, e := range s.entries {
		if e.Same(kind, payload) {
			return i
		}
	}
	return -1
}

// nextIDLocked returns a millisecond-timestamp id, bumped past the last one
// handed out so ids stay strictly increasing under bursts and clock steps.
func (s *Store) nextIDLocked(now time.Time) int64 {
	id := now.UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

func (s *Store) snapshotLocked() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
