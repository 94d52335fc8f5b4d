package history

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
)

// KV is the durable key-value store the ledger is kept in.
type KV interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
}

// Budgeted is implemented by stores with a size ceiling. Budget is the most
// bytes key may hold.
type Budgeted interface {
	Budget(key string) (int64, error)
}

// KVPersister writes the ledger under StorageKey on every mutation.
type KVPersister struct {
	KV KV
}

// Persist implements Persister. When the store has a ceiling and the whole
// ledger does not fit, the longest head-first prefix that does is written, so
// the newest entries always reach disk.
func (p KVPersister) Persist(entries []Entry) error {
	raw, err := Encode(entries)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if b, ok := p.KV.(Budgeted); ok {
		budget, err := b.Budget(StorageKey)
		if err != nil {
			return fmt.Errorf("budget: %w", err)
		}
		if int64(len(raw)) > budget {
			var kept int
			kept, raw, err = fitPrefix(entries, budget)
			if err != nil {
				return fmt.Errorf("encode: %w", err)
			}
			slog.Warn("history exceeds store ceiling, oldest entries kept in memory only",
				"kept", kept, "omitted", len(entries)-kept,
				"limit", humanize.IBytes(uint64(max(budget, 0))))
		}
	}
	return p.KV.Set(StorageKey, raw)
}

// Fits reports whether e alone can be persisted within the store's ceiling.
// Stores without a ceiling fit everything.
func (p KVPersister) Fits(e Entry) (bool, error) {
	b, ok := p.KV.(Budgeted)
	if !ok {
		return true, nil
	}
	budget, err := b.Budget(StorageKey)
	if err != nil {
		return false, fmt.Errorf("budget: %w", err)
	}
	raw, err := Encode([]Entry{e})
	if err != nil {
		return false, fmt.Errorf("encode: %w", err)
	}
	return int64(len(raw)) <= budget, nil
}

// fitPrefix returns the length and encoding of the longest head-first prefix
// of entries whose encoding is at most budget bytes. entries itself is known
// not to fit.
func fitPrefix(entries []Entry, budget int64) (int, []byte, error) {
	best, err := Encode(nil)
	if err != nil {
		return 0, nil, err
	}
	lo, hi := 0, len(entries)
	for lo+1 < hi {
		mid := (lo + hi) / 2
		raw, err := Encode(entries[:mid])
		if err != nil {
			return 0, nil, err
		}
		if int64(len(raw)) <= budget {
			lo, best = mid, raw
		} else {
			hi = mid
		}
	}
	return lo, best, nil
}

// LoadFrom reads the ledger stored in kv. A missing key yields an empty
// history. Legacy or unnormalised data is migrated and written back once.
// Unusable data is reported as *ConfigError and the caller should start empty.
func LoadFrom(kv KV, capacity int) ([]Entry, error) {
	raw, ok, err := kv.Get(StorageKey)
	if err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	if !ok {
		return nil, nil
	}
	d, err := Decode(raw, capacity)
	if err != nil {
		return nil, err
	}
	if d.Migrated {
		slog.Info("migrated persisted history", "entries", len(d.Entries), "version", SchemaVersion)
		if err := (KVPersister{KV: kv}).Persist(d.Entries); err != nil {
			slog.Warn("writing migrated history failed", "err", err)
		}
	}
	return d.Entries, nil
}
