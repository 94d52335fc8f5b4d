// Package engine composes the clipboard accessor, detector, history store
// and notification hub into the object external collaborators drive.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"go.klb.dev/bepaste/internal/classify"
	"go.klb.dev/bepaste/internal/clip"
	"go.klb.dev/bepaste/internal/detect"
	"go.klb.dev/bepaste/internal/history"
	"go.klb.dev/bepaste/internal/hub"
)

const (
	// ShortcutKey is the storage key of the hotkey setting.
	ShortcutKey = "shortcut"
	// DefaultShortcut is the hotkey used until one is configured.
	DefaultShortcut = "CommandOrControl+Option+C"
)

// Config holds the engine's tunables.
type Config struct {
	Capacity int
	Interval time.Duration
	// Classifier overrides file-reference resolution; nil uses the local disk.
	Classifier *classify.Classifier
	// Clock overrides the store's time source; nil uses time.Now.
	Clock func() time.Time
}

// Engine owns the history and the polling task. All mutations (poll ticks,
// copy-back, clear, resize) are serialised on one mutex; reads go straight
// to the store, which is safe for concurrent use.
type Engine struct {
	backend  clip.Backend
	kv       history.KV
	store    *history.Store
	detector *detect.Detector
	poller   *detect.Poller
	hub      *hub.Hub

	mu        sync.Mutex // serialises mutations
	publishMu sync.Mutex // keeps events in mutation order
	loaded    bool
}

// New builds an engine. kv may be nil, in which case history lives in
// memory only. Nothing runs until Start.
func New(backend clip.Backend, kv history.KV, cfg Config) *Engine {
	if err := history.ValidateCapacity(cfg.Capacity); err != nil && cfg.Capacity != 0 {
		slog.Warn("invalid capacity, using default", "capacity", cfg.Capacity, "default", history.DefaultCapacity, "err", err)
	}
	var opts []history.Option
	if cfg.Clock != nil {
		opts = append(opts, history.WithClock(cfg.Clock))
	}
	var p history.Persister
	if kv != nil {
		p = history.KVPersister{KV: kv}
	}
	return &Engine{
		backend:  backend,
		kv:       kv,
		store:    history.New(cfg.Capacity, p, opts...),
		detector: detect.New(backend, cfg.Classifier),
		poller:   detect.NewPoller(cfg.Interval),
		hub:      hub.New(),
	}
}

// Start loads the persisted history (first start only), adopts the current
// clipboard content as already seen, and begins polling.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.poller.Running() {
		e.mu.Unlock()
		return detect.ErrRunning
	}
	if !e.loaded {
		e.load()
		e.loaded = true
	}
	if err := e.detector.Reset(); err != nil {
		slog.Warn("could not read clipboard at start", "err", err)
	}
	e.publishLocked(hub.ReasonLoad)

	if err := e.poller.Start(e.tick); err != nil {
		return err
	}
	slog.Info("clipboard polling started",
		"backend", e.backend.Name(),
		"interval", e.poller.Interval(),
		"capacity", e.store.Capacity(),
		"entries", e.store.Len(),
	)
	return nil
}

func (e *Engine) load() {
	if e.kv == nil {
		return
	}
	entries, err := history.LoadFrom(e.kv, e.store.Capacity())
	if err != nil {
		var ce *history.ConfigError
		if errors.As(err, &ce) {
			slog.Warn("persisted history unusable, starting empty", "err", err)
		} else {
			slog.Error("loading history failed, starting empty", "err", err)
		}
		return
	}
	e.store.Load(entries)
}

// Stop halts polling and waits for an in-flight tick. Pending persistence is
// flushed when the store supports it.
func (e *Engine) Stop() {
	e.poller.Stop()
	if f, ok := e.kv.(interface{ Flush() }); ok {
		f.Flush()
	}
	slog.Info("clipboard polling stopped")
}

// Running reports whether polling is active.
func (e *Engine) Running() bool { return e.poller.Running() }

// PollOnce runs one detection cycle synchronously. The poller calls it on
// every tick; it is exported for deterministic callers.
func (e *Engine) PollOnce() (history.Entry, bool) {
	return e.poll()
}

func (e *Engine) tick() { e.poll() }

func (e *Engine) poll() (history.Entry, bool) {
	e.mu.Lock()
	cp, ok, err := e.detector.Observe()
	if err != nil {
		e.mu.Unlock()
		slog.Debug("clipboard read failed, skipping cycle", "err", err)
		return history.Entry{}, false
	}
	if !ok {
		e.mu.Unlock()
		return history.Entry{}, false
	}
	if !e.fitsLocked(cp.Kind, cp.Payload) {
		e.mu.Unlock()
		return history.Entry{}, false
	}
	entry, err := e.store.Insert(cp.Kind, cp.Payload)
	if err != nil {
		slog.Error("history not persisted", "err", err)
	}
	hub.LogEntry("clipboard captured", entry)
	e.publishLocked(hub.ReasonCapture)
	return entry, true
}

// fitsLocked rejects a capture that could never be persisted on its own.
func (e *Engine) fitsLocked(kind history.Kind, payload string) bool {
	if e.kv == nil {
		return true
	}
	ok, err := history.KVPersister{KV: e.kv}.Fits(history.Entry{ID: 1, Kind: kind, Payload: payload, CapturedAt: time.Now()})
	if err != nil {
		slog.Warn("could not check store ceiling", "err", err)
		return true
	}
	if !ok {
		slog.Warn("clipboard capture larger than store ceiling, skipped",
			"kind", kind, "size", humanize.IBytes(uint64(len(payload))))
	}
	return ok
}

// publishLocked snapshots the store and fans it out. It must be called with
// e.mu held and releases it; publishMu is taken first so events go out in
// the order their mutations happened.
func (e *Engine) publishLocked(reason hub.Reason) {
	entries := e.store.All()
	e.publishMu.Lock()
	e.mu.Unlock()
	defer e.publishMu.Unlock()
	e.hub.Publish(hub.Event{Reason: reason, Entries: entries})
}

// History returns the full history, most recent first.
func (e *Engine) History() []history.Entry { return e.store.All() }

// Search returns entries whose text contains query, ignoring case.
func (e *Engine) Search(query string) []history.Entry { return e.store.Search(query) }

// Capacity returns the current history bound.
func (e *Engine) Capacity() int { return e.store.Capacity() }

// Subscribe registers fn for history-changed events. Handlers run
// synchronously after each mutation and must not call mutating Engine
// methods themselves.
func (e *Engine) Subscribe(name string, fn hub.Handler) (cancel func()) {
	return e.hub.Subscribe(name, fn)
}

// CopyBack writes the entry with id to the clipboard and marks it as seen so
// the next poll does not capture it again. It fails with *history.NotFoundError
// for unknown ids and *clip.AccessorError when the clipboard rejects the write.
func (e *Engine) CopyBack(id int64) (history.Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, err := e.store.Get(id)
	if err != nil {
		return history.Entry{}, err
	}

	switch entry.Kind {
	case history.KindText:
		if err := e.backend.WriteText(entry.Payload); err != nil {
			return entry, err
		}
		e.detector.Mark(classify.Capture{Kind: history.KindText, Payload: entry.Payload})
	case history.KindImage:
		_, data, err := classify.DecodeDataURI(entry.Payload)
		if err != nil {
			return entry, &classify.DecodeError{Err: fmt.Errorf("entry %d: %w", id, err)}
		}
		png, err := classify.ToPNG(data)
		if err != nil {
			return entry, &classify.DecodeError{Err: fmt.Errorf("entry %d: %w", id, err)}
		}
		if err := e.backend.WriteImage(png); err != nil {
			return entry, err
		}
		// The poller will see the PNG we wrote, which may differ from the
		// stored payload when the entry came from a JPEG or GIF file.
		e.detector.Mark(classify.Capture{Kind: history.KindImage, Payload: classify.EncodeDataURI("image/png", png)})
	default:
		return entry, fmt.Errorf("entry %d has unknown kind %v", id, entry.Kind)
	}

	hub.LogEntry("clipboard restored", entry)
	return entry, nil
}

// ClearAll empties the history and re-baselines the detector on the current
// clipboard content, so what is on the clipboard now is not captured again.
// A non-nil error is a *history.PersistenceError; the history is empty in
// memory either way and subscribers are notified.
func (e *Engine) ClearAll() error {
	e.mu.Lock()
	err := e.store.Clear()
	if err != nil {
		slog.Error("cleared history not persisted", "err", err)
	}
	if rerr := e.detector.Reset(); rerr != nil {
		slog.Warn("could not re-baseline clipboard after clear", "err", rerr)
	}
	slog.Info("clipboard history cleared")
	e.publishLocked(hub.ReasonClear)
	return err
}

// SetCapacity changes the history bound, evicting from the tail.
func (e *Engine) SetCapacity(n int) error {
	e.mu.Lock()
	evicted, err := e.store.SetCapacity(n)
	var ce *history.ConfigError
	if errors.As(err, &ce) {
		e.mu.Unlock()
		return err
	}
	slog.Info("history capacity changed", "capacity", n, "evicted", evicted)
	if evicted == 0 {
		e.mu.Unlock()
		return err
	}
	e.publishLocked(hub.ReasonResize)
	return err
}

// SetInterval changes the polling period.
func (e *Engine) SetInterval(d time.Duration) {
	e.poller.SetInterval(d)
	slog.Info("poll interval changed", "interval", e.poller.Interval())
}

// Shortcut returns the stored hotkey, or DefaultShortcut.
func (e *Engine) Shortcut() string {
	if e.kv == nil {
		return DefaultShortcut
	}
	v, ok, err := e.kv.Get(ShortcutKey)
	if err != nil {
		slog.Warn("reading shortcut failed", "err", err)
	}
	if !ok || strings.TrimSpace(string(v)) == "" {
		return DefaultShortcut
	}
	return string(v)
}

// SetShortcut stores the hotkey the presentation layer should register.
func (e *Engine) SetShortcut(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return &history.ConfigError{Reason: "shortcut must not be empty"}
	}
	if e.kv == nil {
		return &history.PersistenceError{Op: "shortcut", Err: errors.New("no durable store configured")}
	}
	if err := e.kv.Set(ShortcutKey, []byte(s)); err != nil {
		return &history.PersistenceError{Op: "shortcut", Err: err}
	}
	slog.Info("shortcut updated", "shortcut", s)
	return nil
}
