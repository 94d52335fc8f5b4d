package kvstore

import (
	"log/slog"
	"math"
	"sync"
)

// Backend is the synchronous store Async writes through to.
type Backend interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
}

// Async is a write-behind wrapper. Set records the latest value per key and
// returns immediately; a single goroutine writes pending values through.
// Repeated Sets of one key before it is written collapse into one write.
// Get sees pending values, so callers read their own writes.
type Async struct {
	b Backend

	mu      sync.Mutex
	pending map[string][]byte
	order   []string
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	idle    *sync.Cond
	writing bool
	// inflight is the value being written, visible to Get until it lands.
	inflightKey string
	inflight    []byte

	// OnError, if set, is called from the writer goroutine for failed writes.
	OnError func(key string, err error)
}

// NewAsync starts the writer goroutine. Call Close to flush and stop it.
func NewAsync(b Backend) *Async {
	a := &Async{
		b:       b,
		pending: make(map[string][]byte),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	a.idle = sync.NewCond(&a.mu)
	go a.run()
	return a
}

// Get returns a pending value if one exists, otherwise reads through.
func (a *Async) Get(key string) ([]byte, bool, error) {
	a.mu.Lock()
	if v, ok := a.pending[key]; ok {
		a.mu.Unlock()
		return v, true, nil
	}
	if a.writing && a.inflightKey == key {
		v := a.inflight
		a.mu.Unlock()
		return v, true, nil
	}
	a.mu.Unlock()
	return a.b.Get(key)
}

// Budget reports the backend's budget for key, less the queued values of other
// keys. Those are counted on top of what they replace, so the figure errs low.
// A backend without a ceiling yields math.MaxInt64.
func (a *Async) Budget(key string) (int64, error) {
	b, ok := a.b.(interface{ Budget(string) (int64, error) })
	if !ok {
		return math.MaxInt64, nil
	}
	n, err := b.Budget(key)
	if err != nil {
		return 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for k, v := range a.pending {
		if k != key {
			n -= int64(len(v))
		}
	}
	if a.writing && a.inflightKey != key {
		n -= int64(len(a.inflight))
	}
	return n, nil
}

// Set queues value for key. After Close it writes synchronously.
func (a *Async) Set(key string, value []byte) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return a.b.Set(key, value)
	}
	if _, ok := a.pending[key]; !ok {
		a.order = append(a.order, key)
	}
	a.pending[key] = value
	select {
	case a.wake <- struct{}{}:
	default:
	}
	a.mu.Unlock()
	return nil
}

// Flush blocks until every value queued before the call has been written.
func (a *Async) Flush() {
	a.mu.Lock()
	for len(a.pending) > 0 || a.writing {
		a.idle.Wait()
	}
	a.mu.Unlock()
}

// Close flushes pending writes and stops the writer goroutine.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()
	close(a.wake)
	<-a.done
}

func (a *Async) run() {
	defer close(a.done)
	for range a.wake {
		a.drain()
	}
	a.drain()
}

func (a *Async) drain() {
	for {
		a.mu.Lock()
		if len(a.order) == 0 {
			a.writing = false
			a.inflightKey, a.inflight = "", nil
			a.idle.Broadcast()
			a.mu.Unlock()
			return
		}
		key := a.order[0]
		a.order = a.order[1:]
		value := a.pending[key]
		delete(a.pending, key)
		a.writing = true
		a.inflightKey, a.inflight = key, value
		a.mu.Unlock()

		if err := a.b.Set(key, value); err != nil {
			if a.OnError != nil {
				a.OnError(key, err)
			} else {
				slog.Error("persist failed", "key", key, "err", err)
			}
		}
	}
}
