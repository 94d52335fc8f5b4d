package detect

import (
	"errors"
	"sync"
	"time"
)

const (
	// DefaultInterval is the sampling period used when none is configured.
	DefaultInterval = time.Second
	// MinInterval bounds how fast the clipboard may be sampled.
	MinInterval = 100 * time.Millisecond
)

// ErrRunning is returned by Start when the poller is already running.
var ErrRunning = errors.New("poller already running")

// Poller runs a function on a fixed interval until stopped. Ticks never
// overlap; a tick that overruns delays the next one instead of queueing.
type Poller struct {
	mu       sync.Mutex
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	reset    chan time.Duration
}

// NewPoller returns a stopped Poller. Intervals below MinInterval are raised.
func NewPoller(interval time.Duration) *Poller {
	return &Poller{interval: clampInterval(interval)}
}

func clampInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultInterval
	}
	if d < MinInterval {
		return MinInterval
	}
	return d
}

// Start begins calling tick every interval on a new goroutine.
func (p *Poller) Start(tick func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return ErrRunning
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	p.reset = make(chan time.Duration, 1)
	go p.run(p.interval, tick, p.stop, p.done, p.reset)
	return nil
}

// Stop halts the poller and waits for an in-flight tick to finish. It is a
// no-op when the poller is not running.
func (p *Poller) Stop() {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done, p.reset = nil, nil, nil
	p.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Running reports whether the poller is started.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop != nil
}

// Interval returns the configured period.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// SetInterval changes the period, taking effect on a running poller at once.
func (p *Poller) SetInterval(d time.Duration) {
	d = clampInterval(d)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interval = d
	if p.reset != nil {
		select {
		case <-p.reset:
		default:
		}
		p.reset <- d
	}
}

func (p *Poller) run(interval time.Duration, tick func(), stop, done chan struct{}, reset chan time.Duration) {
	defer close(done)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case d := <-reset:
			t.Reset(d)
		case <-t.C:
			// Re-check stop so a tick racing with Stop does not run.
			select {
			case <-stop:
				return
			default:
			}
			tick()
		}
	}
}
