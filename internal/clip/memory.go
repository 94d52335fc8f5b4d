package clip

import (
	"errors"
	"strings"
	"sync"
)

// ErrInjected is returned by a Memory backend whose failure switch is set.
var ErrInjected = errors.New("injected failure")

// Memory is an in-process clipboard. It backs tests and the daemon's
// --backend=memory mode on machines without a display.
type Memory struct {
	mu        sync.Mutex
	text      string
	image     []byte
	uris      []string
	failRead  bool
	failWrite bool
	reads     int
}

// NewMemory returns an empty in-memory clipboard.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Read() (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.failRead {
		return Snapshot{}, &AccessorError{Op: "read", Err: ErrInjected}
	}
	s := snapshotOf([]byte(m.text), m.image)
	if len(m.uris) > 0 && !s.Has(FormatURIList) {
		s.URIs = append([]string(nil), m.uris...)
		s.Formats = append([]string{FormatURIList}, s.Formats...)
	}
	return s, nil
}

func (m *Memory) WriteText(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return &AccessorError{Op: "write text", Err: ErrInjected}
	}
	m.text, m.image, m.uris = text, nil, nil
	return nil
}

func (m *Memory) WriteImage(png []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return &AccessorError{Op: "write image", Err: ErrInjected}
	}
	m.text, m.image, m.uris = "", append([]byte(nil), png...), nil
	return nil
}

// SetFiles simulates a file-manager copy: the URIs are offered as a file
// reference list and the text representation carries them newline-joined.
func (m *Memory) SetFiles(uris ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text, m.image = strings.Join(uris, "\n"), nil
	m.uris = append([]string(nil), uris...)
}

// FailReads toggles injected read failures.
func (m *Memory) FailReads(fail bool) {
	m.mu.Lock()
	m.failRead = fail
	m.mu.Unlock()
}

// FailWrites toggles injected write failures.
func (m *Memory) FailWrites(fail bool) {
	m.mu.Lock()
	m.failWrite = fail
	m.mu.Unlock()
}

// Reads returns how many times Read has been called.
func (m *Memory) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

func (m *Memory) Close() {}
