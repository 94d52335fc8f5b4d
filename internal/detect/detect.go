// Package detect decides whether the clipboard holds a new logical change
// since the last observation, and drives the periodic sampling.
package detect

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"go.klb.dev/bepaste/internal/classify"
	"go.klb.dev/bepaste/internal/clip"
	"go.klb.dev/bepaste/internal/history"
)

// Detector tracks independent text and image baselines.
type Detector struct {
	backend    clip.Backend
	classifier *classify.Classifier

	mu              sync.Mutex
	lastText        string
	lastImageDigest string
}

// New returns a Detector with empty baselines. Call Reset before the first
// Observe so pre-existing clipboard content is not captured.
func New(backend clip.Backend, c *classify.Classifier) *Detector {
	if c == nil {
		c = classify.New()
	}
	return &Detector{backend: backend, classifier: c}
}

// Digest identifies image content for baseline comparison.
func Digest(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Observe samples the clipboard once. It returns ok=true with the capture
// when the content differs from the baseline of its kind, updating that
// baseline. A read failure is returned as the backend's *clip.AccessorError
// and leaves the baselines untouched.
func (d *Detector) Observe() (c classify.Capture, ok bool, err error) {
	snap, err := d.backend.Read()
	if err != nil {
		return classify.Capture{}, false, err
	}
	cp, found, _ := d.classifier.Classify(snap)
	if !found {
		return classify.Capture{}, false, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	switch cp.Kind {
	case history.KindImage:
		digest := Digest(cp.Payload)
		if digest == d.lastImageDigest {
			return classify.Capture{}, false, nil
		}
		d.lastImageDigest = digest
		return cp, true, nil
	case history.KindText:
		if cp.Payload == d.lastText || strings.TrimSpace(cp.Payload) == "" {
			return classify.Capture{}, false, nil
		}
		d.lastText = cp.Payload
		return cp, true, nil
	default:
		return classify.Capture{}, false, nil
	}
}

// Reset re-baselines from the clipboard's current content, so whatever is on
// the clipboard right now is treated as already seen.
func (d *Detector) Reset() error {
	snap, err := d.backend.Read()
	if err != nil {
		return err
	}
	cp, found, _ := d.classifier.Classify(snap)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastText = snap.Text
	d.lastImageDigest = ""
	if found && cp.Kind == history.KindImage {
		d.lastImageDigest = Digest(cp.Payload)
	}
	return nil
}

// Mark records content the engine itself just wrote, so the next Observe
// does not report it as a change.
func (d *Detector) Mark(c classify.Capture) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch c.Kind {
	case history.KindText:
		d.lastText = c.Payload
	case history.KindImage:
		d.lastImageDigest = Digest(c.Payload)
	}
}

// Baselines returns the current text baseline and image digest.
func (d *Detector) Baselines() (text, imageDigest string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastText, d.lastImageDigest
}
