// Package clip provides a unified interface to the system clipboard across
// platforms. Build constraints select the appropriate implementation:
//
//	clip_system.go: macOS, Windows and Linux via golang.design/x/clipboard
//	clip_other.go:  headless / unsupported platform stub
//
// Change detection is not done here; callers sample Read on their own cadence.
package clip

import (
	"fmt"
	"net/url"
	"strings"
)

// MIME-style names for the representations a Snapshot can carry.
const (
	FormatText    = "text/plain"
	FormatImage   = "image/png"
	FormatURIList = "text/uri-list"
)

// Snapshot is one sample of the clipboard.
type Snapshot struct {
	// Formats lists the representations currently offered, highest fidelity first.
	Formats []string
	Text    string
	// Image holds encoded image bytes (PNG on every supported platform), or nil.
	Image []byte
	// URIs holds the file references when FormatURIList is offered.
	URIs []string
}

// Has reports whether format is among the snapshot's available formats.
func (s Snapshot) Has(format string) bool {
	for _, f := range s.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// Backend is the interface that all platform clipboard implementations satisfy.
// Every call may fail with *AccessorError.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// Read returns the current clipboard contents.
	Read() (Snapshot, error)

	// WriteText places text on the clipboard.
	WriteText(text string) error

	// WriteImage places PNG-encoded image bytes on the clipboard.
	WriteImage(png []byte) error

	// Close releases any resources held by the backend.
	Close()
}

// AccessorError reports a clipboard call the OS (or the backend) refused.
type AccessorError struct {
	Op  string
	Err error
}

func (e *AccessorError) Error() string { return fmt.Sprintf("clipboard %s: %v", e.Op, e.Err) }
func (e *AccessorError) Unwrap() error { return e.Err }

// nautilusHeader opens the text GNOME Files puts on the clipboard for a file
// copy; the next line is the verb ("copy" or "cut").
const nautilusHeader = "x-special/nautilus-clipboard"

// ParseURIList extracts file references from clipboard text. It returns nil
// unless every non-comment line is a file:// URI or an absolute path, which is
// how file managers populate the text representation when files are copied.
// The GNOME Files header and verb line are skipped.
func ParseURIList(text string) []string {
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && strings.TrimSpace(lines[0]) == nautilusHeader {
		lines = lines[1:]
		if len(lines) > 0 {
			switch strings.TrimSpace(lines[0]) {
			case "copy", "cut":
				lines = lines[1:]
			}
		}
	}

	var out []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if isAbsPath(line) {
			out = append(out, line)
			continue
		}
		u, err := url.Parse(line)
		if err != nil || u.Scheme != "file" {
			return nil
		}
		out = append(out, line)
	}
	return out
}

// isAbsPath accepts POSIX paths and Windows drive paths regardless of the
// host OS, since the text may have come from either.
func isAbsPath(s string) bool {
	if strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "//") {
		return true
	}
	return len(s) > 2 && s[1] == ':' && (s[2] == '\\' || s[2] == '/') &&
		(s[0] >= 'A' && s[0] <= 'Z' || s[0] >= 'a' && s[0] <= 'z')
}

// snapshotOf builds a Snapshot from the raw text and image reads.
func snapshotOf(text, img []byte) Snapshot {
	var s Snapshot
	if len(text) > 0 {
		s.Text = string(text)
		if uris := ParseURIList(s.Text); len(uris) > 0 {
			s.URIs = uris
			s.Formats = append(s.Formats, FormatURIList)
		}
	}
	if len(img) > 0 {
		s.Image = img
		s.Formats = append(s.Formats, FormatImage)
	}
	if s.Text != "" {
		s.Formats = append(s.Formats, FormatText)
	}
	return s
}
