// Package history holds the clipboard ledger: an ordered, deduplicated,
// capacity-bounded list of captured entries, most recent first.
package history

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the closed set of entry variants.
type Kind int

const (
	KindText Kind = iota + 1
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the declared variants.
func (k Kind) Valid() bool { return k == KindText || k == KindImage }

// ParseKind converts the persisted/wire name back into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "text":
		return KindText, nil
	case "image":
		return KindImage, nil
	default:
		return 0, fmt.Errorf("unknown entry kind %q", s)
	}
}

// Entry is one stored clipboard capture.
//
// For KindText, Payload is the raw text. For KindImage it is a data URI
// ("data:image/png;base64,...") carrying the full image bytes.
type Entry struct {
	ID         int64
	Kind       Kind
	Payload    string
	CapturedAt time.Time
}

// Same reports structural identity: equal kind and payload. IDs are ignored.
func (e Entry) Same(kind Kind, payload string) bool {
	return e.Kind == kind && e.Payload == payload
}
