package hub

import (
	"context"
	"log/slog"

	"github.com/dustin/go-humanize"

	"go.klb.dev/bepaste/internal/history"
)

// LogEntry logs a history entry at INFO (event, id, kind, size) and, at
// DEBUG, a text preview of up to 120 characters.
func LogEntry(event string, e history.Entry) {
	slog.Info(event, "id", e.ID, "kind", e.Kind.String(), "size", humanize.Bytes(uint64(len(e.Payload))))

	if e.Kind != history.KindText || !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	preview := []rune(e.Payload)
	if len(preview) > 120 {
		preview = append(preview[:120], '…')
	}
	slog.Debug("clipboard text", "id", e.ID, "preview", string(preview))
}
