//go:build darwin || windows || linux

package clip

import (
	"errors"
	"log/slog"

	"golang.design/x/clipboard"
)

type systemBackend struct{}

// New returns the platform clipboard backend, or a headless no-op backend if
// the display environment is unavailable (e.g. a headless server without X11
// or Wayland). clipboard.Init is called here rather than in init() so that
// CLI sub-commands that only talk to the daemon don't trigger the warning.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, running headless", "err", err)
		return &headlessBackend{reason: err}
	}
	return &systemBackend{}
}

func (b *systemBackend) Name() string { return "system clipboard (golang.design/x/clipboard)" }

func (b *systemBackend) Read() (s Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &AccessorError{Op: "read", Err: errors.New("backend panic")}
			slog.Debug("clipboard read panicked", "recovered", r)
		}
	}()
	text := clipboard.Read(clipboard.FmtText)
	img := clipboard.Read(clipboard.FmtImage)
	return snapshotOf(text, img), nil
}

func (b *systemBackend) WriteText(text string) error {
	return b.write("write text", clipboard.FmtText, []byte(text))
}

func (b *systemBackend) WriteImage(png []byte) error {
	return b.write("write image", clipboard.FmtImage, png)
}

func (b *systemBackend) write(op string, f clipboard.Format, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &AccessorError{Op: op, Err: errors.New("backend panic")}
		}
	}()
	changed := clipboard.Write(f, data)
	if changed == nil {
		return &AccessorError{Op: op, Err: errors.New("write rejected")}
	}
	// The returned channel fires when another program takes ownership; the
	// write itself completed synchronously, so there is nothing to wait for.
	return nil
}

func (b *systemBackend) Close() {}
