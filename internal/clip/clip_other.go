//go:build !darwin && !windows && !linux

package clip

import "errors"

// New returns a no-op backend suitable for headless containers.
func New() Backend {
	return &headlessBackend{reason: errors.New("unsupported platform")}
}
