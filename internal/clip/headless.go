package clip

// headlessBackend is a no-op clipboard backend for environments without a
// display server (headless Linux servers, containers, etc.).
// Reads return an empty snapshot; writes fail so copy-back reports the problem.
type headlessBackend struct {
	reason error
}

func (b *headlessBackend) Name() string            { return "headless (no-op)" }
func (b *headlessBackend) Read() (Snapshot, error) { return Snapshot{}, nil }
func (b *headlessBackend) WriteText(string) error {
	return &AccessorError{Op: "write text", Err: b.reason}
}
func (b *headlessBackend) WriteImage([]byte) error {
	return &AccessorError{Op: "write image", Err: b.reason}
}
func (b *headlessBackend) Close() {}
