// Package ipc locates and opens the local socket the bepaste daemon serves
// its gRPC History service on. CLI commands try it first and fall back to
// the daemon's TCP listener when it is absent.
package ipc

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

const socketName = "bepaste.sock"

// ErrRunning is returned by Listen when another daemon owns the socket.
var ErrRunning = errors.New("ipc: a bepaste daemon is already listening")

// SocketPath returns the IPC socket path. $BEPASTE_SOCKET overrides the
// platform default.
func SocketPath() string {
	if s := os.Getenv("BEPASTE_SOCKET"); s != "" {
		return s
	}
	return filepath.Join(socketDir(), socketName)
}

// IsRunning reports whether a daemon appears to be listening on the socket.
// It does a cheap dial-and-close; no data is exchanged.
func IsRunning() bool {
	c, err := net.DialTimeout("unix", SocketPath(), time.Second)
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates the IPC socket, removing a stale socket file left by a
// crashed run. It refuses to take over a socket a live daemon still answers on.
func Listen() (net.Listener, error) {
	path := SocketPath()
	if IsRunning() {
		return nil, fmt.Errorf("%w (%s)", ErrRunning, path)
	}
	_ = os.Remove(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ipc: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("ipc: listen %s: %w", path, err)
	}
	if err := restrict(path); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("ipc: %w", err)
	}
	return ln, nil
}

// Target returns the gRPC dial target for the socket.
func Target() string {
	return "unix://" + SocketPath()
}
