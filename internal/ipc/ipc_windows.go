//go:build windows

package ipc

import "os"

// Windows 10 and later support AF_UNIX sockets; the per-user temp directory
// keeps them private to the account.
func socketDir() string {
	if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
		return dir
	}
	return os.TempDir()
}

func restrict(string) error { return nil }
