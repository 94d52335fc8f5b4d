package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/bepaste/internal/ipc"
)

func TestSecondDaemonLeavesDatabaseAlone(t *testing.T) {
	dir, err := filepath.Abs(t.TempDir())
	require.NoError(t, err)
	t.Setenv("BEPASTE_SOCKET", filepath.Join(dir, "d.sock"))

	ln, err := ipc.Listen()
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()

	dbPath := filepath.Join(dir, "data", "bepaste.db")
	v := viper.New()
	v.Set("backend", "memory")
	v.Set("db", dbPath)
	v.Set("capacity", 10)

	err = runDaemon(v)
	assert.ErrorIs(t, err, ipc.ErrRunning)
	_, statErr := os.Stat(filepath.Dir(dbPath))
	assert.True(t, os.IsNotExist(statErr), "database directory must not be created")
}
