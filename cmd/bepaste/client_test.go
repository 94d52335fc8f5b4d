package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/bepaste/internal/classify"
	"go.klb.dev/bepaste/internal/message"
)

func TestPreview(t *testing.T) {
	tests := []struct {
		name string
		in   message.Entry
		want string
	}{
		{"short text", message.Entry{Type: "text", Content: "hello"}, "hello"},
		{"whitespace folded", message.Entry{Type: "text", Content: "a\n\tb   c"}, "a b c"},
		{"truncated", message.Entry{Type: "text", Content: "abcdefghij"}, "abcd…"},
		{"image", message.Entry{Type: "image", Content: classify.EncodeDataURI("image/png", make([]byte, 2048))}, "[image/png 2.0 kB]"},
		{"bad image", message.Entry{Type: "image", Content: "nope"}, "[image: undecodable]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, preview(tt.in, 5))
		})
	}
}

func TestDefaultDBPath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	assert.Equal(t, filepath.Join("/data", "bepaste", "bepaste.db"), defaultDBPath())
}

func TestOpenBackend(t *testing.T) {
	b, err := openBackend("memory")
	require.NoError(t, err)
	assert.Equal(t, "memory", b.Name())

	_, err = openBackend("x11")
	assert.Error(t, err)
}

func TestDialOpts(t *testing.T) {
	opts, err := dialOpts("")
	require.NoError(t, err)
	assert.Len(t, opts, 1)

	opts, err = dialOpts("tok")
	require.NoError(t, err)
	assert.Len(t, opts, 2)
}
