package clip

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURIList(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"single file", "file:///tmp/a.png", []string{"file:///tmp/a.png"}},
		{"crlf and comment", "# copied\r\nfile:///tmp/a.png\r\nfile:///tmp/b.jpg\r\n", []string{"file:///tmp/a.png", "file:///tmp/b.jpg"}},
		{"plain text", "hello world", nil},
		{"mixed", "file:///tmp/a.png\nnot a uri", nil},
		{"http url", "https://example.com/a.png", nil},
		{"empty", "", nil},
		{"gnome files copy", "x-special/nautilus-clipboard\ncopy\nfile:///home/u/shot.png\n", []string{"file:///home/u/shot.png"}},
		{"gnome files cut", "x-special/nautilus-clipboard\ncut\nfile:///home/u/a.png\nfile:///home/u/b.png", []string{"file:///home/u/a.png", "file:///home/u/b.png"}},
		{"gnome header only", "x-special/nautilus-clipboard\ncopy\n", nil},
		{"absolute paths", "/home/u/a.png\n/tmp/b.gif", []string{"/home/u/a.png", "/tmp/b.gif"}},
		{"windows path", `C:\Users\u\a.png`, []string{`C:\Users\u\a.png`}},
		{"relative path", "docs/a.png", nil},
		{"sentence with slash", "/usr/bin is a directory\nsee above", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseURIList(tc.text))
		})
	}
}

func TestSnapshotRecognisesGnomeFileCopy(t *testing.T) {
	s := snapshotOf([]byte("x-special/nautilus-clipboard\ncopy\nfile:///home/u/shot.png\n"), nil)
	assert.Equal(t, []string{FormatURIList, FormatText}, s.Formats)
	assert.Equal(t, []string{"file:///home/u/shot.png"}, s.URIs)
}

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()

	require.NoError(t, m.WriteText("hello"))
	s, err := m.Read()
	require.NoError(t, err)
	assert.Equal(t, "hello", s.Text)
	assert.Equal(t, []string{FormatText}, s.Formats)

	require.NoError(t, m.WriteImage([]byte{1, 2, 3}))
	s, err = m.Read()
	require.NoError(t, err)
	assert.Empty(t, s.Text)
	assert.Equal(t, []byte{1, 2, 3}, s.Image)
	assert.True(t, s.Has(FormatImage))
	assert.False(t, s.Has(FormatText))
}

func TestMemorySetFiles(t *testing.T) {
	m := NewMemory()
	m.SetFiles("file:///tmp/shot.png")

	s, err := m.Read()
	require.NoError(t, err)
	assert.Equal(t, FormatURIList, s.Formats[0])
	assert.Equal(t, []string{"file:///tmp/shot.png"}, s.URIs)
}

func TestMemoryInjectedFailures(t *testing.T) {
	m := NewMemory()
	m.FailReads(true)
	m.FailWrites(true)

	_, err := m.Read()
	var ae *AccessorError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "read", ae.Op)
	assert.ErrorIs(t, err, ErrInjected)

	assert.Error(t, m.WriteText("x"))
	assert.Error(t, m.WriteImage([]byte{1}))
	assert.Equal(t, 1, m.Reads())
}

func TestHeadlessWritesFail(t *testing.T) {
	b := &headlessBackend{reason: errors.New("no display")}
	s, err := b.Read()
	require.NoError(t, err)
	assert.Empty(t, s.Formats)
	assert.Error(t, b.WriteText("x"))
}
