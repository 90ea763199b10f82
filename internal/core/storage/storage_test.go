package storage

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/guiyumin/mediagrab/internal/core/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestEnsureCreatesRoot(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "a", "b"))
	require.NoError(t, err)
	require.NoError(t, s.Ensure())

	info, err := os.Stat(s.Root())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLocate(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "My Clip-abc.mp4"), []byte("data"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "100% Real-abc.mp4"), []byte("data"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(s.Root(), "sub"), 0755))

	tests := []struct {
		name string
		file string
		want string
		kind fault.Kind
	}{
		{name: "plain name", file: "My Clip-abc.mp4", want: "My Clip-abc.mp4"},
		{name: "literal percent", file: "100% Real-abc.mp4", want: "100% Real-abc.mp4"},
		{name: "no second decode", file: "My%20Clip-abc.mp4", kind: fault.KindNotFound},
		{name: "missing", file: "nope.mp4", kind: fault.KindNotFound},
		{name: "directory", file: "sub", kind: fault.KindNotFound},
		{name: "empty", file: "", kind: fault.KindInvalidInput},
		{name: "nul byte", file: "a\x00.mp4", kind: fault.KindInvalidInput},
		{name: "traversal", file: "../../etc/passwd", kind: fault.KindAccessDenied},
		{name: "root itself", file: ".", kind: fault.KindAccessDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := s.Locate(tt.file)
			if tt.kind == "" {
				require.NoError(t, err)
				assert.Equal(t, filepath.Join(s.Root(), tt.want), path)
				return
			}
			assert.Equal(t, tt.kind, fault.KindOf(err))
			assert.Empty(t, path)
		})
	}
}

func TestLocateRejectsSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	outside := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0644))

	s := newStore(t)
	require.NoError(t, os.Symlink(outside, filepath.Join(s.Root(), "link.txt")))

	_, err := s.Locate("link.txt")
	assert.Equal(t, fault.KindAccessDenied, fault.KindOf(err))
}

func TestOpen(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "clip.mp4"), []byte("video bytes"), 0644))

	f, info, err := s.Open("clip.mp4")
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, int64(11), info.Size())
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "video bytes", string(data))

	_, _, err = s.Open("../clip.mp4")
	assert.Equal(t, fault.KindAccessDenied, fault.KindOf(err))
}
