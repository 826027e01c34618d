package filesystem_test

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/ferrydl/ferry/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandbox_Open(t *testing.T) {
	uploads := t.TempDir()
	content := t.TempDir()
	outside := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(uploads, "2024"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(uploads, "2024", "a.txt"), []byte("upload"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(content, "b.txt"), []byte("content"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("secret"), 0o644))

	sandbox, err := filesystem.NewSandbox(uploads, "", content, uploads)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sandbox.Close() })

	assert.Len(t, sandbox.Dirs(), 2)

	t.Run("file in first root", func(t *testing.T) {
		f, err := sandbox.Open(filepath.Join(uploads, "2024", "a.txt"))
		require.NoError(t, err)
		defer f.Close()

		data, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "upload", string(data))
	})

	t.Run("file in second root", func(t *testing.T) {
		f, err := sandbox.Open(filepath.Join(content, "b.txt"))
		require.NoError(t, err)
		_ = f.Close()
	})

	t.Run("path outside roots", func(t *testing.T) {
		_, err := sandbox.Open(filepath.Join(outside, "secret.txt"))
		assert.ErrorIs(t, err, fs.ErrPermission)
	})

	t.Run("traversal out of a root", func(t *testing.T) {
		_, err := sandbox.Open(uploads + "/../" + filepath.Base(outside) + "/secret.txt")
		assert.Error(t, err)
	})

	t.Run("relative path", func(t *testing.T) {
		_, err := sandbox.Open("2024/a.txt")
		assert.ErrorIs(t, err, fs.ErrInvalid)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := sandbox.Open(filepath.Join(uploads, "missing.txt"))
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("symlink escaping a root", func(t *testing.T) {
		link := filepath.Join(uploads, "escape.txt")
		if err := os.Symlink(filepath.Join(outside, "secret.txt"), link); err != nil {
			t.Skipf("symlinks unsupported: %v", err)
		}

		_, err := sandbox.Open(link)
		assert.Error(t, err)
	})
}

func TestNewSandbox_MissingDir(t *testing.T) {
	_, err := filesystem.NewSandbox(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
