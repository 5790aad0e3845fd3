package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestIsImageFile(t *testing.T) {
	assert.True(t, IsImageFile("a/b/c.PNG"))
	assert.True(t, IsImageFile("x.webp"))
	assert.False(t, IsImageFile("x.tfrecord"))
	assert.False(t, IsImageFile("noext"))
}

func TestPairImageFiles(t *testing.T) {
	root := t.TempDir()
	hr := filepath.Join(root, "hr")
	lr := filepath.Join(root, "lr")

	touch(t, filepath.Join(hr, "0001.png"))
	touch(t, filepath.Join(hr, "0002.png"))
	touch(t, filepath.Join(hr, "sub", "0003.png"))
	touch(t, filepath.Join(hr, "orphan.png"))
	touch(t, filepath.Join(lr, "0001x4.png"))
	touch(t, filepath.Join(lr, "0002.jpg"))
	touch(t, filepath.Join(lr, "sub", "0003.png"))
	touch(t, filepath.Join(lr, "extra.png"))
	touch(t, filepath.Join(lr, "notes.txt"))

	pairs, unmatched, err := PairImageFiles(hr, lr)
	require.NoError(t, err)
	require.Len(t, pairs, 3)

	assert.Equal(t, "0001", pairs[0].Name)
	assert.Equal(t, filepath.Join(lr, "0001x4.png"), pairs[0].LowRes)
	assert.Equal(t, "0002", pairs[1].Name)
	assert.Equal(t, filepath.Join(lr, "0002.jpg"), pairs[1].LowRes)
	assert.Equal(t, "sub/0003", pairs[2].Name)

	assert.ElementsMatch(t, []string{filepath.Join(hr, "orphan.png"), filepath.Join(lr, "extra.png")}, unmatched)
}

func TestPairImageFilesMissingDir(t *testing.T) {
	_, _, err := PairImageFiles(filepath.Join(t.TempDir(), "nope"), t.TempDir())
	assert.Error(t, err)
}

func TestPairImageFilesRejectsFile(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "0001.png")
	touch(t, f)

	_, _, err := PairImageFiles(dir, f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestPairKey(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "data", "hr")
	assert.Equal(t, "sub/0001", pairKey(root, filepath.Join(root, "sub", "0001.png")))
	assert.Equal(t, "0002", pairKey(root, filepath.Join("shots.v1", "0002.png")))
}

func TestGenerateOutputFilename(t *testing.T) {
	got := GenerateOutputFilename("sub/0003", "out", "b0_", "_hr", "")
	assert.Equal(t, filepath.Join("out", "b0_sub_0003_hr.png"), got)
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatFileSize(512))
	assert.Equal(t, "1.5 KB", FormatFileSize(1536))
	assert.Equal(t, "2.0 MB", FormatFileSize(2*1024*1024))
}

func TestFileAndDirExists(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "f.png")
	touch(t, f)

	assert.True(t, FileExists(f))
	assert.False(t, FileExists(dir))
	assert.True(t, DirExists(dir))
	assert.False(t, DirExists(f))
	assert.Equal(t, "0001", BaseName("/a/b/0001.png"))

	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, EnsureDir(nested))
	assert.True(t, DirExists(nested))
}
