package fsops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestCopyIfNewer(t *testing.T) {
	fs := New()
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "staged", "dst.txt")

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	writeFile(t, src, "v1", base)

	copied, err := fs.CopyIfNewer(src, dst)
	require.NoError(t, err)
	assert.True(t, copied)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))

	// Re-copy with an unchanged source is a no-op.
	copied, err = fs.CopyIfNewer(src, dst)
	require.NoError(t, err)
	assert.False(t, copied)

	// A newer source overwrites.
	writeFile(t, src, "v2", base.Add(time.Hour))
	copied, err = fs.CopyIfNewer(src, dst)
	require.NoError(t, err)
	assert.True(t, copied)

	data, err = os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestCopyIfNewerPreservesModTime(t *testing.T) {
	fs := New()
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")

	mtime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	writeFile(t, src, "v1", mtime)

	_, err := fs.CopyIfNewer(src, dst)
	require.NoError(t, err)

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(mtime))
}

func TestMoveTree(t *testing.T) {
	fs := New()
	dir := t.TempDir()
	src := filepath.Join(dir, "stage")
	dst := filepath.Join(dir, "checked")

	now := time.Now()
	writeFile(t, filepath.Join(src, "a.txt"), "a", now)
	writeFile(t, filepath.Join(src, "nested", "b.txt"), "b", now)

	require.NoError(t, fs.MoveTree(src, dst))

	data, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))

	data, err = os.ReadFile(filepath.Join(dst, "nested", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))

	_, err = os.Stat(filepath.Join(src, "a.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestMoveTreeSingleFile(t *testing.T) {
	fs := New()
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "moved", "a.txt")

	writeFile(t, src, "a", time.Now())
	require.NoError(t, fs.MoveTree(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))

	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}

func TestDeleteTree(t *testing.T) {
	fs := New()
	dir := t.TempDir()
	target := filepath.Join(dir, "gone")
	writeFile(t, filepath.Join(target, "a.txt"), "a", time.Now())

	require.NoError(t, fs.DeleteTree(target))
	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err))

	// Deleting an absent tree is not an error.
	require.NoError(t, fs.DeleteTree(target))
}

func TestPruneEmptyDirs(t *testing.T) {
	fs := New()
	root := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "s1_r1", "visit_data", "sub-1"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "s1_r1", "eeg", "sub-2"), 0o755))
	writeFile(t, filepath.Join(root, "s1_r1", "eeg", "sub-2", "keep.txt"), "x", time.Now())

	pruned, err := fs.PruneEmptyDirs(root)
	require.NoError(t, err)

	// The empty chain is removed bottom-up; the occupied chain survives.
	assert.Contains(t, pruned, filepath.Join(root, "s1_r1", "visit_data", "sub-1"))
	assert.Contains(t, pruned, filepath.Join(root, "s1_r1", "visit_data"))
	_, err = os.Stat(filepath.Join(root, "s1_r1", "visit_data"))
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(root, "s1_r1", "eeg", "sub-2", "keep.txt"))
	require.NoError(t, err)

	// The root itself is never pruned.
	_, err = os.Stat(root)
	require.NoError(t, err)
}
