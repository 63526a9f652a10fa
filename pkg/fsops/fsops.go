// Package fsops is the injected filesystem-service boundary. The pipeline
// core decides what to copy, move or delete; this service executes it.
package fsops

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Service performs the filesystem operations the pipeline hands off.
type Service interface {
	// CopyIfNewer copies src to dst unless dst exists with an equal or newer
	// modification time. Reports whether a copy happened.
	CopyIfNewer(src, dst string) (bool, error)

	// MoveTree moves every file under src into dst, creating directories as
	// needed and removing the source files.
	MoveTree(src, dst string) error

	// DeleteTree removes a directory tree. Missing trees are not an error.
	DeleteTree(path string) error

	// PruneEmptyDirs removes empty leaf directories under root, repeatedly,
	// and returns the pruned paths.
	PruneEmptyDirs(root string) ([]string, error)
}

type osService struct{}

// New returns the default operating-system-backed service.
func New() Service {
	return osService{}
}

func (osService) CopyIfNewer(src, dst string) (bool, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, err
	}
	if dstInfo, err := os.Stat(dst); err == nil {
		if !dstInfo.ModTime().Before(srcInfo.ModTime()) {
			return false, nil
		}
	} else if !os.IsNotExist(err) {
		return false, err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, err
	}

	in, err := os.Open(src) //nolint:gosec // Dataset-derived path
	if err != nil {
		return false, err
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(dst) //nolint:gosec // Dataset-derived path
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck,gosec
		return false, fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return false, err
	}

	return true, os.Chtimes(dst, srcInfo.ModTime(), srcInfo.ModTime())
}

func (s osService) MoveTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.Rename(path, target); err == nil {
			return nil
		}
		// Cross-device rename fallback
		if _, err := s.CopyIfNewer(path, target); err != nil {
			return err
		}
		return os.Remove(path)
	})
}

func (osService) DeleteTree(path string) error {
	return os.RemoveAll(path)
}

func (osService) PruneEmptyDirs(root string) ([]string, error) {
	var pruned []string
	for {
		var empty []string
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() || path == root {
				return nil
			}
			entries, err := os.ReadDir(path)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				empty = append(empty, path)
			}
			return nil
		})
		if err != nil {
			return pruned, err
		}
		if len(empty) == 0 {
			return pruned, nil
		}

		// Remove deepest first so parents become prunable on the next pass.
		sort.Slice(empty, func(i, j int) bool { return len(empty[i]) > len(empty[j]) })
		for _, dir := range empty {
			if err := os.Remove(dir); err != nil {
				return pruned, err
			}
			pruned = append(pruned, dir)
		}
	}
}
