// Package scanner walks a DICOM folder tree and folds its files into a
// catalog, enforcing the grouping invariants of the selected mode.
package scanner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gobwas/glob"
)

// ErrNotADirectory means the scan root is missing or not a directory. It is
// raised before any scan work begins.
var ErrNotADirectory = errors.New("not a directory")

// CompileIgnore compiles ignore patterns for discovery. Patterns match
// slash-separated paths relative to the scan root.
func CompileIgnore(patterns []string) ([]glob.Glob, error) {
	var out []glob.Glob
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// Discover enumerates all regular files under root, recursively, as sorted
// slash-separated paths relative to root. Traversal order carries no meaning
// for grouping, but the sort makes discovery order deterministic for
// everything downstream that exposes it.
func Discover(root string, ignore []glob.Glob) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, root)
	}

	var files []string
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}
		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)
		for _, g := range ignore {
			if g.Match(relPath) {
				return nil
			}
		}
		files = append(files, relPath)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}
