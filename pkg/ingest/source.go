package ingest

import (
	"fmt"
	"os"
	"path/filepath"
)

// Locate returns the most recently modified file in dir matching the glob
// pattern. The mailbox collaborator drops dated attachments into dir, so the
// newest match is the current export.
func Locate(dir, pattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", fmt.Errorf("globbing %q: %w", pattern, err)
	}

	var (
		newest string
		mtime  int64
	)

	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}

		if ts := info.ModTime().UnixNano(); newest == "" || ts > mtime {
			newest = m
			mtime = ts
		}
	}

	if newest == "" {
		return "", fmt.Errorf("%w: no file matching %q in %s",
			ErrSourceUnreadable, pattern, dir)
	}

	return newest, nil
}

// Resolve returns path when set, otherwise the newest file in dir matching
// pattern.
func Resolve(path, dir, pattern string) (string, error) {
	if path != "" || pattern == "" {
		return path, nil
	}

	return Locate(dir, pattern)
}
