// Package scan discovers files under a directory root and derives the
// base metadata the indexing pipeline works from.
package scan

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// systemFiles are OS artifacts excluded from every scan. Names are
// compared lowercase; the icon variants carry stray control characters
// as written by some platforms.
var systemFiles = map[string]bool{
	"thumbs.db":   true,
	"desktop.ini": true,
	".ds_store":   true,
	"icon\r":      true,
	"icon\n":      true,
	"icon\r\n":    true,
}

// tempExtensions are editor and transfer leftovers excluded from scans.
var tempExtensions = map[string]bool{
	".tmp": true, ".temp": true, ".bak": true, ".swp": true, ".swo": true,
}

// Scan enumerates files under root, recursively when asked, applying
// the skip rules and a maxFiles ceiling. The returned bool reports
// whether the ceiling cut the enumeration short. Per-file failures are
// skipped individually; only a missing or non-directory root is an
// error, which callers surface (there is no partial result to return).
func Scan(root string, recursive bool, maxFiles int, ocr OCRFunc, logger *slog.Logger) ([]FileMeta, bool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, false, err
	}
	if !info.IsDir() {
		return nil, false, &fs.PathError{Op: "scan", Path: root, Err: fs.ErrInvalid}
	}

	var files []FileMeta
	truncated := false

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries, keep walking
		}
		if d.IsDir() {
			if !recursive && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if len(files) >= maxFiles {
			truncated = true
			return filepath.SkipAll
		}
		if ShouldSkip(d.Name()) {
			return nil
		}
		files = append(files, Metadata(path, ocr))
		return nil
	})
	if err != nil {
		return nil, truncated, err
	}

	if truncated {
		logger.Warn("scan reached file ceiling", "root", root, "max_files", maxFiles)
	}
	return files, truncated, nil
}

// ShouldSkip reports whether a file name is excluded from indexing:
// hidden files, OS artifacts, and temporary files.
func ShouldSkip(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	if systemFiles[strings.ToLower(name)] {
		return true
	}
	return tempExtensions[strings.ToLower(filepath.Ext(name))]
}

// DirectoryStats summarizes a directory tree without indexing it.
type DirectoryStats struct {
	TotalFiles int
	TotalDirs  int
	TotalSize  int64
}

// Stats walks root and counts files, directories, and bytes.
func Stats(root string) (DirectoryStats, error) {
	var st DirectoryStats
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root {
				st.TotalDirs++
			}
			return nil
		}
		st.TotalFiles++
		if info, err := d.Info(); err == nil {
			st.TotalSize += info.Size()
		}
		return nil
	})
	return st, err
}
