package scanner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const maxFileSize = 10 * 1024 * 1024

// IndicatorScanner scans a file or directory tree for file hashes
type IndicatorScanner struct {
	root string
}

// NewIndicatorScanner creates a new indicator scanner rooted at path
func NewIndicatorScanner(path string) *IndicatorScanner {
	return &IndicatorScanner{
		root: path,
	}
}

// Scan returns every distinct hash found, in walk order. A hash seen in
// several places is reported at its first location.
func (s *IndicatorScanner) Scan(ctx context.Context) ([]Indicator, error) {
	var all []Indicator
	seen := make(map[string]bool)

	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		// Skip hidden directories, but never the root itself
		if info.IsDir() {
			if path != s.root && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if path != s.root && strings.HasPrefix(info.Name(), ".") {
			return nil
		}

		if info.Size() > maxFileSize || !isText(path) {
			return nil
		}

		found, err := s.scanFile(path)
		if err != nil {
			slog.Debug("Skipping unreadable file", "path", path, "error", err)
			return nil
		}

		for _, ind := range found {
			if !seen[ind.Hash] {
				all = append(all, ind)
				seen[ind.Hash] = true
			}
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return all, nil
}

// scanFile scans a single file based on its extension
func (s *IndicatorScanner) scanFile(filePath string) ([]Indicator, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".yaml", ".yml":
		return scanYAML(filePath)
	default:
		return scanText(filePath)
	}
}

// isText reports whether the file content sniffs as some kind of text
func isText(path string) bool {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return false
	}
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
