// Package output handles writing exported files to disk. Paths arrive
// already resolved relative to the output root; the writer only creates
// parent directories and puts bytes on disk.
package output

import (
	"fmt"
	"os"
	"path/filepath"
)

// Writer writes exported pages and attachments under one output root.
type Writer struct {
	OutputDir string
}

// New creates a Writer targeting the given output directory.
// If outputDir is empty, it defaults to the current working directory.
func New(outputDir string) (*Writer, error) {
	if outputDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		outputDir = wd
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	return &Writer{OutputDir: outputDir}, nil
}

// Write stores data at the given root-relative path, creating parent
// directories as needed. Returns the absolute path written.
func (w *Writer) Write(relPath string, data []byte) (string, error) {
	fullPath := filepath.Join(w.OutputDir, filepath.FromSlash(relPath))

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", dir, err)
	}

	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing file %s: %w", fullPath, err)
	}
	return fullPath, nil
}

// Exists reports whether a file already exists at the root-relative path.
// Attachment export checks this before downloading, making re-runs cheap.
func (w *Writer) Exists(relPath string) bool {
	_, err := os.Stat(filepath.Join(w.OutputDir, filepath.FromSlash(relPath)))
	return err == nil
}
