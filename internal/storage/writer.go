package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// CassetteWriter persists encoded cassette documents under a base directory.
type CassetteWriter struct {
	baseDir string
}

func NewCassetteWriter(baseDir string) *CassetteWriter {
	return &CassetteWriter{baseDir: baseDir}
}

// Write saves cassette bytes for the given capture URL, creating parent
// directories as needed and overwriting any previous file. The returned path
// is where the cassette landed. Write errors propagate to the caller; a
// capture that cannot persist its result has failed.
func (w *CassetteWriter) Write(rawURL string, data []byte) (string, error) {
	path, err := CassettePath(w.baseDir, rawURL)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create cassette dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write cassette: %w", err)
	}
	slog.Debug("cassette written", "path", path, "size", len(data))
	return path, nil
}

// Read loads cassette bytes from a path, for round-trip verification.
func (w *CassetteWriter) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cassette: %w", err)
	}
	return data, nil
}
