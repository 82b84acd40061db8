package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestCassetteWriter(t *testing.T) {
	t.Run("creates_parent_directories", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "nested", "vcr_cassettes")
		w := NewCassetteWriter(base)

		path, err := w.Write("https://shop.example.com/item", []byte("data"))
		if err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected file at %q: %v", path, err)
		}
	})

	t.Run("overwrites_previous_capture", func(t *testing.T) {
		w := NewCassetteWriter(t.TempDir())

		first, err := w.Write("https://example.com/", []byte("old"))
		if err != nil {
			t.Fatalf("write: %v", err)
		}
		second, err := w.Write("https://example.com/", []byte("new"))
		if err != nil {
			t.Fatalf("write: %v", err)
		}
		if first != second {
			t.Fatalf("expected same path for same url")
		}
		data, err := w.Read(second)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !bytes.Equal(data, []byte("new")) {
			t.Fatalf("expected overwrite, got %q", data)
		}
	})

	t.Run("write_failure_propagates", func(t *testing.T) {
		dir := t.TempDir()
		// Occupy the host directory slot with a file so MkdirAll fails.
		if err := os.WriteFile(filepath.Join(dir, "example_com"), nil, 0o644); err != nil {
			t.Fatalf("setup: %v", err)
		}
		w := NewCassetteWriter(dir)
		if _, err := w.Write("https://example.com/", []byte("x")); err == nil {
			t.Fatalf("expected write error")
		}
	})

	t.Run("invalid_url_is_rejected", func(t *testing.T) {
		w := NewCassetteWriter(t.TempDir())
		if _, err := w.Write("no host here", []byte("x")); err == nil {
			t.Fatalf("expected error for hostless url")
		}
	})
}
