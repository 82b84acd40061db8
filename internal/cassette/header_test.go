package cassette

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestHeader(t *testing.T) {
	t.Run("preserves_insertion_order", func(t *testing.T) {
		h := NewHeader()
		h.Set("Content-Type", "text/html")
		h.Set("Accept", "*/*")
		h.Set("X-Custom", "1")

		keys := h.Keys()
		want := []string{"Content-Type", "Accept", "X-Custom"}
		if len(keys) != len(want) {
			t.Fatalf("expected %d keys, got %d", len(want), len(keys))
		}
		for i, k := range want {
			if keys[i] != k {
				t.Fatalf("key %d: expected %q, got %q", i, k, keys[i])
			}
		}
	})

	t.Run("get_is_case_insensitive", func(t *testing.T) {
		h := NewHeader()
		h.Set("Content-Type", "application/json")

		if v, ok := h.Get("content-type"); !ok || v != "application/json" {
			t.Fatalf("expected case-insensitive lookup, got %q, %v", v, ok)
		}
	})

	t.Run("set_overwrites_in_place", func(t *testing.T) {
		h := NewHeader()
		h.Set("Accept", "text/html")
		h.Set("Host", "example.com")
		h.Set("accept", "*/*")

		if h.Len() != 2 {
			t.Fatalf("expected 2 entries, got %d", h.Len())
		}
		if v, _ := h.Get("Accept"); v != "*/*" {
			t.Fatalf("expected overwritten value, got %q", v)
		}
		if h.Keys()[0] != "Accept" {
			t.Fatalf("expected original position and spelling kept, got %v", h.Keys())
		}
	})

	t.Run("yaml_round_trip_keeps_order", func(t *testing.T) {
		h := NewHeader()
		h.Set("Zebra", "z")
		h.Set("Alpha", "a")

		data, err := yaml.Marshal(h)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if zi, ai := strings.Index(string(data), "Zebra"), strings.Index(string(data), "Alpha"); zi > ai {
			t.Fatalf("expected insertion order on disk, got:\n%s", data)
		}

		var decoded Header
		if err := yaml.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if !decoded.Equal(h) {
			t.Fatalf("round trip mismatch: %v != %v", decoded.Keys(), h.Keys())
		}
	})

	t.Run("zero_value_is_usable", func(t *testing.T) {
		var h Header
		if _, ok := h.Get("missing"); ok {
			t.Fatalf("expected miss on empty header")
		}
		h.Set("K", "v")
		if v, ok := h.Get("k"); !ok || v != "v" {
			t.Fatalf("expected set on zero value to work")
		}
	})
}
