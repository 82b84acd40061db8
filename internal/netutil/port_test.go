package netutil

import (
	"net"
	"testing"
)

func TestSelectBindAddr(t *testing.T) {
	t.Run("prefers_available_preferred", func(t *testing.T) {
		addr, err := SelectBindAddr("127.0.0.1:0", nil, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if addr != "127.0.0.1:0" {
			t.Fatalf("expected preferred address, got %q", addr)
		}
	})

	t.Run("falls_back_when_preferred_in_use", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("setup listener: %v", err)
		}
		defer ln.Close()

		busy := ln.Addr().String()
		addr, err := SelectBindAddr(busy, []string{"127.0.0.1:0"}, true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if addr == busy {
			t.Fatalf("expected fallback, got busy address")
		}
	})

	t.Run("errors_without_fallback", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("setup listener: %v", err)
		}
		defer ln.Close()

		if _, err := SelectBindAddr(ln.Addr().String(), nil, false); err == nil {
			t.Fatalf("expected error when preferred is busy and fallback disabled")
		}
	})
}
