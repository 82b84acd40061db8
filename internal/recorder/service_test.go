package recorder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/vcr_agent/internal/capture"
	"github.com/dgnsrekt/vcr_agent/internal/cassette"
	"github.com/dgnsrekt/vcr_agent/internal/config"
)

var pngBytes = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0xff}

type fakeDriver struct {
	requests  chan capture.RequestStarted
	responses chan capture.ResponseReceived
	script    func(d *fakeDriver, url string) error
	finished  bool
}

// Channels are unbuffered so the consumer sees events in exactly the order
// the script sends them.
func newFakeDriver(script func(d *fakeDriver, url string) error) *fakeDriver {
	return &fakeDriver{
		requests:  make(chan capture.RequestStarted),
		responses: make(chan capture.ResponseReceived),
		script:    script,
	}
}

func (d *fakeDriver) Start(ctx context.Context, url string) error { return d.script(d, url) }

func (d *fakeDriver) Finish() {
	if !d.finished {
		d.finished = true
		close(d.requests)
		close(d.responses)
	}
}

func (d *fakeDriver) Close() {}

func (d *fakeDriver) Requests() <-chan capture.RequestStarted    { return d.requests }
func (d *fakeDriver) Responses() <-chan capture.ResponseReceived { return d.responses }

func staticBody(data []byte) func(ctx context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) { return data, nil }
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		CassetteDir:    filepath.Join(t.TempDir(), "vcr_cassettes"),
		CaptureTimeout: 5 * time.Second,
	}
}

func testService(cfg *config.Config, driver Driver) *Service {
	svc := NewService(cfg, nil, nil)
	svc.newDriver = func(*config.Config) Driver { return driver }
	return svc
}

func shopScript(pngRead func(ctx context.Context) ([]byte, error)) func(d *fakeDriver, url string) error {
	return func(d *fakeDriver, url string) error {
		d.requests <- capture.RequestStarted{
			Method:  "GET",
			URL:     url,
			Headers: map[string]string{"Accept": "text/html"},
		}
		d.responses <- capture.ResponseReceived{
			URL:        url,
			StatusCode: 200,
			StatusText: "OK",
			Headers:    map[string]string{"Content-Type": "text/html; charset=utf-8"},
			ReadBody:   staticBody([]byte("<html><body>item</body></html>")),
		}
		d.requests <- capture.RequestStarted{
			Method:  "GET",
			URL:     url + ".png",
			Headers: map[string]string{"Accept": "image/*"},
		}
		d.responses <- capture.ResponseReceived{
			URL:        url + ".png",
			StatusCode: 200,
			StatusText: "OK",
			Headers:    map[string]string{"Content-Type": "image/png"},
			ReadBody:   pngRead,
		}
		return nil
	}
}

func TestServiceRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("end_to_end_mixed_capture", func(t *testing.T) {
		cfg := testConfig(t)
		svc := testService(cfg, newFakeDriver(shopScript(staticBody(pngBytes))))

		url := "https://shop.example.com/item"
		result, err := svc.Record(ctx, url)
		if err != nil {
			t.Fatalf("record: %v", err)
		}
		if result.Interactions != 2 {
			t.Fatalf("expected 2 interactions, got %d", result.Interactions)
		}

		sum := sha256.Sum256([]byte(url))
		wantPath := filepath.Join(cfg.CassetteDir, "shop_example_com", hex.EncodeToString(sum[:])+".yml")
		if result.Path != wantPath {
			t.Fatalf("expected path %q, got %q", wantPath, result.Path)
		}

		data, err := os.ReadFile(result.Path)
		if err != nil {
			t.Fatalf("read cassette: %v", err)
		}
		if !strings.Contains(string(data), "encoding: UTF-8") {
			t.Fatalf("expected UTF-8 encoding labels in cassette:\n%s", data)
		}

		doc, err := cassette.DecodeDocument(data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(doc.HTTPInteractions) != 2 {
			t.Fatalf("expected 2 interactions, got %d", len(doc.HTTPInteractions))
		}

		html := doc.HTTPInteractions[0]
		if html.Response.Body.IsBinary() {
			t.Fatalf("expected text html body")
		}
		if html.Response.Body.Data != "<html><body>item</body></html>" {
			t.Fatalf("unexpected html body: %q", html.Response.Body.Data)
		}

		png := doc.HTTPInteractions[1]
		if !png.Response.Body.IsBinary() {
			t.Fatalf("expected binary png body")
		}
		raw, err := png.Response.Body.Bytes()
		if err != nil {
			t.Fatalf("decode png body: %v", err)
		}
		if string(raw) != string(pngBytes) {
			t.Fatalf("png body did not round-trip")
		}
	})

	t.Run("body_read_failure_drops_only_that_interaction", func(t *testing.T) {
		cfg := testConfig(t)
		failing := func(ctx context.Context) ([]byte, error) { return nil, errors.New("truncated") }
		svc := testService(cfg, newFakeDriver(shopScript(failing)))

		result, err := svc.Record(ctx, "https://shop.example.com/item")
		if err != nil {
			t.Fatalf("expected success despite body failure, got %v", err)
		}
		if result.Interactions != 1 {
			t.Fatalf("expected 1 surviving interaction, got %d", result.Interactions)
		}

		data, err := os.ReadFile(result.Path)
		if err != nil {
			t.Fatalf("read cassette: %v", err)
		}
		doc, err := cassette.DecodeDocument(data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if doc.HTTPInteractions[0].Request.URI != "https://shop.example.com/item" {
			t.Fatalf("wrong interaction survived: %q", doc.HTTPInteractions[0].Request.URI)
		}
	})

	t.Run("rerun_overwrites_previous_cassette", func(t *testing.T) {
		cfg := testConfig(t)
		url := "https://shop.example.com/item"

		first, err := testService(cfg, newFakeDriver(shopScript(staticBody(pngBytes)))).Record(ctx, url)
		if err != nil {
			t.Fatalf("first record: %v", err)
		}
		second, err := testService(cfg, newFakeDriver(func(d *fakeDriver, u string) error {
			d.requests <- capture.RequestStarted{Method: "GET", URL: u}
			d.responses <- capture.ResponseReceived{
				URL: u, StatusCode: 200, StatusText: "OK",
				Headers:  map[string]string{"Content-Type": "text/html"},
				ReadBody: staticBody([]byte("fresh")),
			}
			return nil
		})).Record(ctx, url)
		if err != nil {
			t.Fatalf("second record: %v", err)
		}
		if first.Path != second.Path {
			t.Fatalf("expected identical paths across runs")
		}
		if second.Interactions != 1 {
			t.Fatalf("expected fresh capture, got %d interactions", second.Interactions)
		}
	})

	t.Run("unaddressable_url_fails_before_browser_work", func(t *testing.T) {
		cfg := testConfig(t)
		started := false
		svc := testService(cfg, newFakeDriver(func(d *fakeDriver, u string) error {
			started = true
			return nil
		}))

		if _, err := svc.Record(ctx, "no host here"); err == nil {
			t.Fatalf("expected error for unaddressable url")
		}
		if started {
			t.Fatalf("driver must not start for invalid input")
		}
	})

	t.Run("driver_failure_is_fatal", func(t *testing.T) {
		cfg := testConfig(t)
		svc := testService(cfg, newFakeDriver(func(d *fakeDriver, u string) error {
			return errors.New("no browser found")
		}))

		if _, err := svc.Record(ctx, "https://example.com/"); err == nil {
			t.Fatalf("expected driver failure to propagate")
		}
	})
}

func TestServiceListCassettes(t *testing.T) {
	ctx := context.Background()

	t.Run("empty_when_nothing_recorded", func(t *testing.T) {
		cfg := testConfig(t)
		svc := NewService(cfg, nil, nil)

		infos, err := svc.ListCassettes(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(infos) != 0 {
			t.Fatalf("expected empty list, got %d", len(infos))
		}
	})

	t.Run("lists_recorded_cassettes", func(t *testing.T) {
		cfg := testConfig(t)
		svc := testService(cfg, newFakeDriver(shopScript(staticBody(pngBytes))))

		if _, err := svc.Record(ctx, "https://shop.example.com/item"); err != nil {
			t.Fatalf("record: %v", err)
		}
		infos, err := svc.ListCassettes(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(infos) != 1 {
			t.Fatalf("expected 1 cassette, got %d", len(infos))
		}
		if infos[0].Host != "shop_example_com" {
			t.Fatalf("unexpected host dir: %q", infos[0].Host)
		}
	})
}
