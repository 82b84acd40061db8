package cdp

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/vcr_agent/internal/capture"
	"github.com/dgnsrekt/vcr_agent/internal/config"
)

const eventBufSize = 1024

// Session attaches to a browser over CDP, drives one page load, and
// translates network events into the capture event stream. It implements
// capture.Source.
//
// CDP splits a response across responseReceived (metadata) and
// loadingFinished (body available); the session joins the two by the
// driver's request ID and emits a single ResponseReceived event with a lazy
// body reader, so the correlator only sees the two-event model.
type Session struct {
	cfg *config.Config

	requests  chan capture.RequestStarted
	responses chan capture.ResponseReceived

	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc

	inflightMu sync.Mutex
	inflight   map[network.RequestID]responseMeta

	closeMu sync.RWMutex
	closed  bool
}

type responseMeta struct {
	url        string
	status     int
	statusText string
	headers    map[string]string
}

func NewSession(cfg *config.Config) *Session {
	return &Session{
		cfg:       cfg,
		requests:  make(chan capture.RequestStarted, eventBufSize),
		responses: make(chan capture.ResponseReceived, eventBufSize),
		inflight:  make(map[network.RequestID]responseMeta),
	}
}

// Requests returns the request-started stream.
func (s *Session) Requests() <-chan capture.RequestStarted { return s.requests }

// Responses returns the response-received stream.
func (s *Session) Responses() <-chan capture.ResponseReceived { return s.responses }

// Start connects to the browser, enables the network domain, navigates to
// the target URL, and returns once the page has loaded and late
// JavaScript-triggered loads have had SettleDelay to land. Events flow into
// the streams from the moment the network domain is enabled.
func (s *Session) Start(ctx context.Context, targetURL string) error {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, s.cfg.CDPURL())
	s.allocCancel = allocCancel

	s.tabCtx, s.tabCancel = chromedp.NewContext(allocCtx)
	chromedp.ListenTarget(s.tabCtx, s.handleEvent)

	if err := chromedp.Run(s.tabCtx, network.Enable(), network.SetCacheDisabled(true), page.Enable()); err != nil {
		return fmt.Errorf("connect to browser: %w", err)
	}

	navCtx, navCancel := context.WithTimeout(s.tabCtx, s.cfg.NavTimeout)
	defer navCancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(targetURL)); err != nil {
		return fmt.Errorf("navigate to %s: %w", targetURL, err)
	}
	slog.Info("page loaded, waiting for traffic to settle", "url", targetURL, "settle", s.cfg.SettleDelay)

	select {
	case <-time.After(s.cfg.SettleDelay):
	case <-ctx.Done():
		slog.Warn("capture deadline reached during settle, abandoning in-flight requests")
	}
	return nil
}

// Finish stops event emission and closes both streams so the consumer loop
// can drain and exit. The tab stays open until Close so queued response
// bodies remain fetchable.
func (s *Session) Finish() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.requests)
	close(s.responses)
}

// Close tears down the tab and the allocator connection.
func (s *Session) Close() {
	s.Finish()
	if s.tabCtx != nil {
		if err := chromedp.Cancel(s.tabCtx); err != nil {
			slog.Debug("tab close failed", "error", err)
		}
	}
	if s.tabCancel != nil {
		s.tabCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}

func (s *Session) handleEvent(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		s.emitRequest(capture.RequestStarted{
			Method:  e.Request.Method,
			URL:     e.Request.URL,
			Headers: headerMapToStringMap(e.Request.Headers),
			Body:    postData(e),
		})
	case *network.EventResponseReceived:
		s.inflightMu.Lock()
		s.inflight[e.RequestID] = responseMeta{
			url:        e.Response.URL,
			status:     int(e.Response.Status),
			statusText: statusText(e.Response),
			headers:    headerMapToStringMap(e.Response.Headers),
		}
		s.inflightMu.Unlock()
	case *network.EventLoadingFinished:
		s.inflightMu.Lock()
		meta, ok := s.inflight[e.RequestID]
		if ok {
			delete(s.inflight, e.RequestID)
		}
		s.inflightMu.Unlock()
		if !ok {
			return
		}
		s.emitResponse(capture.ResponseReceived{
			URL:        meta.url,
			StatusCode: meta.status,
			StatusText: meta.statusText,
			Headers:    meta.headers,
			ReadBody:   s.bodyReader(e.RequestID),
		})
	case *network.EventLoadingFailed:
		s.inflightMu.Lock()
		delete(s.inflight, e.RequestID)
		s.inflightMu.Unlock()
	}
}

// bodyReader fetches a response body from the browser on demand. The fetch
// is bounded so one stuck body cannot stall the drain, and oversized bodies
// are treated as read failures rather than truncated, since a truncated
// cassette body could not round-trip.
func (s *Session) bodyReader(id network.RequestID) func(ctx context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		bodyCtx, cancel := context.WithTimeout(s.tabCtx, 10*time.Second)
		defer cancel()

		var body []byte
		err := chromedp.Run(bodyCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			body, err = network.GetResponseBody(id).Do(ctx)
			return err
		}))
		if err != nil {
			return nil, err
		}
		if s.cfg.MaxBodyBytes > 0 && len(body) > s.cfg.MaxBodyBytes {
			return nil, fmt.Errorf("body size %d exceeds limit %d", len(body), s.cfg.MaxBodyBytes)
		}
		return body, nil
	}
}

func (s *Session) emitRequest(ev capture.RequestStarted) {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.requests <- ev:
	default:
		slog.Warn("request event buffer full, dropping", "url", ev.URL)
	}
}

func (s *Session) emitResponse(ev capture.ResponseReceived) {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.responses <- ev:
	default:
		slog.Warn("response event buffer full, dropping", "url", ev.URL)
	}
}

// postData reassembles request post data from CDP's base64 entries.
func postData(ev *network.EventRequestWillBeSent) []byte {
	if !ev.Request.HasPostData || len(ev.Request.PostDataEntries) == 0 {
		return nil
	}
	var parts []byte
	for _, entry := range ev.Request.PostDataEntries {
		if entry.Bytes == "" {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(entry.Bytes)
		if err != nil {
			parts = append(parts, []byte(entry.Bytes)...)
		} else {
			parts = append(parts, decoded...)
		}
	}
	return parts
}

// statusText falls back to the standard reason phrase; HTTP/2 responses
// carry no status text on the wire.
func statusText(resp *network.Response) string {
	if resp.StatusText != "" {
		return resp.StatusText
	}
	return http.StatusText(int(resp.Status))
}

func headerMapToStringMap(headers map[string]any) map[string]string {
	result := make(map[string]string, len(headers))
	for k, v := range headers {
		if s, ok := v.(string); ok {
			result[k] = s
		}
	}
	return result
}
