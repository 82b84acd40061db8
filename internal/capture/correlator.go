package capture

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/vcr_agent/internal/cassette"
)

// Hooks receive non-fatal correlation events for journaling and progress
// reporting. All fields are optional.
type Hooks struct {
	OnInteraction     func(in cassette.Interaction)
	OnCorrelationMiss func(url string)
	OnBodyReadError   func(url string, err error)
}

type pendingRequest struct {
	method  string
	headers map[string]string
	body    []byte
}

// Correlator pairs asynchronous request and response events into complete
// interactions and appends them to the builder in completion order.
//
// The pending table is keyed by request URL with last-write-wins semantics:
// a second in-flight request to the same URL overwrites the first, and a
// response consumes whatever entry occupies the key. Concurrent same-URL
// requests are therefore conflated; exact pairing would key on the driver's
// per-request identifier instead.
type Correlator struct {
	builder *cassette.Builder
	hooks   Hooks
	now     func() time.Time

	mu      sync.Mutex
	pending map[string]pendingRequest
}

func NewCorrelator(builder *cassette.Builder, hooks Hooks) *Correlator {
	return &Correlator{
		builder: builder,
		hooks:   hooks,
		now:     time.Now,
		pending: make(map[string]pendingRequest),
	}
}

// Run consumes both event streams until they close or ctx is cancelled.
// Each event is processed to completion before the next is received, so the
// pending table sees insert/overwrite/pop as indivisible steps.
func (c *Correlator) Run(ctx context.Context, src Source) {
	reqCh, respCh := src.Requests(), src.Responses()
	for reqCh != nil || respCh != nil {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-reqCh:
			if !ok {
				reqCh = nil
				continue
			}
			c.OnRequestStarted(ev)
		case ev, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			c.OnResponseReceived(ctx, ev)
		}
	}
}

// OnRequestStarted records an in-flight request, overwriting any pending
// entry for the same URL.
func (c *Correlator) OnRequestStarted(ev RequestStarted) {
	c.mu.Lock()
	c.pending[ev.URL] = pendingRequest{
		method:  ev.Method,
		headers: ev.Headers,
		body:    ev.Body,
	}
	c.mu.Unlock()
}

// OnResponseReceived pops the pending request for the response's URL
// (substituting a synthetic GET when none exists), reads and normalizes the
// body, and appends the completed interaction. A body-read failure drops
// only this interaction; correlation continues for subsequent events.
func (c *Correlator) OnResponseReceived(ctx context.Context, ev ResponseReceived) {
	c.mu.Lock()
	pending, ok := c.pending[ev.URL]
	if ok {
		delete(c.pending, ev.URL)
	}
	c.mu.Unlock()

	var req cassette.Request
	if ok {
		req = cassette.Request{
			Method:  pending.method,
			URI:     ev.URL,
			Headers: headerFromMap(pending.headers),
			Body:    cassette.NormalizeBody(pending.body, contentTypeOf(pending.headers)),
		}
	} else {
		slog.Warn("response without matching request, substituting synthetic GET", "url", ev.URL)
		if c.hooks.OnCorrelationMiss != nil {
			c.hooks.OnCorrelationMiss(ev.URL)
		}
		req = cassette.SyntheticRequest(ev.URL)
	}

	var body []byte
	if ev.ReadBody != nil {
		var err error
		body, err = ev.ReadBody(ctx)
		if err != nil {
			slog.Warn("failed to read response body, skipping interaction", "url", ev.URL, "error", err)
			if c.hooks.OnBodyReadError != nil {
				c.hooks.OnBodyReadError(ev.URL, err)
			}
			return
		}
	}

	in := cassette.Interaction{
		Request: req,
		Response: cassette.Response{
			Status:  cassette.Status{Code: ev.StatusCode, Message: ev.StatusText},
			Headers: headerFromMap(ev.Headers),
			Body:    cassette.NormalizeBody(body, contentTypeOf(ev.Headers)),
		},
		RecordedAt: cassette.Timestamp(c.now().UTC()),
	}

	c.builder.Append(in)
	if c.hooks.OnInteraction != nil {
		c.hooks.OnInteraction(in)
	}
}

// PendingCount reports in-flight requests that never completed.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// headerFromMap converts a driver header map into an ordered Header. Drivers
// deliver unordered maps, so keys are sorted to keep cassette output stable.
func headerFromMap(m map[string]string) cassette.Header {
	h := cassette.NewHeader()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Set(k, m[k])
	}
	return h
}

func contentTypeOf(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "Content-Type") {
			return v
		}
	}
	return ""
}
