package capture

import "context"

// RequestStarted is emitted by the browser driver when a request goes out.
type RequestStarted struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// ResponseReceived is emitted by the browser driver once a response has
// finished loading. The body is fetched lazily through ReadBody because
// drivers only expose it after the transfer completes.
type ResponseReceived struct {
	URL        string
	StatusCode int
	StatusText string
	Headers    map[string]string
	ReadBody   func(ctx context.Context) ([]byte, error)
}

// Source is the browser driver's subscription surface: two typed event
// streams consumed by a single-consumer loop. Both channels close when the
// driver session ends.
type Source interface {
	Requests() <-chan RequestStarted
	Responses() <-chan ResponseReceived
}
