package cassette

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Timestamp is a UTC capture time with a fixed ISO-8601 rendering, so two
// cassettes differing only in capture time differ only on recorded_at lines.
type Timestamp time.Time

// MarshalYAML renders the timestamp as a quoted RFC 3339 UTC string. The
// explicit string tag keeps YAML timestamp resolution from rewriting it.
func (t Timestamp) MarshalYAML() (any, error) {
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Style: yaml.DoubleQuotedStyle,
		Tag:   "!!str",
		Value: time.Time(t).UTC().Format(time.RFC3339),
	}, nil
}

// UnmarshalYAML parses an RFC 3339 timestamp.
func (t *Timestamp) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.Parse(time.RFC3339, value.Value)
	if err != nil {
		return fmt.Errorf("recorded_at: %w", err)
	}
	*t = Timestamp(parsed.UTC())
	return nil
}

// Equal compares timestamps by instant.
func (t Timestamp) Equal(other Timestamp) bool {
	return time.Time(t).Equal(time.Time(other))
}

// Request is the request half of a captured interaction.
type Request struct {
	Method  string `yaml:"method"`
	URI     string `yaml:"uri"`
	Headers Header `yaml:"headers"`
	Body    Body   `yaml:"body"`
}

// SyntheticRequest is the placeholder substituted when a response arrives with
// no matching pending request: a bare GET with empty headers and body.
func SyntheticRequest(uri string) Request {
	return Request{
		Method:  "GET",
		URI:     uri,
		Headers: NewHeader(),
		Body:    NormalizeBody(nil, ""),
	}
}

// Status is a response status line.
type Status struct {
	Code    int    `yaml:"code"`
	Message string `yaml:"message"`
}

// Response is the response half of a captured interaction.
type Response struct {
	Status  Status `yaml:"status"`
	Headers Header `yaml:"headers"`
	Body    Body   `yaml:"body"`
}

// Interaction pairs exactly one request with exactly one response.
type Interaction struct {
	Request    Request   `yaml:"request"`
	Response   Response  `yaml:"response"`
	RecordedAt Timestamp `yaml:"recorded_at"`
}

// Equal reports whether two interactions are identical, timestamps included.
func (in Interaction) Equal(other Interaction) bool {
	return in.Request.Method == other.Request.Method &&
		in.Request.URI == other.Request.URI &&
		in.Request.Headers.Equal(other.Request.Headers) &&
		in.Request.Body == other.Request.Body &&
		in.Response.Status == other.Response.Status &&
		in.Response.Headers.Equal(other.Response.Headers) &&
		in.Response.Body == other.Response.Body &&
		in.RecordedAt.Equal(other.RecordedAt)
}
