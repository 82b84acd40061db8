package cassette

import (
	"encoding/base64"
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Body encodings. UTF-8 bodies store the decoded text verbatim; base64 bodies
// store the original bytes base64-encoded and keep the declared content type
// so the payload round-trips byte-for-byte.
const (
	EncodingUTF8   = "utf8"
	EncodingBase64 = "base64"
)

// onDiskEncoding is the encoding label written to cassettes. The stored
// string is always valid UTF-8 text, even on the base64 path.
const onDiskEncoding = "UTF-8"

// Body is the normalized, round-trippable representation of a payload.
type Body struct {
	Encoding    string
	Data        string
	ContentType string
}

// NormalizeBody classifies raw bytes by content type and produces a Body.
// Known binary families are base64-encoded unconditionally; everything else
// is stored as text when it is valid UTF-8 and falls back to base64
// otherwise. Never fails: every input yields a Body whose Bytes() returns
// the original bytes exactly.
func NormalizeBody(raw []byte, contentType string) Body {
	mediaType, charset := parseContentType(contentType)

	if isBinaryMediaType(mediaType) {
		return base64Body(raw, contentType)
	}
	// Non-UTF-8 declared charsets cannot be validated here; keep the bytes
	// intact rather than risk corrupting them.
	if charset != "" && !isUTF8Charset(charset) {
		return base64Body(raw, contentType)
	}
	if !utf8.Valid(raw) {
		return base64Body(raw, contentType)
	}
	return Body{Encoding: EncodingUTF8, Data: string(raw)}
}

// Bytes reconstructs the original payload bytes.
func (b Body) Bytes() ([]byte, error) {
	if b.Encoding == EncodingBase64 {
		data, err := base64.StdEncoding.DecodeString(b.Data)
		if err != nil {
			return nil, fmt.Errorf("body: decode base64: %w", err)
		}
		return data, nil
	}
	return []byte(b.Data), nil
}

// IsBinary reports whether the body took the base64 path.
func (b Body) IsBinary() bool {
	return b.Encoding == EncodingBase64
}

func base64Body(raw []byte, contentType string) Body {
	return Body{
		Encoding:    EncodingBase64,
		Data:        base64.StdEncoding.EncodeToString(raw),
		ContentType: contentType,
	}
}

func parseContentType(contentType string) (mediaType, charset string) {
	if contentType == "" {
		return "", ""
	}
	mt, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// Malformed content types get the permissive text-or-base64 treatment.
		return strings.ToLower(strings.TrimSpace(contentType)), ""
	}
	return mt, params["charset"]
}

func isBinaryMediaType(mediaType string) bool {
	for _, prefix := range []string{"image/", "audio/", "video/", "font/"} {
		if strings.HasPrefix(mediaType, prefix) {
			return true
		}
	}
	switch mediaType {
	case "application/octet-stream",
		"application/pdf",
		"application/zip",
		"application/gzip",
		"application/x-gzip",
		"application/x-tar",
		"application/x-7z-compressed",
		"application/x-rar-compressed",
		"application/vnd.ms-fontobject",
		"application/wasm":
		return true
	}
	return false
}

func isUTF8Charset(charset string) bool {
	switch strings.ToLower(charset) {
	case "utf-8", "utf8", "us-ascii", "ascii":
		return true
	}
	return false
}

type bodyYAML struct {
	Encoding    string `yaml:"encoding"`
	String      string `yaml:"string"`
	Base64      bool   `yaml:"base64,omitempty"`
	ContentType string `yaml:"content_type,omitempty"`
}

// MarshalYAML writes the on-disk body mapping. The encoding label is always
// "UTF-8"; binary payloads are flagged with base64: true and keep their
// original content type.
func (b Body) MarshalYAML() (any, error) {
	out := bodyYAML{Encoding: onDiskEncoding, String: b.Data}
	if b.Encoding == EncodingBase64 {
		out.Base64 = true
		out.ContentType = b.ContentType
	}
	return out, nil
}

// UnmarshalYAML restores a Body from the on-disk mapping.
func (b *Body) UnmarshalYAML(value *yaml.Node) error {
	var in bodyYAML
	if err := value.Decode(&in); err != nil {
		return fmt.Errorf("body: %w", err)
	}
	*b = Body{Encoding: EncodingUTF8, Data: in.String}
	if in.Base64 {
		b.Encoding = EncodingBase64
		b.ContentType = in.ContentType
	}
	return nil
}
