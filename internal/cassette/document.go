package cassette

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// FormatVersion marks the on-disk cassette format.
const FormatVersion = 1

// Document is the complete, ordered record set for one capture target. It is
// materialized fully in memory and written once; re-running a capture
// overwrites the previous file.
type Document struct {
	HTTPInteractions []Interaction `yaml:"http_interactions"`
	FormatVersion    int           `yaml:"format_version"`
}

// Encode renders the document as YAML. Key names and field order are fixed,
// so output is byte-stable across runs apart from recorded_at values.
func (d Document) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("cassette: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("cassette: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeDocument parses cassette bytes back into a Document.
func DecodeDocument(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("cassette: decode: %w", err)
	}
	if doc.FormatVersion != FormatVersion {
		return Document{}, fmt.Errorf("cassette: unsupported format_version %d", doc.FormatVersion)
	}
	return doc, nil
}

// Equal reports whether two documents hold identical interactions.
func (d Document) Equal(other Document) bool {
	if d.FormatVersion != other.FormatVersion || len(d.HTTPInteractions) != len(other.HTTPInteractions) {
		return false
	}
	for i, in := range d.HTTPInteractions {
		if !in.Equal(other.HTTPInteractions[i]) {
			return false
		}
	}
	return true
}
