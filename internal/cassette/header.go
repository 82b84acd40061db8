package cassette

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type headerPair struct {
	key   string
	value string
}

// Header is an order-preserving string mapping with case-insensitive keys.
// Insertion order is kept through serialization so cassettes stay diffable.
type Header struct {
	pairs []headerPair
	index map[string]int
}

// NewHeader returns an empty header mapping.
func NewHeader() Header {
	return Header{index: make(map[string]int)}
}

// Set stores a value under key. An existing entry (matched case-insensitively)
// is updated in place, keeping its position and original key spelling.
func (h *Header) Set(key, value string) {
	if h.index == nil {
		h.index = make(map[string]int)
	}
	lower := strings.ToLower(key)
	if i, ok := h.index[lower]; ok {
		h.pairs[i].value = value
		return
	}
	h.index[lower] = len(h.pairs)
	h.pairs = append(h.pairs, headerPair{key: key, value: value})
}

// Get looks up a value by key, case-insensitively.
func (h Header) Get(key string) (string, bool) {
	i, ok := h.index[strings.ToLower(key)]
	if !ok {
		return "", false
	}
	return h.pairs[i].value, true
}

// Len returns the number of entries.
func (h Header) Len() int {
	return len(h.pairs)
}

// Keys returns the keys in insertion order with their original spelling.
func (h Header) Keys() []string {
	keys := make([]string, len(h.pairs))
	for i, p := range h.pairs {
		keys[i] = p.key
	}
	return keys
}

// Clone returns an independent copy.
func (h Header) Clone() Header {
	out := NewHeader()
	for _, p := range h.pairs {
		out.Set(p.key, p.value)
	}
	return out
}

// Equal reports whether both headers hold the same entries in the same order.
func (h Header) Equal(other Header) bool {
	if len(h.pairs) != len(other.pairs) {
		return false
	}
	for i, p := range h.pairs {
		if other.pairs[i] != p {
			return false
		}
	}
	return true
}

// MarshalYAML renders the header as a YAML mapping in insertion order.
func (h Header) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, p := range h.pairs {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.value},
		)
	}
	return node, nil
}

// UnmarshalYAML restores the header from a YAML mapping, preserving document order.
func (h *Header) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("header: expected mapping, got %v", value.Kind)
	}
	*h = NewHeader()
	for i := 0; i+1 < len(value.Content); i += 2 {
		h.Set(value.Content[i].Value, value.Content[i+1].Value)
	}
	return nil
}
