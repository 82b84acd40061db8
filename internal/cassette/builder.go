package cassette

import (
	"log/slog"
	"sync"
)

// Builder accumulates interactions for one capture run in completion order.
// Append never rejects; Finalize snapshots the set into a Document, after
// which further appends are dropped.
type Builder struct {
	mu           sync.Mutex
	interactions []Interaction
	finalized    bool
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Append adds an interaction. Calls after Finalize are logged and dropped.
func (b *Builder) Append(in Interaction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		slog.Warn("cassette builder already finalized, dropping interaction",
			"uri", in.Request.URI)
		return
	}
	b.interactions = append(b.interactions, in)
}

// Len returns the number of interactions appended so far.
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.interactions)
}

// Finalize snapshots the accumulated interactions into a Document and marks
// the builder closed.
func (b *Builder) Finalize() Document {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finalized = true
	snapshot := make([]Interaction, len(b.interactions))
	copy(snapshot, b.interactions)
	return Document{
		HTTPInteractions: snapshot,
		FormatVersion:    FormatVersion,
	}
}
