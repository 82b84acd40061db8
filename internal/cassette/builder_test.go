package cassette

import (
	"testing"
	"time"
)

func testInteraction(uri string) Interaction {
	return Interaction{
		Request:  SyntheticRequest(uri),
		Response: Response{Status: Status{Code: 200, Message: "OK"}, Headers: NewHeader(), Body: NormalizeBody([]byte("ok"), "text/plain")},
		RecordedAt: Timestamp(time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)),
	}
}

func TestBuilder(t *testing.T) {
	t.Run("keeps_append_order", func(t *testing.T) {
		b := NewBuilder()
		b.Append(testInteraction("https://example.com/a"))
		b.Append(testInteraction("https://example.com/b"))

		doc := b.Finalize()
		if len(doc.HTTPInteractions) != 2 {
			t.Fatalf("expected 2 interactions, got %d", len(doc.HTTPInteractions))
		}
		if doc.HTTPInteractions[0].Request.URI != "https://example.com/a" {
			t.Fatalf("unexpected first interaction: %q", doc.HTTPInteractions[0].Request.URI)
		}
		if doc.FormatVersion != FormatVersion {
			t.Fatalf("expected format version %d, got %d", FormatVersion, doc.FormatVersion)
		}
	})

	t.Run("finalize_snapshots", func(t *testing.T) {
		b := NewBuilder()
		b.Append(testInteraction("https://example.com/a"))

		doc := b.Finalize()
		b.Append(testInteraction("https://example.com/late"))

		if len(doc.HTTPInteractions) != 1 {
			t.Fatalf("snapshot mutated: %d interactions", len(doc.HTTPInteractions))
		}
		if b.Len() != 1 {
			t.Fatalf("post-finalize append not dropped: len=%d", b.Len())
		}
	})

	t.Run("empty_builder_yields_empty_document", func(t *testing.T) {
		doc := NewBuilder().Finalize()
		if len(doc.HTTPInteractions) != 0 {
			t.Fatalf("expected empty document, got %d", len(doc.HTTPInteractions))
		}
	})
}
