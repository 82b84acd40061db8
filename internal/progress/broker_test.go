package progress

import "testing"

func TestBroker(t *testing.T) {
	t.Run("delivers_to_all_subscribers", func(t *testing.T) {
		b := NewBroker()
		id1, ch1 := b.Subscribe()
		id2, ch2 := b.Subscribe()
		defer b.Unsubscribe(id1)
		defer b.Unsubscribe(id2)

		b.Publish(Event{Kind: KindInteractionRecorded, URL: "https://example.com/"})

		for _, ch := range []<-chan Event{ch1, ch2} {
			select {
			case evt := <-ch:
				if evt.Kind != KindInteractionRecorded {
					t.Fatalf("unexpected event kind %q", evt.Kind)
				}
			default:
				t.Fatalf("expected buffered event")
			}
		}
	})

	t.Run("unsubscribe_closes_channel", func(t *testing.T) {
		b := NewBroker()
		id, ch := b.Subscribe()
		b.Unsubscribe(id)

		if _, ok := <-ch; ok {
			t.Fatalf("expected closed channel")
		}
		if b.ClientCount() != 0 {
			t.Fatalf("expected 0 subscribers, got %d", b.ClientCount())
		}
	})

	t.Run("nil_broker_publish_is_noop", func(t *testing.T) {
		var b *Broker
		b.Publish(Event{Kind: KindSessionStarted})
	})

	t.Run("slow_subscriber_drops_events", func(t *testing.T) {
		b := NewBroker()
		id, ch := b.Subscribe()
		defer b.Unsubscribe(id)

		for i := 0; i < subscriberBufSize+10; i++ {
			b.Publish(Event{Kind: KindInteractionRecorded})
		}
		if len(ch) != subscriberBufSize {
			t.Fatalf("expected full buffer, got %d", len(ch))
		}
	})
}
