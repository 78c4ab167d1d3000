package events

import (
	"context"
	"errors"
	"testing"
)

func TestPublishDeliversInOrder(t *testing.T) {
	bus := NewBus(nil)
	var got []string

	bus.Subscribe(TopicItemsInvalidated, func(_ context.Context, ev Event) error {
		got = append(got, "first:"+ev.ItemID)
		return nil
	})
	bus.Subscribe(TopicItemsInvalidated, func(_ context.Context, ev Event) error {
		got = append(got, "second:"+ev.ItemID)
		return nil
	})
	bus.Subscribe(TopicItemsChanged, func(_ context.Context, ev Event) error {
		got = append(got, "other")
		return nil
	})

	bus.Publish(context.Background(), Event{Topic: TopicItemsInvalidated, ItemID: "i1"})

	if len(got) != 2 || got[0] != "first:i1" || got[1] != "second:i1" {
		t.Errorf("unexpected deliveries: %v", got)
	}
}

func TestPublishFillsMetadata(t *testing.T) {
	bus := NewBus(nil)
	var ev Event
	bus.Subscribe(TopicOutfitsChanged, func(_ context.Context, e Event) error {
		ev = e
		return nil
	})

	bus.Publish(context.Background(), Event{Topic: TopicOutfitsChanged})

	if ev.ID == "" {
		t.Error("expected event id to be set")
	}
	if ev.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus(nil)
	calls := 0

	unsubscribe := bus.Subscribe(TopicItemsChanged, func(context.Context, Event) error {
		calls++
		return nil
	})
	if bus.Subscribers(TopicItemsChanged) != 1 {
		t.Fatalf("expected 1 subscriber")
	}

	bus.Publish(context.Background(), Event{Topic: TopicItemsChanged})
	unsubscribe()
	unsubscribe()
	bus.Publish(context.Background(), Event{Topic: TopicItemsChanged})

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if bus.Subscribers(TopicItemsChanged) != 0 {
		t.Errorf("expected no subscribers after unsubscribe")
	}
}

func TestHandlerErrorDoesNotStopDelivery(t *testing.T) {
	bus := NewBus(nil)
	delivered := false

	bus.Subscribe(TopicItemsChanged, func(context.Context, Event) error {
		return errors.New("boom")
	})
	bus.Subscribe(TopicItemsChanged, func(context.Context, Event) error {
		delivered = true
		return nil
	})

	bus.Publish(context.Background(), Event{Topic: TopicItemsChanged})

	if !delivered {
		t.Error("expected second handler to run")
	}
}

func TestUnsubscribeDuringPublish(t *testing.T) {
	bus := NewBus(nil)
	var unsubscribe func()
	calls := 0

	unsubscribe = bus.Subscribe(TopicItemsChanged, func(context.Context, Event) error {
		calls++
		unsubscribe()
		return nil
	})

	bus.Publish(context.Background(), Event{Topic: TopicItemsChanged})
	bus.Publish(context.Background(), Event{Topic: TopicItemsChanged})

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}
