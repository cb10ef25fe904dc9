package stream

import (
	"testing"
	"time"
)

func TestSubscribeReplaysBufferedEventsInOrder(t *testing.T) {
	h := NewHub(time.Minute)
	h.Publish(NewEvent("conv-1", StatusRunning, "step 1"))
	h.Publish(NewEvent("conv-1", StatusRunning, "step 2"))
	h.Publish(NewEvent("conv-1", StatusRunning, "step 3"))

	_, backlog, unsubscribe := h.Subscribe("conv-1")
	defer unsubscribe()

	if len(backlog) != 3 {
		t.Fatalf("got %d backlog events, want 3", len(backlog))
	}
	if backlog[0].Message != "step 1" || backlog[2].Message != "step 3" {
		t.Fatalf("got %+v, want in publish order", backlog)
	}
}

func TestOverflowDropsNewestEventKeepingOldest(t *testing.T) {
	h := NewHub(time.Minute)
	for i := 0; i < DefaultBufferCapacity+5; i++ {
		h.Publish(NewEvent("conv-2", StatusRunning, "event"))
	}
	_, backlog, unsubscribe := h.Subscribe("conv-2")
	defer unsubscribe()

	if len(backlog) != DefaultBufferCapacity {
		t.Fatalf("got %d buffered events, want the capacity of %d (oldest retained)", len(backlog), DefaultBufferCapacity)
	}
}

func TestSecondSubscribeClosesPriorSubscriberStream(t *testing.T) {
	h := NewHub(time.Minute)
	firstEvents, _, firstUnsubscribe := h.Subscribe("conv-3")
	defer firstUnsubscribe()

	_, _, secondUnsubscribe := h.Subscribe("conv-3")
	defer secondUnsubscribe()

	select {
	case _, open := <-firstEvents:
		if open {
			t.Fatalf("expected the first subscriber's channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for the first subscriber's channel to close")
	}
}

func TestPublishDeliversLiveEventsToAttachedSubscriber(t *testing.T) {
	h := NewHub(time.Minute)
	events, _, unsubscribe := h.Subscribe("conv-4")
	defer unsubscribe()

	h.Publish(NewEvent("conv-4", StatusRunning, "live event"))

	select {
	case e := <-events:
		if e.Message != "live event" {
			t.Errorf("got %+v, want message=live event", e)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for the live event")
	}
}

func TestCompleteClearsBufferAfterSubscriberDetaches(t *testing.T) {
	h := NewHub(time.Minute)
	h.Complete("conv-5", "done")

	_, backlog, unsubscribe := h.Subscribe("conv-5")
	defer unsubscribe()
	if len(backlog) != 0 {
		t.Fatalf("got %d buffered events after Complete, want 0", len(backlog))
	}
}

func TestFailRetainsBufferForReplay(t *testing.T) {
	h := NewHub(time.Minute)
	h.Fail("conv-6", "boom")

	_, backlog, unsubscribe := h.Subscribe("conv-6")
	defer unsubscribe()
	if len(backlog) != 1 || backlog[0].Status != StatusError {
		t.Fatalf("got %+v, want one retained ERROR event", backlog)
	}
}
