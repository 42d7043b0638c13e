package events

import "testing"

func TestHubPublishDecode(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	h.Publish(BatteryVoltage, BatteryVoltageEvent{Voltage: 3.2, PinMillivolts: 1600, Scheme: "DefaultVref", InRange: true})

	ev := <-ch
	if ev.Name != BatteryVoltage {
		t.Fatalf("event name = %q", ev.Name)
	}
	payload, err := DecodeAs[BatteryVoltageEvent](ev)
	if err != nil {
		t.Fatal(err)
	}
	if payload.Voltage != 3.2 || payload.PinMillivolts != 1600 || !payload.InRange {
		t.Errorf("payload = %+v", payload)
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()

	for i := 0; i < 100; i++ {
		h.Publish(SampleError, SampleErrorEvent{Message: "timeout"})
	}
	if len(ch) != cap(ch) {
		t.Errorf("buffered %d events, want %d", len(ch), cap(ch))
	}

	h.Unsubscribe(ch)
	if h.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d after unsubscribe", h.Subscribers())
	}
	// Double unsubscribe must not panic on a closed channel.
	h.Unsubscribe(ch)
}

func TestNilHubPublish(t *testing.T) {
	var h *EventHub
	h.Publish(VrefRouted, VrefRoutedEvent{GPIO: 25})
}

func TestDecodeEmpty(t *testing.T) {
	v, err := DecodeAs[VrefRoutedEvent](Event{Name: VrefRouted})
	if err != nil || v.GPIO != 0 {
		t.Errorf("DecodeAs(empty) = %+v, %v", v, err)
	}
}

func TestHubClose(t *testing.T) {
	h := NewEventHub()
	a, b := h.Subscribe(), h.Subscribe()
	h.Close()

	if _, ok := <-a; ok {
		t.Errorf("channel a still open")
	}
	if _, ok := <-b; ok {
		t.Errorf("channel b still open")
	}
	// Unsubscribing after Close is a no-op.
	h.Unsubscribe(a)
}
