package events

import (
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan any) any {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for payload")
		return nil
	}
}

func TestPublisher_ChannelNames(t *testing.T) {
	p := NewPublisher(New(), "")
	defer p.Close()

	if got := p.CameraEventsChannel(7); got != "camctl.io/cameraEvents7" {
		t.Errorf("CameraEventsChannel = %q", got)
	}
	if got := p.ImageStreamChannel(); got != "camctl.io/camera/imageStream" {
		t.Errorf("ImageStreamChannel = %q", got)
	}
}

func TestPublisher_MapsCameraEvents(t *testing.T) {
	bus := New()
	p := NewPublisher(bus, "test")
	defer p.Close()

	got := make(chan any, 4)
	cancel := p.Listen(p.CameraEventsChannel(2), func(v any) { got <- v })
	defer cancel()

	bus.Publish(CameraErrorEvent{TextureID: 2, Description: "boom"})
	bus.Publish(CameraClosingEvent{TextureID: 2})

	// Different event types are delivered by independent subscribers.
	seen := map[string]CameraEventPayload{}
	for range 2 {
		payload := receive(t, got).(CameraEventPayload)
		seen[payload.EventType] = payload
	}
	if e, ok := seen[EventTypeError]; !ok || e.ErrorDescription != "boom" {
		t.Errorf("Unexpected error payload %+v", seen)
	}
	if _, ok := seen[EventTypeCameraClosing]; !ok {
		t.Errorf("Missing closing payload %+v", seen)
	}
}

func TestPublisher_OtherTextureNotDelivered(t *testing.T) {
	bus := New()
	p := NewPublisher(bus, "test")
	defer p.Close()

	got := make(chan any, 1)
	cancel := p.Listen(p.CameraEventsChannel(1), func(v any) { got <- v })
	defer cancel()

	bus.Publish(CameraClosingEvent{TextureID: 9})

	select {
	case v := <-got:
		t.Errorf("Unexpected payload %+v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublisher_ListenReplacesSink(t *testing.T) {
	p := NewPublisher(New(), "test")
	defer p.Close()

	var first, second int
	cancelFirst := p.Listen("ch", func(any) { first++ })
	p.Listen("ch", func(any) { second++ })

	p.Emit("ch", 1)
	if first != 0 || second != 1 {
		t.Fatalf("Expected only the second sink to receive, got first=%d second=%d", first, second)
	}

	// Cancelling a replaced sink leaves the current one attached.
	cancelFirst()
	if !p.Listening("ch") {
		t.Fatal("Expected channel to keep its current sink")
	}
	p.Emit("ch", 2)
	if second != 2 {
		t.Errorf("Expected second sink to receive again, got %d", second)
	}
}

func TestPublisher_EmitWithoutSinkDrops(t *testing.T) {
	p := NewPublisher(New(), "test")
	defer p.Close()

	if p.Emit("nobody", "x") {
		t.Error("Expected Emit to report a drop")
	}

	cancel := p.Listen("ch", func(any) {})
	cancel()
	if p.Emit("ch", "x") {
		t.Error("Expected Emit to drop after cancel")
	}
}

func TestPublisher_ImageFrames(t *testing.T) {
	bus := New()
	p := NewPublisher(bus, "test")
	defer p.Close()

	got := make(chan any, 1)
	cancel := p.Listen(p.ImageStreamChannel(), func(v any) { got <- v })
	defer cancel()

	bus.Publish(ImageFrameEvent{Frame: ImageFrame{Width: 640, Height: 480, Format: 35}})

	frame := receive(t, got).(ImageFrame)
	if frame.Width != 640 || frame.Height != 480 {
		t.Errorf("Unexpected frame %+v", frame)
	}
}
