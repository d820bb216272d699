package events

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/smazurov/camctl/internal/logging"
	"github.com/smazurov/camctl/internal/metrics"
)

// Host-facing event type names.
const (
	EventTypeCameraClosing = "cameraClosing"
	EventTypeError         = "error"
)

// DefaultChannelPrefix is the channel namespace used when none is configured.
const DefaultChannelPrefix = "camctl.io"

// CameraEventPayload is what a camera events channel carries.
type CameraEventPayload struct {
	EventType        string `json:"eventType" example:"error" doc:"cameraClosing or error"`
	ErrorDescription string `json:"errorDescription,omitempty" doc:"Set for error events"`
}

// Sink receives payloads emitted on a channel.
type Sink func(payload any)

type sinkEntry struct {
	sink Sink
}

// Publisher maps bus events onto named host channels. Each channel has at
// most one listening sink; payloads emitted without a sink are dropped.
type Publisher struct {
	prefix string
	logger *slog.Logger

	mu    sync.Mutex
	sinks map[string]*sinkEntry

	unsubscribe []func()
}

// NewPublisher subscribes a publisher to the bus.
func NewPublisher(bus *Bus, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	p := &Publisher{
		prefix: prefix,
		logger: logging.GetLogger("events"),
		sinks:  make(map[string]*sinkEntry),
	}

	p.unsubscribe = append(p.unsubscribe,
		bus.Subscribe(func(e CameraClosingEvent) {
			p.Emit(p.CameraEventsChannel(e.TextureID), CameraEventPayload{EventType: EventTypeCameraClosing})
		}),
		bus.Subscribe(func(e CameraErrorEvent) {
			p.Emit(p.CameraEventsChannel(e.TextureID), CameraEventPayload{
				EventType:        EventTypeError,
				ErrorDescription: e.Description,
			})
		}),
		bus.Subscribe(func(e ImageFrameEvent) {
			p.Emit(p.ImageStreamChannel(), e.Frame)
		}),
	)
	return p
}

// CameraEventsChannel names the event channel of a session's preview texture.
func (p *Publisher) CameraEventsChannel(textureID int64) string {
	return fmt.Sprintf("%s/cameraEvents%d", p.prefix, textureID)
}

// ImageStreamChannel names the frame channel.
func (p *Publisher) ImageStreamChannel() string {
	return p.prefix + "/camera/imageStream"
}

// Listen attaches sink to channel, replacing any previous sink. The returned
// function detaches it; it does nothing once the sink has been replaced.
func (p *Publisher) Listen(channel string, sink Sink) func() {
	entry := &sinkEntry{sink: sink}

	p.mu.Lock()
	if _, replaced := p.sinks[channel]; replaced {
		p.logger.Debug("Replacing channel listener", "channel", channel)
	}
	p.sinks[channel] = entry
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.sinks[channel] == entry {
			delete(p.sinks, channel)
		}
	}
}

// Listening reports whether channel has a sink.
func (p *Publisher) Listening(channel string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.sinks[channel]
	return ok
}

// Emit delivers payload to the channel's sink. It reports false when the
// payload was dropped for lack of a listener.
func (p *Publisher) Emit(channel string, payload any) bool {
	p.mu.Lock()
	entry := p.sinks[channel]
	p.mu.Unlock()

	if entry == nil {
		p.logger.Debug("Dropping event without listener", "channel", channel)
		metrics.IncEventsDropped(channel)
		return false
	}
	entry.sink(payload)
	return true
}

// Close unsubscribes from the bus and detaches all sinks.
func (p *Publisher) Close() {
	for _, unsub := range p.unsubscribe {
		unsub()
	}
	p.unsubscribe = nil

	p.mu.Lock()
	clear(p.sinks)
	p.mu.Unlock()
}
