package host

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/camctl/internal/events"
	"github.com/smazurov/camctl/internal/metrics"
)

// channelBuffer is how many payloads a slow client may fall behind before
// payloads are dropped.
const channelBuffer = 16

// registerChannelRoutes exposes the publisher's named channels as SSE streams.
// A channel has one listener, so a new client takes over from the previous one.
func (s *Server) registerChannelRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "camera-events",
		Method:      http.MethodGet,
		Path:        "/api/channels/camera-events/{textureId}",
		Summary:     "Camera Events",
		Description: "Closing and error events of the session rendering into the texture",
		Tags:        []string{"channels"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"camera-event": events.CameraEventPayload{},
	}, func(ctx context.Context, input *CameraEventsRequest, send sse.Sender) {
		s.forward(ctx, s.opts.Publisher.CameraEventsChannel(input.TextureID), send)
	})

	sse.Register(s.api, huma.Operation{
		OperationID: "image-stream",
		Method:      http.MethodGet,
		Path:        "/api/channels/image-stream",
		Summary:     "Image Stream",
		Description: "YUV frames produced while the image stream is running",
		Tags:        []string{"channels"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"frame": events.ImageFrame{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		s.forward(ctx, s.opts.Publisher.ImageStreamChannel(), send)
	})
}

// forward listens on channel and sends payloads until the client leaves. A
// client whose listener was replaced stays connected but receives nothing.
func (s *Server) forward(ctx context.Context, channel string, send sse.Sender) {
	payloads := make(chan any, channelBuffer)
	unlisten := s.opts.Publisher.Listen(channel, func(payload any) {
		select {
		case payloads <- payload:
		default:
			metrics.IncEventsDropped(channel)
		}
	})
	defer unlisten()
	s.logger.Debug("Channel listener attached", "channel", channel)

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Channel listener detached", "channel", channel)
			return
		case payload := <-payloads:
			if err := send.Data(payload); err != nil {
				return
			}
		}
	}
}
