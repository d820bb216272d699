package host

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/camctl/internal/events"
)

// registerEventRoutes registers the diagnostic event stream. Unlike the
// named channels it fans out to every connected client.
func (s *Server) registerEventRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Session mode changes, command completions, closing and error events, log entries",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"mode-changed":      events.ModeChangedEvent{},
		"command-completed": events.CommandCompletedEvent{},
		"camera-closing":    events.CameraClosingEvent{},
		"camera-error":      events.CameraErrorEvent{},
		"log-entry":         events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.ModeChangedEvent](s.opts.Bus, eventCh),
			events.SubscribeToChannel[events.CommandCompletedEvent](s.opts.Bus, eventCh),
			events.SubscribeToChannel[events.CameraClosingEvent](s.opts.Bus, eventCh),
			events.SubscribeToChannel[events.CameraErrorEvent](s.opts.Bus, eventCh),
			events.SubscribeToChannel[events.LogEntryEvent](s.opts.Bus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
