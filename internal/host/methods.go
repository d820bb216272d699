package host

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camctl/internal/mainloop"
	"github.com/smazurov/camctl/internal/metrics"
)

// statusClientClosedRequest is answered when the caller goes away before the
// reply; nobody reads it, but the access log records it.
const statusClientClosedRequest = 499

// registerMethodRoutes registers the method channel.
func (s *Server) registerMethodRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "call-method",
		Method:      http.MethodPost,
		Path:        "/api/methods/{method}",
		Summary:     "Call Method",
		Description: "Run a camera method. Application errors are part of the reply body; " +
			"HTTP errors mean the reply never arrived.",
		Tags:     []string{"methods"},
		Security: withAuth(),
		Errors:   []int{401, 503, 504},
	}, func(ctx context.Context, input *MethodCallRequest) (*MethodCallResponse, error) {
		ctx, cancel := context.WithTimeout(ctx, s.opts.CommandTimeout)
		defer cancel()

		reply, err := s.opts.Commander.Call(ctx, input.Method, input.Body)
		if err != nil {
			s.logger.Warn("Method reply not received", "method", input.Method, "error", err)
			switch {
			case errors.Is(err, mainloop.ErrStopped):
				return nil, huma.Error503ServiceUnavailable("method could not be dispatched", err)
			case errors.Is(err, context.DeadlineExceeded):
				return nil, huma.Error504GatewayTimeout("method did not reply in time", err)
			default:
				return nil, huma.NewError(statusClientClosedRequest, "request cancelled before the reply", err)
			}
		}

		body := MethodReply{}
		switch {
		case reply.NotImplemented:
			body.NotImplemented = true
		case reply.Err != nil:
			body.Error = &MethodError{
				Code:    reply.Err.Code,
				Message: reply.Err.Message,
				Details: reply.Err.Details,
			}
		default:
			body.Success = true
			body.Result = reply.Value
		}
		return &MethodCallResponse{Body: body}, nil
	})
}

// registerDeviceRoutes registers the host-side device surfaces: orientation
// readings, permission prompts and session status.
func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "set-orientation",
		Method:      http.MethodPost,
		Path:        "/api/orientation",
		Summary:     "Report Orientation",
		Description: "Feed a raw device orientation reading to the orientation watcher",
		Tags:        []string{"device"},
		Security:    withAuth(),
		Errors:      []int{401, 422},
	}, func(_ context.Context, input *OrientationRequest) (*OrientationResponse, error) {
		w := s.opts.Orientation
		w.OnOrientationChanged(input.Body.Degrees)
		return &OrientationResponse{Body: OrientationData{Enabled: w.Enabled(), Current: w.Current()}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-permissions",
		Method:      http.MethodGet,
		Path:        "/api/permissions",
		Summary:     "Permission State",
		Description: "Get the permission policy and the open prompt, if any",
		Tags:        []string{"device"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*PermissionsResponse, error) {
		return &PermissionsResponse{Body: s.permissionsData()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "answer-permissions",
		Method:      http.MethodPost,
		Path:        "/api/permissions",
		Summary:     "Answer Permission Prompt",
		Description: "Grant or deny the open permission prompt",
		Tags:        []string{"device"},
		Security:    withAuth(),
		Errors:      []int{401, 409},
	}, func(_ context.Context, input *PermissionAnswerRequest) (*PermissionsResponse, error) {
		if err := s.opts.Bridge.AnswerPermissions(input.Body.Granted); err != nil {
			return nil, huma.Error409Conflict(err.Error())
		}
		return &PermissionsResponse{Body: s.permissionsData()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/api/sessions",
		Summary:     "Sessions",
		Description: "Current camera sessions and preview textures",
		Tags:        []string{"device"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*SessionsResponse, error) {
		resp := &SessionsResponse{}
		resp.Body.Sessions = metrics.GetAllSessions()
		resp.Body.Textures = s.opts.Bridge.Textures()
		return resp, nil
	})
}

func (s *Server) permissionsData() PermissionsData {
	pending := s.opts.Bridge.PendingPermissions()
	names := make([]string, 0, len(pending))
	for _, p := range pending {
		names = append(names, string(p))
	}
	return PermissionsData{Policy: s.opts.Bridge.Policy(), Pending: names}
}
