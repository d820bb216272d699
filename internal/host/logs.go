package host

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camctl/internal/logging"
)

// registerLogRoutes registers the recent log endpoint.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Most recent entries of the in-memory log buffer",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401, 422},
	}, func(_ context.Context, input *LogsRequest) (*LogsResponse, error) {
		entries := logging.GetBuffer().Tail(input.Lines)
		resp := &LogsResponse{}
		resp.Body.Lines = make([]string, 0, len(entries))
		for _, entry := range entries {
			resp.Body.Lines = append(resp.Body.Lines, logging.FormatLogLine(entry))
		}
		return resp, nil
	})
}
