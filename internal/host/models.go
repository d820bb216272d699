package host

import (
	"github.com/smazurov/camctl/internal/metrics"
	"github.com/smazurov/camctl/internal/version"
)

// HealthData is the health check body.
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Body HealthData
}

// VersionResponse is the build information response.
type VersionResponse struct {
	Body version.Info
}

// MethodCallRequest is a host method invocation. The body is the argument map.
type MethodCallRequest struct {
	Method string         `path:"method" example:"initialize" doc:"Method name"`
	Body   map[string]any `required:"false"`
}

// MethodError is the error part of a method reply.
type MethodError struct {
	Code    string `json:"code" example:"cameraPermission" doc:"Error code"`
	Message string `json:"message" example:"Camera permission not granted" doc:"Human readable message"`
	Details any    `json:"details,omitempty" doc:"Optional error details"`
}

// MethodReply mirrors the three terminal replies of a method call.
type MethodReply struct {
	Success        bool         `json:"success" doc:"True when the method succeeded"`
	Result         any          `json:"result,omitempty" doc:"Method result"`
	Error          *MethodError `json:"error,omitempty" doc:"Set when the method failed"`
	NotImplemented bool         `json:"notImplemented,omitempty" doc:"Set for unknown methods"`
}

// MethodCallResponse is the reply to a method call.
type MethodCallResponse struct {
	Body MethodReply
}

// CameraEventsRequest selects the event channel of a preview texture.
type CameraEventsRequest struct {
	TextureID int64 `path:"textureId" minimum:"1" example:"1" doc:"Preview texture id returned by initialize"`
}

// OrientationRequest is a raw device orientation reading.
type OrientationRequest struct {
	Body struct {
		Degrees int `json:"degrees" minimum:"-1" maximum:"359" example:"90" doc:"Orientation in degrees, -1 when unknown"`
	}
}

// OrientationData is the state of the orientation watcher.
type OrientationData struct {
	Enabled bool `json:"enabled" doc:"Whether readings are accepted"`
	Current int  `json:"current" example:"90" doc:"Rounded orientation, -1 when unknown"`
}

// OrientationResponse returns the orientation watcher state.
type OrientationResponse struct {
	Body OrientationData
}

// PermissionsData describes the permission policy and the open prompt.
type PermissionsData struct {
	Policy  string   `json:"policy" example:"prompt" doc:"grant, deny or prompt"`
	Pending []string `json:"pending" doc:"Permissions of the open prompt"`
}

// PermissionsResponse returns permission state.
type PermissionsResponse struct {
	Body PermissionsData
}

// PermissionAnswerRequest answers the open permission prompt.
type PermissionAnswerRequest struct {
	Body struct {
		Granted bool `json:"granted" doc:"Whether the user granted the request"`
	}
}

// SessionsResponse lists tracked sessions by id.
type SessionsResponse struct {
	Body struct {
		Sessions map[string]*metrics.SessionMetrics `json:"sessions" doc:"Sessions by id"`
		Textures []TextureInfo                      `json:"textures" doc:"Live preview textures"`
	}
}

// LogsRequest limits the number of returned log lines.
type LogsRequest struct {
	Lines int `query:"lines" minimum:"1" maximum:"500" default:"100" doc:"Number of most recent entries"`
}

// LogsResponse returns recent log entries.
type LogsResponse struct {
	Body struct {
		Lines []string `json:"lines" doc:"Formatted log lines, oldest first"`
	}
}
