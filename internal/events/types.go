package events

import "time"

// Event type constants for kelindar/event.
const (
	TypeCameraClosing uint32 = iota + 1
	TypeCameraError
	TypeImageFrame
	TypeModeChanged
	TypeCommandCompleted
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// CameraClosingEvent is published when the platform reports the device closed.
type CameraClosingEvent struct {
	TextureID int64  `json:"texture_id" example:"1" doc:"Preview texture of the session"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CameraClosingEvent.
func (e CameraClosingEvent) Type() uint32 { return TypeCameraClosing }

// CameraErrorEvent carries an asynchronous session failure.
type CameraErrorEvent struct {
	TextureID   int64  `json:"texture_id" example:"1" doc:"Preview texture of the session"`
	Description string `json:"description" example:"The camera was disconnected." doc:"Error description"`
	Timestamp   string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CameraErrorEvent.
func (e CameraErrorEvent) Type() uint32 { return TypeCameraError }

// ImagePlane is one plane of a streamed frame.
type ImagePlane struct {
	BytesPerRow   int    `json:"bytesPerRow" doc:"Row stride in bytes"`
	BytesPerPixel int    `json:"bytesPerPixel" doc:"Pixel stride in bytes"`
	Bytes         []byte `json:"bytes" doc:"Plane contents"`
}

// ImageFrame is a YUV frame delivered on the image stream channel.
type ImageFrame struct {
	Width  int          `json:"width" example:"640" doc:"Frame width"`
	Height int          `json:"height" example:"480" doc:"Frame height"`
	Format int          `json:"format" example:"35" doc:"Platform image format"`
	Planes []ImagePlane `json:"planes" doc:"Image planes"`
}

// ImageFrameEvent is published for every frame acquired while streaming.
type ImageFrameEvent struct {
	Frame ImageFrame `json:"frame"`
}

// Type returns the event type identifier for ImageFrameEvent.
func (e ImageFrameEvent) Type() uint32 { return TypeImageFrame }

// ModeChangedEvent is published when a session switches between preview,
// streaming and recording.
type ModeChangedEvent struct {
	SessionID string `json:"session_id" doc:"Session identifier"`
	TextureID int64  `json:"texture_id" example:"1" doc:"Preview texture of the session"`
	From      string `json:"from" example:"preview" doc:"Previous mode"`
	To        string `json:"to" example:"recording" doc:"New mode"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ModeChangedEvent.
func (e ModeChangedEvent) Type() uint32 { return TypeModeChanged }

// CommandCompletedEvent is published once a host command has been answered.
type CommandCompletedEvent struct {
	Method     string  `json:"method" example:"takePicture" doc:"Host method name"`
	Outcome    string  `json:"outcome" example:"success" doc:"success, error or not_implemented"`
	Code       string  `json:"code,omitempty" example:"fileExists" doc:"Error code when the command failed"`
	DurationMs float64 `json:"duration_ms" doc:"Time from dispatch to reply"`
	Timestamp  string  `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CommandCompletedEvent.
func (e CommandCompletedEvent) Type() uint32 { return TypeCommandCompleted }

// LogEntryEvent carries one log record to /api/events clients.
type LogEntryEvent struct {
	Timestamp  string         `json:"timestamp" example:"2026-01-27T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"camera" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

// Now formats the current time the way event timestamps are written.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
