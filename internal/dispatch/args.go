package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/smazurov/camctl/internal/camera"
)

// Host method names.
const (
	MethodAvailableCameras         = "availableCameras"
	MethodInitialize               = "initialize"
	MethodTakePicture              = "takePicture"
	MethodPrepareForVideoRecording = "prepareForVideoRecording"
	MethodStartVideoRecording      = "startVideoRecording"
	MethodStopVideoRecording       = "stopVideoRecording"
	MethodStartImageStream         = "startImageStream"
	MethodStopImageStream          = "stopImageStream"
	MethodUpdateZoomScale          = "updateZoomScale"
	MethodSetFocusPoint            = "setFocusPoint"
	MethodDispose                  = "dispose"
)

var knownMethods = map[string]bool{
	MethodAvailableCameras:         true,
	MethodInitialize:               true,
	MethodTakePicture:              true,
	MethodPrepareForVideoRecording: true,
	MethodStartVideoRecording:      true,
	MethodStopVideoRecording:       true,
	MethodStartImageStream:         true,
	MethodStopImageStream:          true,
	MethodUpdateZoomScale:          true,
	MethodSetFocusPoint:            true,
	MethodDispose:                  true,
}

type initializeArgs struct {
	CameraName       string `json:"cameraName"`
	ResolutionPreset string `json:"resolutionPreset"`
	EnableAudio      bool   `json:"enableAudio"`
}

func (a *initializeArgs) validate() error {
	if a.CameraName == "" {
		return fmt.Errorf("cameraName is required")
	}
	if a.ResolutionPreset == "" {
		return fmt.Errorf("resolutionPreset is required")
	}
	return nil
}

type takePictureArgs struct {
	Path     string `json:"path"`
	UseFlash bool   `json:"useFlash"`
}

func (a *takePictureArgs) validate() error {
	if a.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

type startVideoRecordingArgs struct {
	FilePath string `json:"filePath"`
}

func (a *startVideoRecordingArgs) validate() error {
	if a.FilePath == "" {
		return fmt.Errorf("filePath is required")
	}
	return nil
}

type zoomArgs struct {
	Scale *float64 `json:"scale"`
}

func (a *zoomArgs) validate() error {
	if a.Scale == nil {
		return fmt.Errorf("scale is required")
	}
	if *a.Scale <= 0 {
		return fmt.Errorf("scale must be positive, got %v", *a.Scale)
	}
	return nil
}

type focusArgs struct {
	OffsetX *float64 `json:"offsetX"`
	OffsetY *float64 `json:"offsetY"`
}

func (a *focusArgs) validate() error {
	if a.OffsetX == nil || a.OffsetY == nil {
		return fmt.Errorf("offsetX and offsetY are required")
	}
	return nil
}

type validator interface {
	validate() error
}

// decodeArgs converts the loosely typed argument map into dst and validates it.
func decodeArgs(args map[string]any, dst validator) error {
	data, err := json.Marshal(args)
	if err != nil {
		return camera.NewError(camera.KindInvalidArguments, "arguments are not serializable", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return camera.NewError(camera.KindInvalidArguments, fmt.Sprintf("malformed arguments: %v", err), err)
	}
	if err := dst.validate(); err != nil {
		return camera.NewError(camera.KindInvalidArguments, err.Error(), err)
	}
	return nil
}

// CameraInfo describes a camera in the availableCameras reply.
type CameraInfo struct {
	Name              string `json:"name"`
	SensorOrientation int    `json:"sensorOrientation"`
	LensFacing        string `json:"lensFacing"`
}
