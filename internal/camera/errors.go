package camera

import (
	"errors"
	"fmt"
)

// ErrCameraAccess is wrapped by platforms when the camera subsystem refuses an
// operation (device busy, disconnected, service unavailable).
var ErrCameraAccess = errors.New("camera access")

// Kind classifies errors surfaced to the host.
type Kind int

// Error kinds.
const (
	KindInternal Kind = iota
	KindPermissionDenied
	KindPermissionOngoing
	KindPlatformUnavailable
	KindInvalidPreset
	KindDeviceClosed
	KindConfigureFailed
	KindCaptureFailed
	KindVideoRecordingFailed
	KindFileExists
	KindIOError
	KindInvalidArguments
)

// Code returns the wire code reported to the host for this kind.
func (k Kind) Code() string {
	switch k {
	case KindPermissionDenied, KindPermissionOngoing:
		return "cameraPermission"
	case KindPlatformUnavailable:
		return "cameraAccess"
	case KindInvalidPreset:
		return "invalidPreset"
	case KindDeviceClosed:
		return "deviceClosed"
	case KindConfigureFailed:
		return "configureFailed"
	case KindCaptureFailed:
		return "captureFailure"
	case KindVideoRecordingFailed:
		return "videoRecordingFailed"
	case KindFileExists:
		return "fileExists"
	case KindIOError:
		return "IOError"
	case KindInvalidArguments:
		return "invalidArguments"
	default:
		return "internalError"
	}
}

func (k Kind) String() string {
	switch k {
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindPermissionOngoing:
		return "PermissionOngoing"
	case KindPlatformUnavailable:
		return "PlatformUnavailable"
	case KindInvalidPreset:
		return "InvalidPreset"
	case KindDeviceClosed:
		return "DeviceClosed"
	case KindConfigureFailed:
		return "ConfigureFailed"
	case KindCaptureFailed:
		return "CaptureFailed"
	case KindVideoRecordingFailed:
		return "VideoRecordingFailed"
	case KindFileExists:
		return "FileExists"
	case KindIOError:
		return "IOError"
	case KindInvalidArguments:
		return "InvalidArguments"
	default:
		return "Internal"
	}
}

// Error is a camera domain error carrying a host-visible kind.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind.Code(), e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Code(), e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NewError creates a new camera error.
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

// KindOf returns the kind of err. Camera-access failures that were not already
// classified map to KindPlatformUnavailable; anything else is KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, ErrCameraAccess) {
		return KindPlatformUnavailable
	}
	return KindInternal
}

// Translate converts an arbitrary platform error into an *Error. Camera-access
// failures become PlatformUnavailable with the platform message as detail.
func Translate(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, ErrCameraAccess) {
		return NewError(KindPlatformUnavailable, err.Error(), err)
	}
	return NewError(KindInternal, err.Error(), err)
}

func fileExistsError(path string) *Error {
	return NewError(KindFileExists, fmt.Sprintf("File at path '%s' already exists. Cannot overwrite.", path), nil)
}
