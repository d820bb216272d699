package camera

import "maps"

// Characteristics are the static properties of a camera device.
type Characteristics struct {
	SensorOrientation int
	LensFacing        LensFacing
	MaxDigitalZoom    float64
	ActiveArray       Rect
	MaxAFRegions      int
	// PreviewSizes are the output sizes supported for the preview texture class.
	PreviewSizes []Size
	JPEGSizes    []Size
	HasFlash     bool
}

// DeviceErrorCode is the reason reported by DeviceCallbacks.OnError.
type DeviceErrorCode int

// Device error codes.
const (
	DeviceErrorInUse DeviceErrorCode = iota + 1
	DeviceErrorMaxInUse
	DeviceErrorDisabled
	DeviceErrorDevice
	DeviceErrorService
)

// Description returns the host-facing text for a device error.
func (c DeviceErrorCode) Description() string {
	switch c {
	case DeviceErrorInUse:
		return "The camera device is in use already."
	case DeviceErrorMaxInUse:
		return "Max cameras in use"
	case DeviceErrorDisabled:
		return "The camera device could not be opened due to a device policy."
	case DeviceErrorDevice:
		return "The camera device has encountered a fatal error"
	case DeviceErrorService:
		return "The camera service has encountered a fatal error."
	default:
		return "Unknown camera error"
	}
}

// DeviceCallbacks receive device state changes. They may be invoked on any goroutine.
type DeviceCallbacks struct {
	OnOpened       func(Device)
	OnClosed       func(Device)
	OnDisconnected func(Device)
	OnError        func(Device, DeviceErrorCode)
}

// SessionCallbacks receive the outcome of CreateCaptureSession.
type SessionCallbacks struct {
	OnConfigured      func(CaptureSession)
	OnConfigureFailed func(CaptureSession)
}

// CaptureFailureReason explains why a one-shot capture failed.
type CaptureFailureReason int

// Capture failure reasons.
const (
	CaptureFailureError CaptureFailureReason = iota
	CaptureFailureFlushed
	CaptureFailureUnknown
)

// Description returns the host-facing text for a capture failure.
func (r CaptureFailureReason) Description() string {
	switch r {
	case CaptureFailureError:
		return "An error happened in the framework"
	case CaptureFailureFlushed:
		return "The capture has failed due to an abortCaptures() call"
	default:
		return "Unknown reason"
	}
}

// CaptureCallbacks receive the outcome of a one-shot capture. Either field may be nil.
type CaptureCallbacks struct {
	OnCompleted func(CaptureRequest)
	OnFailed    func(CaptureRequest, CaptureFailureReason)
}

// Manager enumerates and opens cameras and allocates readers and recorders.
type Manager interface {
	CameraIDs() ([]string, error)
	Characteristics(id string) (Characteristics, error)
	// OpenCamera starts opening a device; the outcome arrives via callbacks.
	OpenCamera(id string, callbacks DeviceCallbacks) error
	NewImageReader(size Size, format ImageFormat, maxImages int) (ImageReader, error)
	NewRecorder() (Recorder, error)
}

// Device is an open camera device.
type Device interface {
	ID() string
	CreateCaptureRequest(template Template) (*RequestBuilder, error)
	// CreateCaptureSession configures a pipeline for surfaces; the outcome arrives via callbacks.
	CreateCaptureSession(surfaces []Surface, callbacks SessionCallbacks) error
	Close()
}

// CaptureSession is a configured pipeline bound to a device.
type CaptureSession interface {
	Capture(request CaptureRequest, callbacks CaptureCallbacks) error
	SetRepeatingRequest(request CaptureRequest) error
	StopRepeating() error
	Close()
}

// Surface is an opaque output target handle.
type Surface string

// ImageFormat identifies the pixel layout of reader images.
type ImageFormat int

// Image formats, numbered like the platform constants hosts expect.
const (
	ImageFormatYUV420 ImageFormat = 35
	ImageFormatJPEG   ImageFormat = 256
)

// Plane is one plane of an image.
type Plane struct {
	RowStride   int
	PixelStride int
	Bytes       []byte
}

// Image is a frame acquired from an ImageReader. It must be closed.
type Image interface {
	Width() int
	Height() int
	Format() ImageFormat
	Planes() []Plane
	Close()
}

// ImageReader receives frames rendered into its surface.
type ImageReader interface {
	Surface() Surface
	// SetOnImageAvailable installs the frame listener; nil removes it.
	SetOnImageAvailable(listener func(ImageReader))
	// AcquireLatestImage returns the newest image, or nil when none is queued.
	AcquireLatestImage() (Image, error)
	Close()
}

// RecorderConfig configures a Recorder before Prepare.
type RecorderConfig struct {
	OutputPath      string
	EnableAudio     bool
	AudioSampleRate int
	AudioEncoder    string
	VideoEncoder    string
	VideoBitRate    int
	VideoFrameRate  int
	VideoSize       Size
	Container       string
	OrientationHint int
}

// Recorder encodes frames rendered into its surface to a file.
type Recorder interface {
	Configure(config RecorderConfig) error
	Prepare() error
	Surface() Surface
	Start() error
	Stop() error
	Reset()
	Release()
}

// Template selects the platform defaults for a capture request.
type Template int

// Capture request templates.
const (
	TemplatePreview Template = iota + 1
	TemplateStillCapture
	TemplateRecord
)

func (t Template) String() string {
	switch t {
	case TemplatePreview:
		return "preview"
	case TemplateStillCapture:
		return "still"
	case TemplateRecord:
		return "record"
	default:
		return "unknown"
	}
}

// Key names a capture request field.
type Key string

// Capture request keys.
const (
	KeyJPEGOrientation  Key = "JPEG_ORIENTATION"
	KeyControlMode      Key = "CONTROL_MODE"
	KeyControlAEMode    Key = "CONTROL_AE_MODE"
	KeyFlashMode        Key = "FLASH_MODE"
	KeyControlAFMode    Key = "CONTROL_AF_MODE"
	KeyControlAFTrigger Key = "CONTROL_AF_TRIGGER"
	KeyControlAFRegions Key = "CONTROL_AF_REGIONS"
	KeyScalerCropRegion Key = "SCALER_CROP_REGION"
)

// Values for the control keys.
const (
	ControlModeAuto = "AUTO"

	AEModeOn = "ON"

	FlashModeTorch = "TORCH"

	AFModeOff  = "OFF"
	AFModeAuto = "AUTO"

	AFTriggerCancel = "CANCEL"
	AFTriggerStart  = "START"
)

// CaptureRequest is an immutable snapshot of a RequestBuilder.
type CaptureRequest struct {
	Template Template
	Targets  []Surface
	Values   map[Key]any
	Tag      string
}

// Get returns the value set for key.
func (r CaptureRequest) Get(key Key) (any, bool) {
	v, ok := r.Values[key]
	return v, ok
}

// HasTarget reports whether the request renders into s.
func (r CaptureRequest) HasTarget(s Surface) bool {
	for _, t := range r.Targets {
		if t == s {
			return true
		}
	}
	return false
}

// RequestBuilder accumulates capture request fields.
type RequestBuilder struct {
	template Template
	targets  []Surface
	values   map[Key]any
	tag      string
}

// NewRequestBuilder returns an empty builder for template.
func NewRequestBuilder(template Template) *RequestBuilder {
	return &RequestBuilder{
		template: template,
		values:   make(map[Key]any),
	}
}

// AddTarget adds an output surface.
func (b *RequestBuilder) AddTarget(s Surface) {
	b.targets = append(b.targets, s)
}

// Set assigns a field.
func (b *RequestBuilder) Set(key Key, value any) {
	b.values[key] = value
}

// Clear removes a field.
func (b *RequestBuilder) Clear(key Key) {
	delete(b.values, key)
}

// Get returns the current value of a field.
func (b *RequestBuilder) Get(key Key) (any, bool) {
	v, ok := b.values[key]
	return v, ok
}

// SetTag attaches an opaque tag echoed back in capture callbacks.
func (b *RequestBuilder) SetTag(tag string) {
	b.tag = tag
}

// Build snapshots the builder.
func (b *RequestBuilder) Build() CaptureRequest {
	targets := make([]Surface, len(b.targets))
	copy(targets, b.targets)
	return CaptureRequest{
		Template: b.template,
		Targets:  targets,
		Values:   maps.Clone(b.values),
		Tag:      b.tag,
	}
}
