package camera

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/smazurov/camctl/internal/events"
	"github.com/smazurov/camctl/internal/logging"
	"github.com/smazurov/camctl/internal/metrics"
)

// Recorder settings applied to every recording.
const (
	RecordAudioSampleRate = 16000
	RecordAudioEncoder    = "aac"
	RecordVideoEncoder    = "h264"
	RecordVideoBitRate    = 1024 * 1000
	RecordVideoFrameRate  = 27
	RecordContainer       = "mp4"
)

// Reader queue depth for both image readers.
const readerMaxImages = 2

// Messages of asynchronous failures.
const (
	msgDisconnected        = "The camera was disconnected."
	msgClosedDuringConfig  = "The camera was closed during configuration."
	msgPreviewConfigFailed = "Failed to configure the camera for preview."
	msgStreamConfigFailed  = "Failed to configure the camera for streaming images."
	msgRecordConfigFailed  = "Failed to configure camera session"
)

// SessionConfig holds what a session needs from its surroundings.
type SessionConfig struct {
	CameraID    string
	Preset      ResolutionPreset
	EnableAudio bool

	Manager  Manager
	Host     Host
	Executor Executor
	Bus      *events.Bus
	// Orientation supplies the device orientation; nil means unknown.
	Orientation *OrientationWatcher
}

// InitializeResult is the reply to a successful Open.
type InitializeResult struct {
	TextureID     int64 `json:"textureId"`
	PreviewWidth  int   `json:"previewWidth"`
	PreviewHeight int   `json:"previewHeight"`
}

// Session owns one open camera: the device, its capture session, the image
// readers, the recorder and the preview texture. Apart from the zoom cropper,
// all state is confined to the executor goroutine, and every method must be
// called from it.
type Session struct {
	id          string
	cameraID    string
	enableAudio bool
	chars       Characteristics
	sizes       OutputSizes

	manager     Manager
	exec        Executor
	bus         *events.Bus
	orientation *OrientationWatcher
	logger      *slog.Logger

	texture Texture
	cropper *ZoomCropper
	focus   *FocusController
	modes   *modeMachine

	device        Device
	capture       CaptureSession
	builder       *RequestBuilder
	pictureReader ImageReader
	streamReader  ImageReader
	recorder      Recorder
	recording     bool

	// generation identifies the latest capture session request; configure
	// callbacks of older requests are stale.
	generation uint64
	disposed   bool
}

// NewSession validates the preset, reads the camera characteristics, selects
// the output sizes and allocates the preview texture. The device is not opened.
func NewSession(cfg SessionConfig) (*Session, error) {
	if _, err := ParsePreset(string(cfg.Preset)); err != nil {
		return nil, err
	}

	chars, err := cfg.Manager.Characteristics(cfg.CameraID)
	if err != nil {
		return nil, Translate(err)
	}

	s := &Session{
		id:          uuid.NewString(),
		cameraID:    cfg.CameraID,
		enableAudio: cfg.EnableAudio,
		chars:       chars,
		manager:     cfg.Manager,
		exec:        cfg.Executor,
		bus:         cfg.Bus,
		orientation: cfg.Orientation,
	}
	s.logger = logging.GetLogger("camera").With("session_id", s.id, "camera_id", cfg.CameraID)

	s.sizes, err = SelectSizes(SizeRequest{
		PreviewSizes:     chars.PreviewSizes,
		JPEGSizes:        chars.JPEGSizes,
		MinHeight:        cfg.Preset.MinHeight(),
		Screen:           cfg.Host.ScreenResolution(),
		MediaOrientation: s.mediaOrientation(),
	})
	if err != nil {
		return nil, err
	}

	s.texture, err = cfg.Host.AllocatePreviewTexture()
	if err != nil {
		return nil, NewError(KindInternal, "failed to allocate preview texture", err)
	}

	s.cropper = NewZoomCropper(chars.ActiveArray, chars.MaxDigitalZoom)
	s.focus = NewFocusController(chars.MaxAFRegions, cfg.Executor, s.logger)
	s.modes = newModeMachine(s.onModeChanged)

	metrics.RegisterSession(s.id, s.cameraID, s.texture.ID())
	s.logger.Info("Session created",
		"texture_id", s.texture.ID(),
		"capture", s.sizes.Capture.String(),
		"preview", s.sizes.Preview.String(),
		"video", s.sizes.Video.String())
	return s, nil
}

// ID returns the session identifier used in logs and metrics.
func (s *Session) ID() string { return s.id }

// CameraID returns the platform camera identifier.
func (s *Session) CameraID() string { return s.cameraID }

// TextureID returns the preview texture identifier.
func (s *Session) TextureID() int64 { return s.texture.ID() }

// Sizes returns the output sizes chosen at construction.
func (s *Session) Sizes() OutputSizes { return s.sizes }

// Mode returns the current session mode.
func (s *Session) Mode() Mode { return s.modes.current() }

// Recording reports whether a recording is in progress.
func (s *Session) Recording() bool { return s.recording }

// Zoom returns the cumulative zoom factor.
func (s *Session) Zoom() float64 { return s.cropper.Current() }

// CropRegion returns the current crop rectangle.
func (s *Session) CropRegion() Rect { return s.cropper.Rect() }

// FocusState returns the state of the tap-to-focus controller.
func (s *Session) FocusState() FocusState { return s.focus.State() }

// Disposed reports whether Dispose has run.
func (s *Session) Disposed() bool { return s.disposed }

func (s *Session) captureSession() CaptureSession { return s.capture }

func (s *Session) repeatingBuilder() *RequestBuilder { return s.builder }

func (s *Session) mediaOrientation() int {
	device := OrientationUnknown
	if s.orientation != nil {
		device = s.orientation.Current()
	}
	return MediaOrientation(s.chars.SensorOrientation, s.chars.LensFacing, device)
}

// Open creates the image readers and opens the device. Once the device is
// open, preview starts and result receives the texture id and preview size.
func (s *Session) Open(result Result) {
	result = Once(result)
	if s.disposed {
		result.Error(KindDeviceClosed.Code(), "Session has been disposed", nil)
		return
	}

	picture, err := s.manager.NewImageReader(s.sizes.Capture, ImageFormatJPEG, readerMaxImages)
	if err != nil {
		ReplyError(result, err)
		return
	}
	stream, err := s.manager.NewImageReader(s.sizes.Preview, ImageFormatYUV420, readerMaxImages)
	if err != nil {
		picture.Close()
		ReplyError(result, err)
		return
	}
	s.pictureReader = picture
	s.streamReader = stream

	err = s.manager.OpenCamera(s.cameraID, DeviceCallbacks{
		OnOpened: func(d Device) {
			s.exec.Post(func() { s.onOpened(d, result) })
		},
		OnClosed: func(Device) {
			s.exec.Post(s.onClosed)
		},
		OnDisconnected: func(d Device) {
			s.exec.Post(func() { s.onDeviceFault(d, msgDisconnected, result) })
		},
		OnError: func(d Device, code DeviceErrorCode) {
			s.exec.Post(func() { s.onDeviceFault(d, code.Description(), result) })
		},
	})
	if err != nil {
		ReplyError(result, err)
	}
}

func (s *Session) onOpened(d Device, result Result) {
	if s.disposed {
		d.Close()
		return
	}
	s.device = d
	metrics.SetDeviceOpen(s.cameraID, true)

	if err := s.StartPreview(); err != nil {
		ReplyError(result, err)
		s.closeDevice()
		return
	}
	s.logger.Info("Camera opened")
	result.Success(InitializeResult{
		TextureID:     s.texture.ID(),
		PreviewWidth:  s.sizes.Preview.Width,
		PreviewHeight: s.sizes.Preview.Height,
	})
}

func (s *Session) onClosed() {
	s.logger.Info("Camera closed")
	metrics.SetDeviceOpen(s.cameraID, false)
	s.bus.Publish(events.CameraClosingEvent{
		TextureID: s.texture.ID(),
		Timestamp: events.Now(),
	})
}

// onDeviceFault handles disconnects and device errors. A fault before the
// device finished opening fails the pending initialize instead.
func (s *Session) onDeviceFault(d Device, description string, result Result) {
	if s.disposed {
		return
	}
	s.logger.Warn("Camera device fault", "description", description)
	if s.device == nil {
		d.Close()
		result.Error(KindPlatformUnavailable.Code(), description, nil)
		return
	}
	s.closeCaptureSession()
	s.closeDevice()
	s.publishError(description)
}

func (s *Session) publishError(description string) {
	s.bus.Publish(events.CameraErrorEvent{
		TextureID:   s.texture.ID(),
		Description: description,
		Timestamp:   events.Now(),
	})
}

func (s *Session) onModeChanged(from, to Mode) {
	s.logger.Debug("Mode changed", "from", from, "to", to)
	metrics.SetSessionMode(s.id, string(to))
	s.bus.Publish(events.ModeChangedEvent{
		SessionID: s.id,
		TextureID: s.texture.ID(),
		From:      string(from),
		To:        string(to),
		Timestamp: events.Now(),
	})
}

// configureHandlers react to the outcome of a capture session request.
type configureHandlers struct {
	ready  func(CaptureSession) error
	failed func(*Error)
}

// configure replaces the capture session. Callbacks of a request superseded
// by a newer one close their session and are otherwise ignored.
func (s *Session) configure(surfaces []Surface, failMsg string, h configureHandlers) error {
	s.generation++
	gen := s.generation

	err := s.device.CreateCaptureSession(surfaces, SessionCallbacks{
		OnConfigured: func(cs CaptureSession) {
			s.exec.Post(func() {
				if gen != s.generation || s.disposed {
					cs.Close()
					return
				}
				if s.device == nil {
					cs.Close()
					h.failed(NewError(KindConfigureFailed, msgClosedDuringConfig, nil))
					return
				}
				s.capture = cs
				if err := h.ready(cs); err != nil {
					h.failed(classify(err, KindConfigureFailed))
				}
			})
		},
		OnConfigureFailed: func(CaptureSession) {
			s.exec.Post(func() {
				if gen != s.generation || s.disposed {
					return
				}
				h.failed(NewError(KindConfigureFailed, failMsg, nil))
			})
		},
	})
	if err != nil {
		return classify(err, KindConfigureFailed)
	}
	return nil
}

// classify keeps classified and camera-access errors and files everything
// else under fallback.
func classify(err error, fallback Kind) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, ErrCameraAccess) {
		return NewError(KindPlatformUnavailable, err.Error(), err)
	}
	return NewError(fallback, err.Error(), err)
}

// newRepeatingBuilder creates the builder that drives the repeating request,
// carrying the crop region once zoom is active.
func (s *Session) newRepeatingBuilder(template Template, targets ...Surface) (*RequestBuilder, error) {
	builder, err := s.device.CreateCaptureRequest(template)
	if err != nil {
		return nil, Translate(err)
	}
	for _, t := range targets {
		builder.AddTarget(t)
	}
	if s.cropper.Active() {
		builder.Set(KeyScalerCropRegion, s.cropper.Rect())
	}
	return builder, nil
}

func (s *Session) startRepeating(cs CaptureSession) error {
	s.builder.Set(KeyControlMode, ControlModeAuto)
	return cs.SetRepeatingRequest(s.builder.Build())
}

// StartPreview (re)starts the repeating preview request.
func (s *Session) StartPreview() error {
	if s.device == nil {
		return NewError(KindDeviceClosed, "Camera is closed", nil)
	}
	s.closeCaptureSession()
	s.streamReader.SetOnImageAvailable(nil)

	preview := s.texture.Surface(s.sizes.Preview)
	builder, err := s.newRepeatingBuilder(TemplatePreview, preview)
	if err != nil {
		return err
	}
	s.builder = builder
	if err := s.modes.transition(ModePreview); err != nil {
		return NewError(KindInternal, err.Error(), err)
	}

	return s.configure([]Surface{preview, s.pictureReader.Surface()}, msgPreviewConfigFailed, configureHandlers{
		ready: s.startRepeating,
		failed: func(e *Error) {
			s.publishError(e.Message)
		},
	})
}

// StartPreviewWithImageStream switches the repeating request to also feed the
// stream reader, publishing every frame on the bus.
func (s *Session) StartPreviewWithImageStream() error {
	if s.device == nil {
		return NewError(KindDeviceClosed, "Camera is closed", nil)
	}
	if !s.modes.can(ModeStreaming) {
		return NewError(KindConfigureFailed, fmt.Sprintf("Cannot stream images while %s", s.modes.current()), nil)
	}
	s.closeCaptureSession()

	preview := s.texture.Surface(s.sizes.Preview)
	stream := s.streamReader.Surface()
	builder, err := s.newRepeatingBuilder(TemplateStillCapture, preview, stream)
	if err != nil {
		return err
	}
	s.builder = builder
	if err := s.modes.transition(ModeStreaming); err != nil {
		return NewError(KindInternal, err.Error(), err)
	}

	s.streamReader.SetOnImageAvailable(s.onStreamImage)

	// The picture reader stays attached so stills can be taken while streaming.
	surfaces := []Surface{preview, stream, s.pictureReader.Surface()}
	return s.configure(surfaces, msgStreamConfigFailed, configureHandlers{
		ready: s.startRepeating,
		failed: func(e *Error) {
			s.publishError(e.Message)
		},
	})
}

// onStreamImage runs on the platform goroutine; the frame is copied out and
// the image released before the event is posted.
func (s *Session) onStreamImage(r ImageReader) {
	frame, ok := extractFrame(r)
	if !ok {
		return
	}
	s.exec.Post(func() {
		if s.disposed || s.modes.current() != ModeStreaming {
			return
		}
		metrics.IncFramesStreamed(s.id)
		s.bus.Publish(events.ImageFrameEvent{Frame: frame})
	})
}

func extractFrame(r ImageReader) (events.ImageFrame, bool) {
	img, err := r.AcquireLatestImage()
	if err != nil || img == nil {
		return events.ImageFrame{}, false
	}
	defer img.Close()

	planes := img.Planes()
	frame := events.ImageFrame{
		Width:  img.Width(),
		Height: img.Height(),
		Format: int(img.Format()),
		Planes: make([]events.ImagePlane, 0, len(planes)),
	}
	for _, p := range planes {
		frame.Planes = append(frame.Planes, events.ImagePlane{
			BytesPerRow:   p.RowStride,
			BytesPerPixel: p.PixelStride,
			Bytes:         append([]byte(nil), p.Bytes...),
		})
	}
	return frame, true
}

// TakePicture captures one JPEG into a new file at path.
func (s *Session) TakePicture(path string, useFlash bool, result Result) {
	result = Once(result)
	if fileExists(path) {
		result.Error(KindFileExists.Code(), fileExistsError(path).Message, nil)
		return
	}
	if s.device == nil || s.capture == nil {
		result.Error(KindDeviceClosed.Code(), "Camera is not ready for capture", nil)
		return
	}
	if s.modes.current() == ModeRecording {
		result.Error(KindCaptureFailed.Code(), "Cannot take a picture while recording", nil)
		return
	}

	s.pictureReader.SetOnImageAvailable(func(r ImageReader) {
		err := saveImage(r, path)
		s.exec.Post(func() {
			if err != nil {
				metrics.RecordStillCapture("failure")
				e := classify(err, KindIOError)
				result.Error(e.Kind.Code(), e.Message, nil)
				return
			}
			metrics.RecordStillCapture("success")
			result.Success(nil)
		})
	})

	builder, err := s.device.CreateCaptureRequest(TemplateStillCapture)
	if err != nil {
		ReplyError(result, err)
		return
	}
	builder.AddTarget(s.pictureReader.Surface())
	builder.Set(KeyJPEGOrientation, s.mediaOrientation())
	if useFlash && s.chars.HasFlash {
		builder.Set(KeyControlAEMode, AEModeOn)
		builder.Set(KeyFlashMode, FlashModeTorch)
	}
	if s.cropper.Active() {
		builder.Set(KeyScalerCropRegion, s.cropper.Rect())
	}

	err = s.capture.Capture(builder.Build(), CaptureCallbacks{
		OnFailed: func(_ CaptureRequest, reason CaptureFailureReason) {
			s.exec.Post(func() {
				metrics.RecordStillCapture("failure")
				result.Error(KindCaptureFailed.Code(), reason.Description(), nil)
			})
		},
	})
	if err != nil {
		ReplyError(result, err)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}

// saveImage writes plane 0 of the latest image to a file that must not exist.
func saveImage(r ImageReader, path string) error {
	img, err := r.AcquireLatestImage()
	if err != nil {
		return NewError(KindIOError, "Failed saving image", err)
	}
	if img == nil {
		return NewError(KindIOError, "Failed saving image", io.ErrUnexpectedEOF)
	}
	defer img.Close()

	planes := img.Planes()
	if len(planes) == 0 {
		return NewError(KindIOError, "Failed saving image", io.ErrUnexpectedEOF)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fileExistsError(path)
		}
		return NewError(KindIOError, "Failed saving image", err)
	}
	if _, err := f.Write(planes[0].Bytes); err != nil {
		f.Close()
		return NewError(KindIOError, "Failed saving image", err)
	}
	if err := f.Close(); err != nil {
		return NewError(KindIOError, "Failed saving image", err)
	}
	return nil
}

// StartVideoRecording records preview frames to a new file at path.
func (s *Session) StartVideoRecording(path string, result Result) {
	result = Once(result)
	if s.device == nil {
		result.Error(KindDeviceClosed.Code(), "Camera was closed during configuration.", nil)
		return
	}
	if fileExists(path) {
		result.Error(KindFileExists.Code(), fileExistsError(path).Message, nil)
		return
	}
	if !s.modes.can(ModeRecording) {
		result.Error(KindConfigureFailed.Code(), fmt.Sprintf("Cannot record while %s", s.modes.current()), nil)
		return
	}

	s.closeCaptureSession()
	if err := s.prepareRecorder(path); err != nil {
		result.Error(KindVideoRecordingFailed.Code(), err.Error(), nil)
		s.restorePreview()
		return
	}
	s.recording = true

	preview := s.texture.Surface(s.sizes.Preview)
	target := s.recorder.Surface()
	builder, err := s.newRepeatingBuilder(TemplateRecord, preview, target)
	if err != nil {
		ReplyError(result, err)
		s.abortRecording()
		return
	}
	s.builder = builder
	if err := s.modes.transition(ModeRecording); err != nil {
		result.Error(KindInternal.Code(), err.Error(), nil)
		s.abortRecording()
		return
	}

	err = s.configure([]Surface{preview, target}, msgRecordConfigFailed, configureHandlers{
		ready: func(cs CaptureSession) error {
			if err := s.startRepeating(cs); err != nil {
				return err
			}
			if err := s.recorder.Start(); err != nil {
				return NewError(KindVideoRecordingFailed, err.Error(), err)
			}
			s.logger.Info("Recording started", "path", path)
			result.Success(nil)
			return nil
		},
		failed: func(e *Error) {
			result.Error(e.Kind.Code(), e.Message, nil)
			s.abortRecording()
		},
	})
	if err != nil {
		result.Error(KindVideoRecordingFailed.Code(), Translate(err).Message, nil)
		s.abortRecording()
	}
}

// abortRecording drops a recorder that never started and returns to preview.
func (s *Session) abortRecording() {
	s.recording = false
	if s.recorder != nil {
		s.recorder.Release()
		s.recorder = nil
	}
	if s.device != nil {
		s.restorePreview()
	}
}

// prepareRecorder releases any previous recorder and prepares a new one.
func (s *Session) prepareRecorder(path string) error {
	if s.recorder != nil {
		s.recorder.Release()
		s.recorder = nil
	}

	rec, err := s.manager.NewRecorder()
	if err != nil {
		return fmt.Errorf("create recorder: %w", err)
	}
	err = rec.Configure(RecorderConfig{
		OutputPath:      path,
		EnableAudio:     s.enableAudio,
		AudioSampleRate: RecordAudioSampleRate,
		AudioEncoder:    RecordAudioEncoder,
		VideoEncoder:    RecordVideoEncoder,
		VideoBitRate:    RecordVideoBitRate,
		VideoFrameRate:  RecordVideoFrameRate,
		VideoSize:       s.sizes.Video,
		Container:       RecordContainer,
		OrientationHint: s.mediaOrientation(),
	})
	if err == nil {
		err = rec.Prepare()
	}
	if err != nil {
		rec.Release()
		return err
	}
	s.recorder = rec
	return nil
}

func (s *Session) restorePreview() {
	if err := s.StartPreview(); err != nil {
		s.logger.Warn("Failed to restore preview", "error", err)
	}
}

// StopVideoRecording stops a running recording and returns to preview. It
// succeeds without effect when nothing is recording.
func (s *Session) StopVideoRecording(result Result) {
	result = Once(result)
	if !s.recording {
		result.Success(nil)
		return
	}
	s.recording = false

	if err := s.recorder.Stop(); err != nil {
		result.Error(KindVideoRecordingFailed.Code(), err.Error(), nil)
		return
	}
	s.recorder.Reset()
	s.logger.Info("Recording stopped")

	if err := s.StartPreview(); err != nil {
		result.Error(KindVideoRecordingFailed.Code(), Translate(err).Message, nil)
		return
	}
	result.Success(nil)
}

// UpdateZoomScale multiplies the zoom by scale and applies the crop region to
// the repeating request.
func (s *Session) UpdateZoomScale(scale float64) error {
	if s.cropper.Zoom(scale) {
		metrics.SetSessionZoom(s.id, s.cropper.Current())
	}
	if s.builder == nil || s.capture == nil {
		return nil
	}
	s.builder.Set(KeyScalerCropRegion, s.cropper.Rect())
	if err := s.capture.SetRepeatingRequest(s.builder.Build()); err != nil {
		return Translate(err)
	}
	return nil
}

// SetFocusPoint runs tap-to-focus around (x, y) in sensor coordinates.
func (s *Session) SetFocusPoint(x, y float64) error {
	if s.device == nil {
		return NewError(KindDeviceClosed, "Camera is closed", nil)
	}
	if err := s.focus.trigger(s, x, y); err != nil {
		return classify(err, KindCaptureFailed)
	}
	return nil
}

// Dispose releases every resource of the session. Later calls do nothing.
func (s *Session) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true

	s.closeCaptureSession()
	s.closeDevice()
	if s.pictureReader != nil {
		s.pictureReader.SetOnImageAvailable(nil)
		s.pictureReader.Close()
		s.pictureReader = nil
	}
	if s.streamReader != nil {
		s.streamReader.SetOnImageAvailable(nil)
		s.streamReader.Close()
		s.streamReader = nil
	}
	if s.recorder != nil {
		s.recorder.Reset()
		s.recorder.Release()
		s.recorder = nil
	}
	s.recording = false
	s.texture.Release()

	if err := s.modes.transition(ModeIdle); err != nil {
		s.logger.Debug("Mode reset on dispose failed", "error", err)
	}
	metrics.DeleteSession(s.id)
	s.logger.Info("Session disposed")
}

func (s *Session) closeCaptureSession() {
	s.generation++
	if s.capture != nil {
		s.capture.Close()
		s.capture = nil
	}
}

func (s *Session) closeDevice() {
	if s.device != nil {
		s.device.Close()
		s.device = nil
	}
}
