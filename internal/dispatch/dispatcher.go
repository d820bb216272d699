// Package dispatch routes host method calls to the camera session.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/smazurov/camctl/internal/camera"
	"github.com/smazurov/camctl/internal/events"
	"github.com/smazurov/camctl/internal/logging"
	"github.com/smazurov/camctl/internal/mainloop"
	"github.com/smazurov/camctl/internal/metrics"
)

// Command outcomes reported in metrics and CommandCompletedEvent.
const (
	OutcomeSuccess        = "success"
	OutcomeError          = "error"
	OutcomeNotImplemented = "not_implemented"
)

// Options holds the dependencies of a Dispatcher.
type Options struct {
	Manager camera.Manager
	Host    camera.Host
	// Executor is the main loop; Handle must run on it.
	Executor    camera.Executor
	Bus         *events.Bus
	Orientation *camera.OrientationWatcher
}

// Dispatcher owns the current session and answers host commands. All methods
// except Call must run on the executor.
type Dispatcher struct {
	opts    Options
	logger  *slog.Logger
	gate    *PermissionGate
	session *camera.Session
}

// New creates a dispatcher with no session.
func New(opts Options) *Dispatcher {
	if opts.Orientation == nil {
		opts.Orientation = camera.NewOrientationWatcher()
	}
	return &Dispatcher{
		opts:   opts,
		logger: logging.GetLogger("dispatch"),
		gate:   NewPermissionGate(opts.Host, opts.Executor),
	}
}

// Session returns the current session, or nil.
func (d *Dispatcher) Session() *camera.Session {
	return d.session
}

// Handle runs one host command. result receives exactly one reply, possibly
// after Handle has returned.
func (d *Dispatcher) Handle(method string, args map[string]any, result camera.Result) {
	result = camera.Once(&instrumented{
		d:      d,
		method: method,
		start:  time.Now(),
		inner:  result,
	})
	d.logger.Debug("Handling command", "method", method)

	switch method {
	case MethodAvailableCameras:
		d.availableCameras(result)
	case MethodInitialize:
		d.initialize(args, result)
	case MethodTakePicture:
		d.takePicture(args, result)
	case MethodPrepareForVideoRecording:
		result.Success(nil)
	case MethodStartVideoRecording:
		d.startVideoRecording(args, result)
	case MethodStopVideoRecording:
		if s, ok := d.requireSession(result); ok {
			s.StopVideoRecording(result)
		}
	case MethodStartImageStream:
		if s, ok := d.requireSession(result); ok {
			d.reply(result, s.StartPreviewWithImageStream())
		}
	case MethodStopImageStream:
		if s, ok := d.requireSession(result); ok {
			d.reply(result, s.StartPreview())
		}
	case MethodUpdateZoomScale:
		d.updateZoomScale(args, result)
	case MethodSetFocusPoint:
		d.setFocusPoint(args, result)
	case MethodDispose:
		d.dispose()
		result.Success(nil)
	default:
		result.NotImplemented()
	}
}

func (d *Dispatcher) availableCameras(result camera.Result) {
	ids, err := d.opts.Manager.CameraIDs()
	if err != nil {
		d.replyError(result, err)
		return
	}
	cameras := make([]CameraInfo, 0, len(ids))
	for _, id := range ids {
		chars, err := d.opts.Manager.Characteristics(id)
		if err != nil {
			d.replyError(result, err)
			return
		}
		cameras = append(cameras, CameraInfo{
			Name:              id,
			SensorOrientation: chars.SensorOrientation,
			LensFacing:        chars.LensFacing.String(),
		})
	}
	result.Success(cameras)
}

func (d *Dispatcher) initialize(args map[string]any, result camera.Result) {
	var a initializeArgs
	if err := decodeArgs(args, &a); err != nil {
		d.replyError(result, err)
		return
	}
	preset, err := camera.ParsePreset(a.ResolutionPreset)
	if err != nil {
		d.replyError(result, err)
		return
	}
	if d.gate.Pending() {
		d.replyError(result, camera.NewError(camera.KindPermissionOngoing, "Camera permission request ongoing", nil))
		return
	}

	d.dispose()
	d.opts.Orientation.Enable()

	perms := []camera.Permission{camera.PermissionCamera}
	if a.EnableAudio {
		perms = append(perms, camera.PermissionMicrophone)
	}
	err = d.gate.Request(perms, func() {
		d.openSession(a, preset, result)
	})
	if err != nil {
		d.replyError(result, err)
	}
}

func (d *Dispatcher) openSession(a initializeArgs, preset camera.ResolutionPreset, result camera.Result) {
	if !d.opts.Host.HasPermission(camera.PermissionCamera) {
		d.replyError(result, camera.NewError(camera.KindPermissionDenied, "Camera permission not granted", nil))
		return
	}
	if a.EnableAudio && !d.opts.Host.HasPermission(camera.PermissionMicrophone) {
		d.replyError(result, camera.NewError(camera.KindPermissionDenied, "Audio permission not granted", nil))
		return
	}

	s, err := camera.NewSession(camera.SessionConfig{
		CameraID:    a.CameraName,
		Preset:      preset,
		EnableAudio: a.EnableAudio,
		Manager:     d.opts.Manager,
		Host:        d.opts.Host,
		Executor:    d.opts.Executor,
		Bus:         d.opts.Bus,
		Orientation: d.opts.Orientation,
	})
	if err != nil {
		d.replyError(result, err)
		return
	}
	d.session = s

	// A session that fails to open is torn down before the error is reported.
	s.Open(&openResult{
		Result: result,
		onError: func() {
			if d.session == s {
				s.Dispose()
				d.session = nil
			}
		},
	})
}

func (d *Dispatcher) takePicture(args map[string]any, result camera.Result) {
	var a takePictureArgs
	if err := decodeArgs(args, &a); err != nil {
		d.replyError(result, err)
		return
	}
	if s, ok := d.requireSession(result); ok {
		s.TakePicture(a.Path, a.UseFlash, result)
	}
}

func (d *Dispatcher) startVideoRecording(args map[string]any, result camera.Result) {
	var a startVideoRecordingArgs
	if err := decodeArgs(args, &a); err != nil {
		d.replyError(result, err)
		return
	}
	if s, ok := d.requireSession(result); ok {
		s.StartVideoRecording(a.FilePath, result)
	}
}

func (d *Dispatcher) updateZoomScale(args map[string]any, result camera.Result) {
	var a zoomArgs
	if err := decodeArgs(args, &a); err != nil {
		d.replyError(result, err)
		return
	}
	if s, ok := d.requireSession(result); ok {
		d.reply(result, s.UpdateZoomScale(*a.Scale))
	}
}

func (d *Dispatcher) setFocusPoint(args map[string]any, result camera.Result) {
	var a focusArgs
	if err := decodeArgs(args, &a); err != nil {
		d.replyError(result, err)
		return
	}
	if s, ok := d.requireSession(result); ok {
		d.reply(result, s.SetFocusPoint(*a.OffsetX, *a.OffsetY))
	}
}

// dispose releases the current session, if any.
func (d *Dispatcher) dispose() {
	d.opts.Orientation.Disable()
	if d.session == nil {
		return
	}
	d.session.Dispose()
	d.session = nil
}

func (d *Dispatcher) requireSession(result camera.Result) (*camera.Session, bool) {
	if d.session == nil {
		d.replyError(result, camera.NewError(camera.KindDeviceClosed, "No camera is initialized", nil))
		return nil, false
	}
	return d.session, true
}

// reply answers with success when err is nil.
func (d *Dispatcher) reply(result camera.Result, err error) {
	if err != nil {
		d.replyError(result, err)
		return
	}
	result.Success(nil)
}

func (d *Dispatcher) replyError(result camera.Result, err error) {
	e := camera.Translate(err)
	if e.Kind == camera.KindInternal {
		d.logger.Error("Internal error while handling command", "error", err)
	}
	result.Error(e.Kind.Code(), e.Message, nil)
}

// Reply is the outcome of a command run through Call.
type Reply struct {
	Value          any
	Err            *ReplyError
	NotImplemented bool
}

// ReplyError is an error reply.
type ReplyError struct {
	Code    string
	Message string
	Details any
}

// stoppable is implemented by executors that can stop draining work, such as
// mainloop.Loop.
type stoppable interface {
	Done() <-chan struct{}
}

// Call posts a command to the executor and waits for its reply. It returns
// mainloop.ErrStopped when the executor stops before replying.
func (d *Dispatcher) Call(ctx context.Context, method string, args map[string]any) (Reply, error) {
	var stopped <-chan struct{}
	if s, ok := d.opts.Executor.(stoppable); ok {
		stopped = s.Done()
	}

	replies := make(chan Reply, 1)
	d.opts.Executor.Post(func() {
		d.Handle(method, args, chanResult(replies))
	})

	select {
	case r := <-replies:
		return r, nil
	case <-stopped:
		select {
		case r := <-replies:
			return r, nil
		default:
			return Reply{}, mainloop.ErrStopped
		}
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

type chanResult chan<- Reply

func (c chanResult) Success(value any) {
	c <- Reply{Value: value}
}

func (c chanResult) Error(code, message string, details any) {
	c <- Reply{Err: &ReplyError{Code: code, Message: message, Details: details}}
}

func (c chanResult) NotImplemented() {
	c <- Reply{NotImplemented: true}
}

type openResult struct {
	camera.Result
	onError func()
}

func (r *openResult) Error(code, message string, details any) {
	r.onError()
	r.Result.Error(code, message, details)
}

// instrumented records metrics and publishes a completion event for the
// single reply let through by camera.Once.
type instrumented struct {
	d      *Dispatcher
	method string
	start  time.Time
	inner  camera.Result
}

func (r *instrumented) Success(value any) {
	r.done(OutcomeSuccess, "")
	r.inner.Success(value)
}

func (r *instrumented) Error(code, message string, details any) {
	r.d.logger.Debug("Command failed", "method", r.method, "code", code, "message", message)
	r.done(OutcomeError, code)
	r.inner.Error(code, message, details)
}

func (r *instrumented) NotImplemented() {
	r.done(OutcomeNotImplemented, "")
	r.inner.NotImplemented()
}

func (r *instrumented) done(outcome, code string) {
	elapsed := time.Since(r.start)
	label := r.method
	if !knownMethods[label] {
		label = "unknown"
	}
	metrics.RecordCommand(label, outcome, elapsed)
	if r.d.opts.Bus != nil {
		r.d.opts.Bus.Publish(events.CommandCompletedEvent{
			Method:     r.method,
			Outcome:    outcome,
			Code:       code,
			DurationMs: float64(elapsed.Microseconds()) / 1000,
			Timestamp:  events.Now(),
		})
	}
}
