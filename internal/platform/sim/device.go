package sim

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/smazurov/camctl/internal/camera"
	"github.com/smazurov/camctl/internal/metrics"
)

var errDeviceClosed = fmt.Errorf("%w: device closed", camera.ErrCameraAccess)

type device struct {
	p         *Platform
	id        string
	chars     camera.Characteristics
	callbacks camera.DeviceCallbacks

	mu      sync.Mutex
	closed  bool
	session *captureSession
	frame   int
}

func (d *device) ID() string { return d.id }

func (d *device) CreateCaptureRequest(template camera.Template) (*camera.RequestBuilder, error) {
	d.p.journal.record(Call{Op: OpCreateCaptureReq, CameraID: d.id, Template: template})

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errDeviceClosed
	}
	return camera.NewRequestBuilder(template), nil
}

func (d *device) CreateCaptureSession(surfaces []camera.Surface, callbacks camera.SessionCallbacks) error {
	d.p.journal.record(Call{Op: OpCreateCaptureSess, CameraID: d.id, Surfaces: slices.Clone(surfaces)})

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return errDeviceClosed
	}
	previous := d.session
	cs := &captureSession{d: d, surfaces: slices.Clone(surfaces)}
	d.session = cs
	d.mu.Unlock()

	// A new session replaces the previous one.
	if previous != nil {
		previous.Close()
	}

	d.p.mu.Lock()
	fail := d.p.faults.configure
	d.p.mu.Unlock()

	d.p.configureOutcome(func() {
		if fail {
			cs.Close()
			if callbacks.OnConfigureFailed != nil {
				callbacks.OnConfigureFailed(cs)
			}
			return
		}
		if callbacks.OnConfigured != nil {
			callbacks.OnConfigured(cs)
		}
	})
	return nil
}

func (d *device) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	cs := d.session
	d.session = nil
	d.mu.Unlock()

	d.p.journal.record(Call{Op: OpCloseDevice, CameraID: d.id})
	if cs != nil {
		cs.Close()
	}
	d.p.forget(d)
	d.p.logger.Debug("Device closed", "camera_id", d.id)

	d.p.deliver(func() {
		if d.callbacks.OnClosed != nil {
			d.callbacks.OnClosed(d)
		}
	})
}

func (d *device) tick() {
	d.mu.Lock()
	cs := d.session
	d.mu.Unlock()
	if cs == nil {
		return
	}

	req, ok := cs.repeatingRequest()
	if !ok {
		return
	}
	d.mu.Lock()
	d.frame++
	frame := d.frame
	d.mu.Unlock()

	metrics.IncFramesGenerated(d.id)
	d.render(req, frame)
}

func (d *device) render(req camera.CaptureRequest, frame int) {
	for _, target := range req.Targets {
		if sink := d.p.sink(target); sink != nil {
			sink.render(frame)
		}
	}
}

type captureSession struct {
	d        *device
	surfaces []camera.Surface

	mu        sync.Mutex
	closed    bool
	repeating *camera.CaptureRequest
}

func (cs *captureSession) check(req camera.CaptureRequest) error {
	if cs.closed {
		return fmt.Errorf("%w: capture session closed", camera.ErrCameraAccess)
	}
	if len(req.Targets) == 0 {
		return errors.New("capture request has no targets")
	}
	for _, t := range req.Targets {
		if !slices.Contains(cs.surfaces, t) {
			return fmt.Errorf("surface %s is not part of the capture session", t)
		}
	}
	return nil
}

func (cs *captureSession) Capture(req camera.CaptureRequest, callbacks camera.CaptureCallbacks) error {
	cs.d.p.journal.record(Call{Op: OpCapture, CameraID: cs.d.id, Template: req.Template, Request: &req})

	cs.mu.Lock()
	err := cs.check(req)
	cs.mu.Unlock()
	if err != nil {
		return err
	}

	cs.d.p.mu.Lock()
	reason := cs.d.p.faults.capture
	cs.d.p.mu.Unlock()

	cs.d.p.deliver(func() {
		if reason != nil {
			if callbacks.OnFailed != nil {
				callbacks.OnFailed(req, *reason)
			}
			return
		}
		cs.d.render(req, 0)
		if callbacks.OnCompleted != nil {
			callbacks.OnCompleted(req)
		}
	})
	return nil
}

func (cs *captureSession) SetRepeatingRequest(req camera.CaptureRequest) error {
	cs.d.p.journal.record(Call{Op: OpSetRepeatingRequest, CameraID: cs.d.id, Template: req.Template, Request: &req})

	cs.d.p.mu.Lock()
	injected := cs.d.p.faults.repeatingErr
	cs.d.p.mu.Unlock()
	if injected != nil {
		return injected
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if err := cs.check(req); err != nil {
		return err
	}
	cs.repeating = &req
	return nil
}

func (cs *captureSession) StopRepeating() error {
	cs.d.p.journal.record(Call{Op: OpStopRepeating, CameraID: cs.d.id})

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.closed {
		return fmt.Errorf("%w: capture session closed", camera.ErrCameraAccess)
	}
	cs.repeating = nil
	return nil
}

func (cs *captureSession) Close() {
	cs.mu.Lock()
	if cs.closed {
		cs.mu.Unlock()
		return
	}
	cs.closed = true
	cs.repeating = nil
	cs.mu.Unlock()

	cs.d.p.journal.record(Call{Op: OpCloseSession, CameraID: cs.d.id})
}

func (cs *captureSession) repeatingRequest() (camera.CaptureRequest, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.closed || cs.repeating == nil {
		return camera.CaptureRequest{}, false
	}
	return *cs.repeating, true
}
