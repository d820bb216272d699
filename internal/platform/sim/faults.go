package sim

import (
	"github.com/smazurov/camctl/internal/camera"
)

// FailNextOpen makes the next OpenCamera call return err.
func (p *Platform) FailNextOpen(err error) {
	p.mu.Lock()
	p.faults.openErr = err
	p.mu.Unlock()
}

// FailNextOpenWith makes the next OpenCamera report code through OnError.
func (p *Platform) FailNextOpenWith(code camera.DeviceErrorCode) {
	p.mu.Lock()
	p.faults.openCode = code
	p.mu.Unlock()
}

// FailConfigure makes capture session requests report OnConfigureFailed while set.
func (p *Platform) FailConfigure(fail bool) {
	p.mu.Lock()
	p.faults.configure = fail
	p.mu.Unlock()
}

// FailCaptures makes one-shot captures fail with reason; nil restores success.
func (p *Platform) FailCaptures(reason *camera.CaptureFailureReason) {
	p.mu.Lock()
	p.faults.capture = reason
	p.mu.Unlock()
}

// FailNextReader makes the next NewImageReader call return err.
func (p *Platform) FailNextReader(err error) {
	p.mu.Lock()
	p.faults.readerErr = err
	p.mu.Unlock()
}

// FailNextRecorder makes the next NewRecorder call return err.
func (p *Platform) FailNextRecorder(err error) {
	p.mu.Lock()
	p.faults.recorderErr = err
	p.mu.Unlock()
}

// FailRepeating makes SetRepeatingRequest return err while set.
func (p *Platform) FailRepeating(err error) {
	p.mu.Lock()
	p.faults.repeatingErr = err
	p.mu.Unlock()
}

// HoldConfigure queues capture session outcomes until ReleaseConfigure.
func (p *Platform) HoldConfigure(hold bool) {
	p.mu.Lock()
	p.deferCfg = hold
	p.mu.Unlock()
}

// ReleaseConfigure delivers queued capture session outcomes in request order.
func (p *Platform) ReleaseConfigure() {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, fn := range pending {
		p.deliver(fn)
	}
}

// Disconnect reports the open device id as disconnected.
func (p *Platform) Disconnect(id string) bool {
	d := p.openDevice(id)
	if d == nil {
		return false
	}
	p.deliver(func() {
		if d.callbacks.OnDisconnected != nil {
			d.callbacks.OnDisconnected(d)
		}
	})
	return true
}

// RaiseError reports code on the open device id.
func (p *Platform) RaiseError(id string, code camera.DeviceErrorCode) bool {
	d := p.openDevice(id)
	if d == nil {
		return false
	}
	p.deliver(func() {
		if d.callbacks.OnError != nil {
			d.callbacks.OnError(d, code)
		}
	})
	return true
}

func (p *Platform) configureOutcome(fn func()) {
	p.mu.Lock()
	if p.deferCfg {
		p.pending = append(p.pending, fn)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	p.deliver(fn)
}
