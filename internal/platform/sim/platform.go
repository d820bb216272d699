// Package sim is an in-memory camera platform. It backs the daemon when no
// hardware platform is available and drives the session tests.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/camctl/internal/camera"
	"github.com/smazurov/camctl/internal/logging"
	"github.com/smazurov/camctl/internal/metrics"
)

// Options control callback delivery and frame production.
type Options struct {
	// Synchronous delivers callbacks on the calling goroutine before the
	// platform call returns. Otherwise each callback runs on its own goroutine.
	Synchronous bool
	// FrameInterval is the repeating request period used by Run.
	FrameInterval time.Duration
}

// Platform implements camera.Manager.
type Platform struct {
	opts    Options
	logger  *slog.Logger
	journal *Journal

	mu       sync.Mutex
	order    []string
	cameras  map[string]camera.Characteristics
	devices  map[string]*device
	surfaces map[camera.Surface]frameSink
	nextID   int
	faults   faults
	pending  []func()
	deferCfg bool
}

type faults struct {
	openErr      error
	openCode     camera.DeviceErrorCode
	configure    bool
	capture      *camera.CaptureFailureReason
	readerErr    error
	recorderErr  error
	repeatingErr error
}

// frameSink is anything a request target can render into.
type frameSink interface {
	render(frame int)
}

// New creates a platform exposing the cameras of cfg.
func New(cfg *Config, opts Options) (*Platform, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Platform{
		opts:     opts,
		logger:   logging.GetLogger("platform"),
		journal:  &Journal{},
		cameras:  make(map[string]camera.Characteristics, len(cfg.Cameras)),
		devices:  make(map[string]*device),
		surfaces: make(map[camera.Surface]frameSink),
	}
	for _, c := range cfg.Cameras {
		chars, err := c.Characteristics()
		if err != nil {
			return nil, err
		}
		p.order = append(p.order, c.ID)
		p.cameras[c.ID] = chars
	}
	return p, nil
}

// Journal returns the call journal.
func (p *Platform) Journal() *Journal { return p.journal }

// CameraIDs lists the configured cameras in file order.
func (p *Platform) CameraIDs() ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.order...), nil
}

// Characteristics returns the static properties of a camera.
func (p *Platform) Characteristics(id string) (camera.Characteristics, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	chars, ok := p.cameras[id]
	if !ok {
		return camera.Characteristics{}, fmt.Errorf("%w: unknown camera %q", camera.ErrCameraAccess, id)
	}
	return chars, nil
}

// OpenCamera opens a device and reports the outcome through callbacks.
func (p *Platform) OpenCamera(id string, callbacks camera.DeviceCallbacks) error {
	p.journal.record(Call{Op: OpOpenCamera, CameraID: id})

	p.mu.Lock()
	chars, ok := p.cameras[id]
	openErr, openCode := p.faults.openErr, p.faults.openCode
	p.faults.openErr, p.faults.openCode = nil, 0
	_, busy := p.devices[id]
	p.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: unknown camera %q", camera.ErrCameraAccess, id)
	}
	if openErr != nil {
		return openErr
	}

	d := &device{p: p, id: id, chars: chars, callbacks: callbacks}
	if busy || openCode != 0 {
		code := openCode
		if code == 0 {
			code = camera.DeviceErrorInUse
		}
		p.deliver(func() {
			if callbacks.OnError != nil {
				callbacks.OnError(d, code)
			}
		})
		return nil
	}

	p.mu.Lock()
	p.devices[id] = d
	p.mu.Unlock()
	metrics.SetDeviceOpen(id, true)
	p.logger.Debug("Device opened", "camera_id", id)

	p.deliver(func() {
		if callbacks.OnOpened != nil {
			callbacks.OnOpened(d)
		}
	})
	return nil
}

// NewImageReader allocates a reader whose surface can be used as a request target.
func (p *Platform) NewImageReader(size camera.Size, format camera.ImageFormat, maxImages int) (camera.ImageReader, error) {
	p.journal.record(Call{Op: OpNewImageReader})

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.faults.readerErr; err != nil {
		p.faults.readerErr = nil
		return nil, err
	}
	p.nextID++
	r := &imageReader{
		p:         p,
		surface:   camera.Surface(fmt.Sprintf("reader-%d-%s-%d", p.nextID, size, format)),
		size:      size,
		format:    format,
		maxImages: maxImages,
	}
	p.surfaces[r.surface] = r
	return r, nil
}

// NewRecorder allocates a recorder.
func (p *Platform) NewRecorder() (camera.Recorder, error) {
	p.journal.record(Call{Op: OpNewRecorder})

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.faults.recorderErr; err != nil {
		p.faults.recorderErr = nil
		return nil, err
	}
	p.nextID++
	return &recorder{p: p, surface: camera.Surface(fmt.Sprintf("recorder-%d", p.nextID))}, nil
}

// OpenDevices returns the ids of the devices currently open.
func (p *Platform) OpenDevices() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.devices))
	for _, id := range p.order {
		if _, ok := p.devices[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// LiveSurfaces returns how many reader and recorder surfaces are allocated.
func (p *Platform) LiveSurfaces() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.surfaces)
}

// Tick renders one frame of every active repeating request.
func (p *Platform) Tick() {
	p.mu.Lock()
	devices := make([]*device, 0, len(p.devices))
	for _, d := range p.devices {
		devices = append(devices, d)
	}
	p.mu.Unlock()

	for _, d := range devices {
		d.tick()
	}
}

// Run produces frames at the configured interval until ctx is done.
func (p *Platform) Run(ctx context.Context) {
	interval := p.opts.FrameInterval
	if interval <= 0 {
		interval = time.Second / camera.RecordVideoFrameRate
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick()
		}
	}
}

func (p *Platform) deliver(fn func()) {
	if p.opts.Synchronous {
		fn()
		return
	}
	go fn()
}

func (p *Platform) sink(s camera.Surface) frameSink {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.surfaces[s]
}

func (p *Platform) register(s camera.Surface, sink frameSink) {
	p.mu.Lock()
	p.surfaces[s] = sink
	p.mu.Unlock()
}

func (p *Platform) unregister(s camera.Surface) {
	p.mu.Lock()
	delete(p.surfaces, s)
	p.mu.Unlock()
}

func (p *Platform) forget(d *device) {
	p.mu.Lock()
	if p.devices[d.id] == d {
		delete(p.devices, d.id)
	}
	p.mu.Unlock()
	metrics.SetDeviceOpen(d.id, false)
}

func (p *Platform) openDevice(id string) *device {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.devices[id]
}
