package dispatch

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/smazurov/camctl/internal/camera"
	"github.com/smazurov/camctl/internal/events"
	"github.com/smazurov/camctl/internal/mainloop"
	"github.com/smazurov/camctl/internal/platform/sim"
)

type fakeTexture struct{ id int64 }

func (t *fakeTexture) ID() int64 { return t.id }
func (t *fakeTexture) Surface(camera.Size) camera.Surface {
	return camera.Surface("preview")
}
func (t *fakeTexture) Release() {}

// fakeHost grants what is in granted and holds prompts until answer is called.
type fakeHost struct {
	granted map[camera.Permission]bool
	prompts [][]camera.Permission
	pending func(bool)
	grantOn map[camera.Permission]bool
	next    int64
}

func newFakeHost(granted ...camera.Permission) *fakeHost {
	h := &fakeHost{granted: map[camera.Permission]bool{}, grantOn: map[camera.Permission]bool{}}
	for _, p := range granted {
		h.granted[p] = true
	}
	return h
}

func (h *fakeHost) AllocatePreviewTexture() (camera.Texture, error) {
	h.next++
	return &fakeTexture{id: h.next}, nil
}

func (h *fakeHost) HasPermission(p camera.Permission) bool { return h.granted[p] }

func (h *fakeHost) RequestPermissions(perms []camera.Permission, done func(bool)) {
	h.prompts = append(h.prompts, perms)
	h.pending = func(yes bool) {
		all := true
		for _, p := range perms {
			if yes && h.grantOn[p] {
				h.granted[p] = true
			} else {
				all = false
			}
		}
		done(all)
	}
}

// answer resolves the held prompt, granting the permissions listed in grantOn.
func (h *fakeHost) answer(yes bool) {
	fn := h.pending
	h.pending = nil
	fn(yes)
}

func (h *fakeHost) ScreenResolution() camera.Size { return camera.Size{Width: 1920, Height: 1080} }

type captured struct {
	replies []Reply
}

func (c *captured) Success(v any) { c.replies = append(c.replies, Reply{Value: v}) }
func (c *captured) Error(code, message string, details any) {
	c.replies = append(c.replies, Reply{Err: &ReplyError{Code: code, Message: message, Details: details}})
}
func (c *captured) NotImplemented() { c.replies = append(c.replies, Reply{NotImplemented: true}) }

func (c *captured) only(t *testing.T) Reply {
	t.Helper()
	if len(c.replies) != 1 {
		t.Fatalf("Expected exactly one reply, got %d: %+v", len(c.replies), c.replies)
	}
	return c.replies[0]
}

func newDispatcher(t *testing.T, host *fakeHost) (*Dispatcher, *sim.Platform, *events.Bus) {
	t.Helper()
	p, err := sim.New(sim.DefaultConfig(), sim.Options{Synchronous: true})
	if err != nil {
		t.Fatal(err)
	}
	bus := events.New()
	d := New(Options{Manager: p, Host: host, Executor: camera.Inline, Bus: bus})
	t.Cleanup(func() { d.Handle(MethodDispose, nil, &captured{}) })
	return d, p, bus
}

func handle(d *Dispatcher, method string, args map[string]any) *captured {
	c := &captured{}
	d.Handle(method, args, c)
	return c
}

func initArgs(enableAudio bool) map[string]any {
	return map[string]any{"cameraName": "0", "resolutionPreset": "medium", "enableAudio": enableAudio}
}

func TestHandle_AvailableCameras(t *testing.T) {
	d, _, _ := newDispatcher(t, newFakeHost())

	r := handle(d, MethodAvailableCameras, nil).only(t)
	want := []CameraInfo{
		{Name: "0", SensorOrientation: 90, LensFacing: "back"},
		{Name: "1", SensorOrientation: 270, LensFacing: "front"},
	}
	if !reflect.DeepEqual(r.Value, want) {
		t.Errorf("availableCameras = %+v, want %+v", r.Value, want)
	}
}

func TestHandle_InitializeGranted(t *testing.T) {
	host := newFakeHost(camera.PermissionCamera)
	d, p, _ := newDispatcher(t, host)

	r := handle(d, MethodInitialize, initArgs(false)).only(t)
	if r.Err != nil {
		t.Fatalf("initialize failed: %+v", r.Err)
	}
	res, ok := r.Value.(camera.InitializeResult)
	if !ok || res.TextureID != 1 || res.PreviewWidth == 0 {
		t.Errorf("initialize value = %#v", r.Value)
	}
	if len(host.prompts) != 0 {
		t.Errorf("prompted for granted permissions: %v", host.prompts)
	}
	if d.Session() == nil || len(p.OpenDevices()) != 1 {
		t.Error("session not opened")
	}

	// A second initialize replaces the session.
	r = handle(d, MethodInitialize, initArgs(false)).only(t)
	if r.Err != nil {
		t.Fatalf("re-initialize failed: %+v", r.Err)
	}
	if got := r.Value.(camera.InitializeResult).TextureID; got != 2 {
		t.Errorf("TextureID = %d, want 2", got)
	}
	if len(p.OpenDevices()) != 1 {
		t.Errorf("OpenDevices() = %v", p.OpenDevices())
	}
}

func TestHandle_InitializeWhilePromptPending(t *testing.T) {
	host := newFakeHost()
	host.grantOn[camera.PermissionCamera] = true
	d, _, _ := newDispatcher(t, host)

	first := handle(d, MethodInitialize, initArgs(false))
	if len(first.replies) != 0 {
		t.Fatalf("initialize replied before the prompt was answered: %+v", first.replies)
	}

	second := handle(d, MethodInitialize, initArgs(false)).only(t)
	if second.Err == nil || second.Err.Code != "cameraPermission" || second.Err.Message != "Camera permission request ongoing" {
		t.Errorf("second initialize = %+v", second.Err)
	}
	if len(host.prompts) != 1 {
		t.Errorf("prompts = %d, want 1", len(host.prompts))
	}

	host.answer(true)
	if r := first.only(t); r.Err != nil {
		t.Errorf("first initialize failed after grant: %+v", r.Err)
	}
}

func TestHandle_InitializePermissionDenied(t *testing.T) {
	tests := []struct {
		name    string
		host    func() *fakeHost
		audio   bool
		message string
	}{
		{
			name:    "camera denied",
			host:    func() *fakeHost { return newFakeHost() },
			message: "Camera permission not granted",
		},
		{
			name: "microphone denied",
			host: func() *fakeHost {
				h := newFakeHost(camera.PermissionCamera)
				return h
			},
			audio:   true,
			message: "Audio permission not granted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := tt.host()
			d, p, _ := newDispatcher(t, host)

			c := handle(d, MethodInitialize, initArgs(tt.audio))
			host.answer(false)

			r := c.only(t)
			if r.Err == nil || r.Err.Code != "cameraPermission" || r.Err.Message != tt.message {
				t.Errorf("initialize = %+v, want %q", r.Err, tt.message)
			}
			if d.Session() != nil || len(p.OpenDevices()) != 0 {
				t.Error("session created without permission")
			}
		})
	}
}

func TestHandle_InitializeOpenFailureClearsSession(t *testing.T) {
	d, p, _ := newDispatcher(t, newFakeHost(camera.PermissionCamera))
	p.FailNextOpenWith(camera.DeviceErrorMaxInUse)

	r := handle(d, MethodInitialize, initArgs(false)).only(t)
	if r.Err == nil || r.Err.Code != "cameraAccess" || r.Err.Message != "Max cameras in use" {
		t.Errorf("initialize = %+v", r.Err)
	}
	if d.Session() != nil {
		t.Error("failed session kept")
	}
}

func TestHandle_ArgumentErrors(t *testing.T) {
	d, _, _ := newDispatcher(t, newFakeHost(camera.PermissionCamera))
	if r := handle(d, MethodInitialize, initArgs(false)).only(t); r.Err != nil {
		t.Fatal(r.Err)
	}

	tests := []struct {
		method string
		args   map[string]any
		code   string
	}{
		{MethodInitialize, map[string]any{"cameraName": "0", "resolutionPreset": "ultra"}, "invalidPreset"},
		{MethodInitialize, map[string]any{"resolutionPreset": "low"}, "invalidArguments"},
		{MethodInitialize, map[string]any{"cameraName": 7, "resolutionPreset": "low"}, "invalidArguments"},
		{MethodTakePicture, map[string]any{}, "invalidArguments"},
		{MethodStartVideoRecording, map[string]any{"path": "/tmp/x"}, "invalidArguments"},
		{MethodUpdateZoomScale, map[string]any{}, "invalidArguments"},
		{MethodUpdateZoomScale, map[string]any{"scale": -1.0}, "invalidArguments"},
		{MethodSetFocusPoint, map[string]any{"offsetX": 1.0}, "invalidArguments"},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			r := handle(d, tt.method, tt.args).only(t)
			if r.Err == nil || r.Err.Code != tt.code {
				t.Errorf("%s(%v) = %+v, want %s", tt.method, tt.args, r, tt.code)
			}
		})
	}
	if d.Session() == nil {
		t.Error("argument errors disposed the session")
	}
}

func TestHandle_NotImplemented(t *testing.T) {
	d, _, _ := newDispatcher(t, newFakeHost())
	if r := handle(d, "setExposureMode", nil).only(t); !r.NotImplemented {
		t.Errorf("unknown method = %+v, want notImplemented", r)
	}
}

func TestHandle_WithoutSession(t *testing.T) {
	d, _, _ := newDispatcher(t, newFakeHost())
	dir := t.TempDir()

	calls := []struct {
		method string
		args   map[string]any
	}{
		{MethodTakePicture, map[string]any{"path": filepath.Join(dir, "a.jpg")}},
		{MethodStartVideoRecording, map[string]any{"filePath": filepath.Join(dir, "a.mp4")}},
		{MethodStopVideoRecording, nil},
		{MethodStartImageStream, nil},
		{MethodStopImageStream, nil},
		{MethodUpdateZoomScale, map[string]any{"scale": 2.0}},
		{MethodSetFocusPoint, map[string]any{"offsetX": 1.0, "offsetY": 2.0}},
	}
	for _, c := range calls {
		r := handle(d, c.method, c.args).only(t)
		if r.Err == nil || r.Err.Code != "deviceClosed" || r.Err.Message != "No camera is initialized" {
			t.Errorf("%s without session = %+v", c.method, r)
		}
	}
}

func TestHandle_FullFlow(t *testing.T) {
	d, p, _ := newDispatcher(t, newFakeHost(camera.PermissionCamera))
	dir := t.TempDir()

	steps := []struct {
		method string
		args   map[string]any
	}{
		{MethodInitialize, initArgs(false)},
		{MethodPrepareForVideoRecording, nil},
		{MethodUpdateZoomScale, map[string]any{"scale": 2.0}},
		{MethodSetFocusPoint, map[string]any{"offsetX": 10.0, "offsetY": 20.0}},
		{MethodTakePicture, map[string]any{"path": filepath.Join(dir, "p.jpg"), "useFlash": true}},
		{MethodStartImageStream, nil},
		{MethodStopImageStream, nil},
		{MethodStartVideoRecording, map[string]any{"filePath": filepath.Join(dir, "v.mp4")}},
		{MethodStopVideoRecording, nil},
		{MethodStopVideoRecording, nil},
		{MethodDispose, nil},
		{MethodDispose, nil},
	}
	for _, s := range steps {
		r := handle(d, s.method, s.args).only(t)
		if r.Err != nil || r.NotImplemented {
			t.Fatalf("%s = %+v", s.method, r)
		}
	}
	if d.Session() != nil || len(p.OpenDevices()) != 0 {
		t.Error("dispose left the device open")
	}
}

func TestHandle_PublishesCommandCompleted(t *testing.T) {
	d, _, bus := newDispatcher(t, newFakeHost())
	done := make(chan events.CommandCompletedEvent, 4)
	defer bus.Subscribe(func(e events.CommandCompletedEvent) { done <- e })()

	handle(d, "bogus", nil)

	select {
	case e := <-done:
		if e.Method != "bogus" || e.Outcome != OutcomeNotImplemented {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for CommandCompletedEvent")
	}
}

func TestCall_RunsOnLoop(t *testing.T) {
	p, err := sim.New(sim.DefaultConfig(), sim.Options{})
	if err != nil {
		t.Fatal(err)
	}
	loop := mainloop.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	d := New(Options{Manager: p, Host: newFakeHost(camera.PermissionCamera), Executor: loop, Bus: events.New()})

	reply, err := d.Call(ctx, MethodAvailableCameras, nil)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if cams, ok := reply.Value.([]CameraInfo); !ok || len(cams) != 2 {
		t.Errorf("availableCameras = %#v", reply.Value)
	}

	// Platform callbacks arrive on other goroutines and are posted back to the loop.
	reply, err = d.Call(ctx, MethodInitialize, initArgs(false))
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if reply.Err != nil {
		t.Fatalf("initialize = %+v", reply.Err)
	}

	reply, err = d.Call(ctx, MethodDispose, nil)
	if err != nil || reply.Err != nil {
		t.Fatalf("dispose = %+v, %v", reply, err)
	}

	loop.Stop()
	<-loop.Done()
	// Without a deadline the call must still return once the loop is gone.
	if _, err := d.Call(context.Background(), MethodAvailableCameras, nil); !errors.Is(err, mainloop.ErrStopped) {
		t.Errorf("Call on a stopped loop = %v, want ErrStopped", err)
	}
}
