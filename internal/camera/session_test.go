package camera_test

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smazurov/camctl/internal/camera"
	"github.com/smazurov/camctl/internal/events"
	"github.com/smazurov/camctl/internal/platform/sim"
)

type testTexture struct {
	host *testHost
	id   int64
	size camera.Size
}

func (t *testTexture) ID() int64 { return t.id }

func (t *testTexture) Surface(size camera.Size) camera.Surface {
	t.size = size
	return camera.Surface(fmt.Sprintf("texture-%d", t.id))
}

func (t *testTexture) Release() { t.host.released = append(t.host.released, t.id) }

type testHost struct {
	next     int64
	released []int64
}

func (h *testHost) AllocatePreviewTexture() (camera.Texture, error) {
	h.next++
	return &testTexture{host: h, id: h.next}, nil
}

func (h *testHost) HasPermission(camera.Permission) bool { return true }

func (h *testHost) RequestPermissions(_ []camera.Permission, done func(bool)) { done(true) }

func (h *testHost) ScreenResolution() camera.Size { return camera.Size{Width: 2400, Height: 1080} }

type reply struct {
	calls   int
	value   any
	code    string
	message string
}

func (r *reply) Success(v any) { r.calls++; r.value = v }

func (r *reply) Error(code, message string, _ any) {
	r.calls++
	r.code = code
	r.message = message
}

func (r *reply) NotImplemented() { r.calls++; r.code = "notImplemented" }

func (r *reply) ok() bool { return r.calls == 1 && r.code == "" }

func testConfig() *sim.Config {
	return &sim.Config{
		Version: 1,
		Cameras: []sim.CameraConfig{{
			ID:                "0",
			LensFacing:        "back",
			SensorOrientation: 90,
			MaxDigitalZoom:    8,
			ActiveArray:       []int{0, 0, 4000, 3000},
			MaxAFRegions:      1,
			HasFlash:          true,
			PreviewSizes:      []string{"1920x1080", "1280x720", "640x480", "320x240"},
			JPEGSizes:         []string{"4032x3024"},
		}},
	}
}

type fixture struct {
	session  *camera.Session
	platform *sim.Platform
	bus      *events.Bus
	host     *testHost
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	p, err := sim.New(testConfig(), sim.Options{Synchronous: true})
	if err != nil {
		t.Fatalf("sim.New failed: %v", err)
	}
	f := &fixture{platform: p, bus: events.New(), host: &testHost{}}

	f.session, err = camera.NewSession(camera.SessionConfig{
		CameraID:    "0",
		Preset:      camera.PresetMedium,
		Manager:     p,
		Host:        f.host,
		Executor:    camera.Inline,
		Bus:         f.bus,
		Orientation: camera.NewOrientationWatcher(),
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	r := &reply{}
	f.session.Open(r)
	if !r.ok() {
		t.Fatalf("Open replied %+v", r)
	}
	t.Cleanup(f.session.Dispose)
	p.Journal().Reset()
	return f
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for event")
		var zero T
		return zero
	}
}

func TestSession_OpenStartsPreview(t *testing.T) {
	p, err := sim.New(testConfig(), sim.Options{Synchronous: true})
	if err != nil {
		t.Fatal(err)
	}
	s, err := camera.NewSession(camera.SessionConfig{
		CameraID: "0",
		Preset:   camera.PresetMedium,
		Manager:  p,
		Host:     &testHost{},
		Executor: camera.Inline,
		Bus:      events.New(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Dispose()

	r := &reply{}
	s.Open(r)
	if !r.ok() {
		t.Fatalf("Open replied %+v", r)
	}
	got := r.value.(camera.InitializeResult)
	if got.TextureID != 1 || got.PreviewWidth != 640 || got.PreviewHeight != 480 {
		t.Errorf("InitializeResult = %+v", got)
	}
	if s.Mode() != camera.ModePreview {
		t.Errorf("Mode() = %s, want preview", s.Mode())
	}

	cfg, ok := p.Journal().Last(sim.OpCreateCaptureSess)
	if !ok || len(cfg.Surfaces) != 2 || cfg.Surfaces[0] != "texture-1" {
		t.Errorf("capture session surfaces = %v", cfg.Surfaces)
	}
	rep, ok := p.Journal().Last(sim.OpSetRepeatingRequest)
	if !ok || rep.Template != camera.TemplatePreview {
		t.Fatalf("repeating request = %+v", rep)
	}
	if v, _ := rep.Request.Get(camera.KeyControlMode); v != camera.ControlModeAuto {
		t.Errorf("CONTROL_MODE = %v", v)
	}
}

func TestNewSession_Errors(t *testing.T) {
	p, err := sim.New(testConfig(), sim.Options{Synchronous: true})
	if err != nil {
		t.Fatal(err)
	}
	base := camera.SessionConfig{
		CameraID: "0",
		Preset:   camera.PresetLow,
		Manager:  p,
		Host:     &testHost{},
		Executor: camera.Inline,
		Bus:      events.New(),
	}

	bad := base
	bad.Preset = "ultra"
	if _, err := camera.NewSession(bad); !errors.Is(err, &camera.Error{Kind: camera.KindInvalidPreset}) {
		t.Errorf("Expected InvalidPreset, got %v", err)
	}

	missing := base
	missing.CameraID = "9"
	if _, err := camera.NewSession(missing); !errors.Is(err, &camera.Error{Kind: camera.KindPlatformUnavailable}) {
		t.Errorf("Expected PlatformUnavailable, got %v", err)
	}
}

func TestSession_OpenFailureReported(t *testing.T) {
	p, err := sim.New(testConfig(), sim.Options{Synchronous: true})
	if err != nil {
		t.Fatal(err)
	}
	s, err := camera.NewSession(camera.SessionConfig{
		CameraID: "0",
		Preset:   camera.PresetLow,
		Manager:  p,
		Host:     &testHost{},
		Executor: camera.Inline,
		Bus:      events.New(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Dispose()

	p.FailNextOpenWith(camera.DeviceErrorInUse)
	r := &reply{}
	s.Open(r)
	if r.code != "cameraAccess" || r.message != camera.DeviceErrorInUse.Description() {
		t.Errorf("Open replied %+v", r)
	}
}

func TestSession_TakePicture(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "still.jpg")

	r := &reply{}
	f.session.TakePicture(path, true, r)
	if !r.ok() {
		t.Fatalf("TakePicture replied %+v", r)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
		t.Error("Written file is not a JPEG")
	}

	call, ok := f.platform.Journal().Last(sim.OpCapture)
	if !ok {
		t.Fatal("No capture issued")
	}
	if call.Template != camera.TemplateStillCapture {
		t.Errorf("template = %s, want still", call.Template)
	}
	if v, _ := call.Request.Get(camera.KeyJPEGOrientation); v != 90 {
		t.Errorf("JPEG_ORIENTATION = %v, want 90", v)
	}
	if v, _ := call.Request.Get(camera.KeyFlashMode); v != camera.FlashModeTorch {
		t.Errorf("FLASH_MODE = %v, want TORCH", v)
	}
	if _, ok := call.Request.Get(camera.KeyScalerCropRegion); ok {
		t.Error("crop region set without zoom")
	}
}

func TestSession_TakePictureExistingFile(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "exists.jpg")
	if err := os.WriteFile(path, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := &reply{}
	f.session.TakePicture(path, false, r)
	if r.code != "fileExists" {
		t.Errorf("TakePicture replied %+v", r)
	}
	if n := f.platform.Journal().Count(sim.OpCapture); n != 0 {
		t.Errorf("capture issued %d times for an existing file", n)
	}
	if data, _ := os.ReadFile(path); string(data) != "keep" {
		t.Error("existing file was overwritten")
	}
}

func TestSession_TakePictureCaptureFailure(t *testing.T) {
	f := newFixture(t)
	reason := camera.CaptureFailureFlushed
	f.platform.FailCaptures(&reason)

	r := &reply{}
	f.session.TakePicture(filepath.Join(t.TempDir(), "x.jpg"), false, r)
	if r.code != "captureFailure" || r.message != reason.Description() {
		t.Errorf("TakePicture replied %+v", r)
	}
}

func TestSession_Recording(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "clip.mp4")

	r := &reply{}
	f.session.StartVideoRecording(path, r)
	if !r.ok() {
		t.Fatalf("StartVideoRecording replied %+v", r)
	}
	if !f.session.Recording() || f.session.Mode() != camera.ModeRecording {
		t.Fatalf("recording=%v mode=%s", f.session.Recording(), f.session.Mode())
	}

	rep, _ := f.platform.Journal().Last(sim.OpSetRepeatingRequest)
	if rep.Template != camera.TemplateRecord || len(rep.Request.Targets) != 2 {
		t.Errorf("repeating request = %+v", rep.Request)
	}
	if f.platform.Journal().Count(sim.OpRecorderStart) != 1 {
		t.Error("recorder not started")
	}

	f.platform.Tick()
	f.platform.Tick()

	stop := &reply{}
	f.session.StopVideoRecording(stop)
	if !stop.ok() {
		t.Fatalf("StopVideoRecording replied %+v", stop)
	}
	if f.session.Recording() || f.session.Mode() != camera.ModePreview {
		t.Errorf("after stop recording=%v mode=%s", f.session.Recording(), f.session.Mode())
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("recording missing: %v", err)
	}
	if info.Size() < 2*640*480 {
		t.Errorf("recording size = %d, want at least two frames", info.Size())
	}

	again := &reply{}
	f.session.StopVideoRecording(again)
	if !again.ok() {
		t.Errorf("second StopVideoRecording replied %+v", again)
	}
}

func TestSession_RecordingExistingFile(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	r := &reply{}
	f.session.StartVideoRecording(path, r)
	if r.code != "fileExists" {
		t.Errorf("StartVideoRecording replied %+v", r)
	}
	if n := f.platform.Journal().Count(sim.OpCreateCaptureSess); n != 0 {
		t.Errorf("capture session created %d times for an existing file", n)
	}
	if f.session.Mode() != camera.ModePreview {
		t.Errorf("Mode() = %s, want preview", f.session.Mode())
	}
}

func TestSession_RecordingFailureRestoresPreview(t *testing.T) {
	tests := []struct {
		name   string
		inject func(p *sim.Platform)
		clear  func(p *sim.Platform)
	}{
		{
			name:   "configure failed",
			inject: func(p *sim.Platform) { p.FailConfigure(true) },
			clear:  func(p *sim.Platform) { p.FailConfigure(false) },
		},
		{
			name:   "repeating request failed",
			inject: func(p *sim.Platform) { p.FailRepeating(errors.New("pipeline stalled")) },
			clear:  func(p *sim.Platform) { p.FailRepeating(nil) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			tt.inject(f.platform)
			r := &reply{}
			f.session.StartVideoRecording(filepath.Join(t.TempDir(), "clip.mp4"), r)
			tt.clear(f.platform)

			if r.calls != 1 || r.code == "" {
				t.Fatalf("StartVideoRecording replied %+v, want one error", r)
			}
			if f.session.Recording() {
				t.Error("Recording() = true after a failed start")
			}
			if f.session.Mode() != camera.ModePreview {
				t.Errorf("Mode() = %s, want preview", f.session.Mode())
			}
			if f.platform.Journal().Count(sim.OpRecorderRelease) == 0 {
				t.Error("recorder not released after a failed start")
			}

			stop := &reply{}
			f.session.StopVideoRecording(stop)
			if !stop.ok() {
				t.Errorf("StopVideoRecording replied %+v", stop)
			}
			if err := f.session.StartPreviewWithImageStream(); err != nil {
				t.Errorf("StartPreviewWithImageStream failed: %v", err)
			}
			if f.session.Mode() != camera.ModeStreaming {
				t.Errorf("Mode() = %s, want streaming", f.session.Mode())
			}
		})
	}
}

func TestSession_TakePictureWhileRecordingRejected(t *testing.T) {
	f := newFixture(t)
	r := &reply{}
	f.session.StartVideoRecording(filepath.Join(t.TempDir(), "clip.mp4"), r)
	if !r.ok() {
		t.Fatalf("StartVideoRecording replied %+v", r)
	}
	f.platform.Journal().Reset()

	still := &reply{}
	path := filepath.Join(t.TempDir(), "still.jpg")
	f.session.TakePicture(path, false, still)
	if still.code != "captureFailure" || still.message != "Cannot take a picture while recording" {
		t.Errorf("TakePicture replied %+v", still)
	}
	if n := f.platform.Journal().Count(sim.OpCapture); n != 0 {
		t.Errorf("capture issued %d times while recording", n)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("still file created: %v", err)
	}
	if !f.session.Recording() {
		t.Error("recording interrupted by rejected still")
	}
}

func TestSession_ImageStream(t *testing.T) {
	f := newFixture(t)
	frames := make(chan events.ImageFrameEvent, 4)
	unsub := f.bus.Subscribe(func(e events.ImageFrameEvent) { frames <- e })
	defer unsub()

	if err := f.session.StartPreviewWithImageStream(); err != nil {
		t.Fatalf("StartPreviewWithImageStream failed: %v", err)
	}
	if f.session.Mode() != camera.ModeStreaming {
		t.Fatalf("Mode() = %s, want streaming", f.session.Mode())
	}
	rep, _ := f.platform.Journal().Last(sim.OpSetRepeatingRequest)
	if rep.Template != camera.TemplateStillCapture || len(rep.Request.Targets) != 2 {
		t.Errorf("repeating request = %+v", rep.Request)
	}

	f.platform.Tick()
	frame := waitFor(t, frames).Frame
	if frame.Width != 640 || frame.Height != 480 || frame.Format != int(camera.ImageFormatYUV420) {
		t.Errorf("frame = %dx%d format %d", frame.Width, frame.Height, frame.Format)
	}
	if len(frame.Planes) != 3 || frame.Planes[0].BytesPerRow != 640 || len(frame.Planes[0].Bytes) != 640*480 {
		t.Errorf("unexpected planes %d", len(frame.Planes))
	}

	// Stills still work while streaming.
	r := &reply{}
	f.session.TakePicture(filepath.Join(t.TempDir(), "s.jpg"), false, r)
	if !r.ok() {
		t.Errorf("TakePicture while streaming replied %+v", r)
	}

	if err := f.session.StartPreview(); err != nil {
		t.Fatalf("StartPreview failed: %v", err)
	}
	f.platform.Tick()
	select {
	case <-frames:
		t.Error("frame delivered after leaving streaming mode")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSession_StreamWhileRecordingRejected(t *testing.T) {
	f := newFixture(t)
	r := &reply{}
	f.session.StartVideoRecording(filepath.Join(t.TempDir(), "c.mp4"), r)
	if !r.ok() {
		t.Fatalf("StartVideoRecording replied %+v", r)
	}
	err := f.session.StartPreviewWithImageStream()
	if !errors.Is(err, &camera.Error{Kind: camera.KindConfigureFailed}) {
		t.Errorf("Expected ConfigureFailed, got %v", err)
	}
	if !f.session.Recording() {
		t.Error("recording interrupted by rejected stream request")
	}
}

func TestSession_ZoomAccumulatesAndPersists(t *testing.T) {
	f := newFixture(t)

	for range 3 {
		if err := f.session.UpdateZoomScale(2); err != nil {
			t.Fatalf("UpdateZoomScale failed: %v", err)
		}
	}
	if got := f.session.Zoom(); got != 4 {
		t.Errorf("Zoom() = %v, want 4", got)
	}
	want := camera.Rect{Left: 1500, Top: 1125, Right: 2500, Bottom: 1875}
	rep, _ := f.platform.Journal().Last(sim.OpSetRepeatingRequest)
	if v, _ := rep.Request.Get(camera.KeyScalerCropRegion); v != want {
		t.Errorf("SCALER_CROP_REGION = %v, want %v", v, want)
	}

	r := &reply{}
	f.session.TakePicture(filepath.Join(t.TempDir(), "z.jpg"), false, r)
	capture, _ := f.platform.Journal().Last(sim.OpCapture)
	if v, _ := capture.Request.Get(camera.KeyScalerCropRegion); v != want {
		t.Errorf("still crop = %v, want %v", v, want)
	}

	// A rebuilt repeating request keeps the crop.
	if err := f.session.StartPreviewWithImageStream(); err != nil {
		t.Fatal(err)
	}
	rep, _ = f.platform.Journal().Last(sim.OpSetRepeatingRequest)
	if v, _ := rep.Request.Get(camera.KeyScalerCropRegion); v != want {
		t.Errorf("stream crop = %v, want %v", v, want)
	}
}

func TestSession_SetFocusPoint(t *testing.T) {
	f := newFixture(t)

	if err := f.session.SetFocusPoint(100, 100); err != nil {
		t.Fatalf("SetFocusPoint failed: %v", err)
	}

	ops := f.platform.Journal().Ops()
	want := []string{sim.OpStopRepeating, sim.OpCapture, sim.OpCapture, sim.OpSetRepeatingRequest}
	if fmt.Sprint(ops) != fmt.Sprint(want) {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
	captures := f.platform.Journal().Filter(sim.OpCapture)
	if v, _ := captures[0].Request.Get(camera.KeyControlAFTrigger); v != camera.AFTriggerCancel {
		t.Errorf("first capture AF_TRIGGER = %v", v)
	}
	if captures[1].Request.Tag != camera.FocusTag {
		t.Errorf("second capture tag = %q", captures[1].Request.Tag)
	}
	rep, _ := f.platform.Journal().Last(sim.OpSetRepeatingRequest)
	if _, ok := rep.Request.Get(camera.KeyControlAFTrigger); ok {
		t.Error("resumed request still carries AF_TRIGGER")
	}
	if f.session.FocusState() != camera.FocusIdle {
		t.Errorf("FocusState() = %s, want idle", f.session.FocusState())
	}
}

func TestSession_ConfigureFailureEmitsError(t *testing.T) {
	f := newFixture(t)
	errs := make(chan events.CameraErrorEvent, 1)
	unsub := f.bus.Subscribe(func(e events.CameraErrorEvent) { errs <- e })
	defer unsub()

	f.platform.FailConfigure(true)
	if err := f.session.StartPreview(); err != nil {
		t.Fatalf("StartPreview failed: %v", err)
	}
	got := waitFor(t, errs)
	if got.Description != "Failed to configure the camera for preview." || got.TextureID != f.session.TextureID() {
		t.Errorf("error event = %+v", got)
	}
}

func TestSession_StaleConfigureIgnored(t *testing.T) {
	f := newFixture(t)

	f.platform.HoldConfigure(true)
	if err := f.session.StartPreview(); err != nil {
		t.Fatal(err)
	}
	if err := f.session.StartPreviewWithImageStream(); err != nil {
		t.Fatal(err)
	}
	f.platform.HoldConfigure(false)
	f.platform.ReleaseConfigure()

	reps := f.platform.Journal().Filter(sim.OpSetRepeatingRequest)
	if len(reps) != 1 {
		t.Fatalf("repeating requests = %d, want 1", len(reps))
	}
	if reps[0].Template != camera.TemplateStillCapture {
		t.Errorf("repeating template = %s, want still", reps[0].Template)
	}
}

func TestSession_Disconnect(t *testing.T) {
	f := newFixture(t)
	errs := make(chan events.CameraErrorEvent, 1)
	closing := make(chan events.CameraClosingEvent, 1)
	defer f.bus.Subscribe(func(e events.CameraErrorEvent) { errs <- e })()
	defer f.bus.Subscribe(func(e events.CameraClosingEvent) { closing <- e })()

	if !f.platform.Disconnect("0") {
		t.Fatal("device not open")
	}
	if got := waitFor(t, errs); got.Description != "The camera was disconnected." {
		t.Errorf("error event = %+v", got)
	}
	waitFor(t, closing)

	if len(f.platform.OpenDevices()) != 0 {
		t.Error("device still open after disconnect")
	}
	err := f.session.SetFocusPoint(1, 1)
	if !errors.Is(err, &camera.Error{Kind: camera.KindDeviceClosed}) {
		t.Errorf("Expected DeviceClosed, got %v", err)
	}
	r := &reply{}
	f.session.StartVideoRecording(filepath.Join(t.TempDir(), "v.mp4"), r)
	if r.code != "deviceClosed" {
		t.Errorf("StartVideoRecording replied %+v", r)
	}
}

func TestSession_DeviceError(t *testing.T) {
	f := newFixture(t)
	errs := make(chan events.CameraErrorEvent, 1)
	defer f.bus.Subscribe(func(e events.CameraErrorEvent) { errs <- e })()

	f.platform.RaiseError("0", camera.DeviceErrorService)
	if got := waitFor(t, errs); got.Description != camera.DeviceErrorService.Description() {
		t.Errorf("error event = %+v", got)
	}
}

func TestSession_DisposeReleasesEverything(t *testing.T) {
	f := newFixture(t)
	r := &reply{}
	f.session.StartVideoRecording(filepath.Join(t.TempDir(), "d.mp4"), r)
	if !r.ok() {
		t.Fatalf("StartVideoRecording replied %+v", r)
	}

	f.session.Dispose()
	f.session.Dispose()

	if len(f.platform.OpenDevices()) != 0 {
		t.Error("device still open")
	}
	if n := f.platform.LiveSurfaces(); n != 0 {
		t.Errorf("%d surfaces still allocated", n)
	}
	if len(f.host.released) != 1 {
		t.Errorf("texture released %d times", len(f.host.released))
	}
	if f.session.Mode() != camera.ModeIdle || f.session.Recording() {
		t.Errorf("mode=%s recording=%v after dispose", f.session.Mode(), f.session.Recording())
	}

	pic := &reply{}
	f.session.TakePicture(filepath.Join(t.TempDir(), "after.jpg"), false, pic)
	if pic.code != "deviceClosed" {
		t.Errorf("TakePicture after dispose replied %+v", pic)
	}
}
