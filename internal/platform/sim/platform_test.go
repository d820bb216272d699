package sim

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smazurov/camctl/internal/camera"
)

func newSync(t *testing.T) *Platform {
	t.Helper()
	p, err := New(DefaultConfig(), Options{Synchronous: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p
}

func openDevice(t *testing.T, p *Platform, id string) camera.Device {
	t.Helper()
	var opened camera.Device
	err := p.OpenCamera(id, camera.DeviceCallbacks{
		OnOpened: func(d camera.Device) { opened = d },
	})
	if err != nil {
		t.Fatalf("OpenCamera failed: %v", err)
	}
	if opened == nil {
		t.Fatal("OnOpened not delivered")
	}
	return opened
}

func configure(t *testing.T, d camera.Device, surfaces ...camera.Surface) camera.CaptureSession {
	t.Helper()
	var cs camera.CaptureSession
	err := d.CreateCaptureSession(surfaces, camera.SessionCallbacks{
		OnConfigured: func(s camera.CaptureSession) { cs = s },
	})
	if err != nil {
		t.Fatalf("CreateCaptureSession failed: %v", err)
	}
	if cs == nil {
		t.Fatal("OnConfigured not delivered")
	}
	return cs
}

func TestPlatform_CameraIDsInFileOrder(t *testing.T) {
	p := newSync(t)
	ids, err := p.CameraIDs()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(ids, ",") != "0,1" {
		t.Errorf("CameraIDs() = %v", ids)
	}
	if _, err := p.Characteristics("7"); !errors.Is(err, camera.ErrCameraAccess) {
		t.Errorf("Characteristics(7) = %v, want ErrCameraAccess", err)
	}
}

func TestPlatform_OpenBusyDeviceReportsInUse(t *testing.T) {
	p := newSync(t)
	openDevice(t, p, "0")

	var code camera.DeviceErrorCode
	err := p.OpenCamera("0", camera.DeviceCallbacks{
		OnError: func(_ camera.Device, c camera.DeviceErrorCode) { code = c },
	})
	if err != nil {
		t.Fatal(err)
	}
	if code != camera.DeviceErrorInUse {
		t.Errorf("OnError code = %v, want in use", code)
	}
	if got := p.OpenDevices(); len(got) != 1 {
		t.Errorf("OpenDevices() = %v", got)
	}
}

func TestPlatform_CaptureRejectsForeignTargets(t *testing.T) {
	p := newSync(t)
	d := openDevice(t, p, "0")
	cs := configure(t, d, "texture-1")

	b, err := d.CreateCaptureRequest(camera.TemplatePreview)
	if err != nil {
		t.Fatal(err)
	}
	b.AddTarget("elsewhere")
	if err := cs.Capture(b.Build(), camera.CaptureCallbacks{}); err == nil {
		t.Error("Capture accepted a surface outside the session")
	}
	if err := cs.SetRepeatingRequest(b.Build()); err == nil {
		t.Error("SetRepeatingRequest accepted a surface outside the session")
	}
}

func TestPlatform_ReaderQueueBounded(t *testing.T) {
	p := newSync(t)
	r, err := p.NewImageReader(camera.Size{Width: 64, Height: 48}, camera.ImageFormatYUV420, 2)
	if err != nil {
		t.Fatal(err)
	}
	d := openDevice(t, p, "0")
	cs := configure(t, d, r.Surface())

	notified := 0
	r.SetOnImageAvailable(func(camera.ImageReader) { notified++ })

	b, _ := d.CreateCaptureRequest(camera.TemplatePreview)
	b.AddTarget(r.Surface())
	if err := cs.SetRepeatingRequest(b.Build()); err != nil {
		t.Fatal(err)
	}
	for range 5 {
		p.Tick()
	}
	if notified != 5 {
		t.Errorf("listener called %d times, want 5", notified)
	}
	reader := r.(*imageReader)
	if len(reader.queue) != 2 {
		t.Errorf("queue length = %d, want 2", len(reader.queue))
	}

	img, err := r.AcquireLatestImage()
	if err != nil || img == nil {
		t.Fatalf("AcquireLatestImage() = %v, %v", img, err)
	}
	defer img.Close()
	if planes := img.Planes(); len(planes) != 3 || len(planes[0].Bytes) != 64*48 || len(planes[1].Bytes) != 32*24 {
		t.Errorf("unexpected YUV planes")
	}
	if next, _ := r.AcquireLatestImage(); next != nil {
		t.Error("queue not drained by AcquireLatestImage")
	}

	r.Close()
	if p.LiveSurfaces() != 0 {
		t.Errorf("LiveSurfaces() = %d after close", p.LiveSurfaces())
	}
}

func TestPlatform_RecorderWritesFrames(t *testing.T) {
	p := newSync(t)
	path := filepath.Join(t.TempDir(), "out.mp4")

	rec, err := p.NewRecorder()
	if err != nil {
		t.Fatal(err)
	}
	if err := rec.Start(); err == nil {
		t.Error("Start succeeded before Prepare")
	}
	size := camera.Size{Width: 32, Height: 16}
	err = rec.Configure(camera.RecorderConfig{
		OutputPath:     path,
		VideoEncoder:   camera.RecordVideoEncoder,
		VideoBitRate:   camera.RecordVideoBitRate,
		VideoFrameRate: camera.RecordVideoFrameRate,
		VideoSize:      size,
		Container:      camera.RecordContainer,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := rec.Prepare(); err != nil {
		t.Fatal(err)
	}

	d := openDevice(t, p, "0")
	cs := configure(t, d, rec.Surface())
	b, _ := d.CreateCaptureRequest(camera.TemplateRecord)
	b.AddTarget(rec.Surface())
	if err := cs.SetRepeatingRequest(b.Build()); err != nil {
		t.Fatal(err)
	}
	if err := rec.Start(); err != nil {
		t.Fatal(err)
	}
	for range 3 {
		p.Tick()
	}
	if got := rec.(*recorder).Frames(); got != 3 {
		t.Errorf("Frames() = %d, want 3", got)
	}
	if err := rec.Stop(); err != nil {
		t.Fatal(err)
	}
	rec.Release()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	header, err := bufio.NewReader(f).ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(header, "CAMCTL-RAW 32x16 27fps") {
		t.Errorf("header = %q", header)
	}
	info, _ := f.Stat()
	if want := int64(len(header) + 3*32*16); info.Size() != want {
		t.Errorf("file size = %d, want %d", info.Size(), want)
	}

	again, _ := p.NewRecorder()
	_ = again.Configure(camera.RecorderConfig{OutputPath: path, VideoSize: size})
	if err := again.Prepare(); err == nil {
		t.Error("Prepare overwrote an existing file")
	}
}

func TestPlatform_FaultInjection(t *testing.T) {
	p := newSync(t)

	boom := errors.New("boom")
	p.FailNextOpen(boom)
	if err := p.OpenCamera("0", camera.DeviceCallbacks{}); !errors.Is(err, boom) {
		t.Errorf("OpenCamera() = %v, want injected error", err)
	}

	d := openDevice(t, p, "0")
	p.FailConfigure(true)
	failed := false
	if err := d.CreateCaptureSession([]camera.Surface{"t"}, camera.SessionCallbacks{
		OnConfigured:      func(camera.CaptureSession) { t.Error("OnConfigured delivered despite fault") },
		OnConfigureFailed: func(camera.CaptureSession) { failed = true },
	}); err != nil {
		t.Fatal(err)
	}
	if !failed {
		t.Error("OnConfigureFailed not delivered")
	}
	p.FailConfigure(false)

	var closed, disconnected bool
	d.Close()
	if p.Disconnect("0") {
		t.Error("Disconnect reported a closed device")
	}
	d = nil

	err := p.OpenCamera("0", camera.DeviceCallbacks{
		OnOpened:       func(dev camera.Device) { d = dev },
		OnClosed:       func(camera.Device) { closed = true },
		OnDisconnected: func(camera.Device) { disconnected = true },
	})
	if err != nil {
		t.Fatal(err)
	}
	if !p.Disconnect("0") || !disconnected {
		t.Error("Disconnect not delivered")
	}
	d.Close()
	if !closed {
		t.Error("OnClosed not delivered")
	}

	calls := p.Journal().Count(OpOpenCamera)
	if calls != 3 {
		t.Errorf("journal recorded %d opens, want 3", calls)
	}
}

func TestPlatform_HeldConfigureDeliveredInOrder(t *testing.T) {
	p := newSync(t)
	d := openDevice(t, p, "0")

	p.HoldConfigure(true)
	var order []string
	for _, name := range []string{"first", "second"} {
		if err := d.CreateCaptureSession([]camera.Surface{"t"}, camera.SessionCallbacks{
			OnConfigured: func(camera.CaptureSession) { order = append(order, name) },
		}); err != nil {
			t.Fatal(err)
		}
	}
	if len(order) != 0 {
		t.Fatalf("outcomes delivered while held: %v", order)
	}
	p.HoldConfigure(false)
	p.ReleaseConfigure()
	if strings.Join(order, ",") != "first,second" {
		t.Errorf("delivery order = %v", order)
	}
	if p.Journal().Count(OpCloseSession) != 1 {
		t.Error("replaced session was not closed")
	}
}
