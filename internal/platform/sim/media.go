package sim

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"sync"

	"github.com/smazurov/camctl/internal/camera"
)

// Largest edge of generated JPEG stills; bigger reader sizes are scaled down.
const maxStillEdge = 1024

type imageReader struct {
	p         *Platform
	surface   camera.Surface
	size      camera.Size
	format    camera.ImageFormat
	maxImages int

	mu       sync.Mutex
	closed   bool
	queue    []*simImage
	listener func(camera.ImageReader)
}

func (r *imageReader) Surface() camera.Surface { return r.surface }

func (r *imageReader) SetOnImageAvailable(listener func(camera.ImageReader)) {
	r.mu.Lock()
	r.listener = listener
	r.mu.Unlock()
}

func (r *imageReader) AcquireLatestImage() (camera.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errors.New("image reader closed")
	}
	if len(r.queue) == 0 {
		return nil, nil
	}
	latest := r.queue[len(r.queue)-1]
	r.queue = r.queue[:0]
	return latest, nil
}

func (r *imageReader) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.queue = nil
	r.listener = nil
	r.mu.Unlock()

	r.p.unregister(r.surface)
}

func (r *imageReader) render(frame int) {
	img, err := r.generate(frame)
	if err != nil {
		r.p.logger.Warn("Failed to generate image", "surface", r.surface, "error", err)
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.queue = append(r.queue, img)
	if over := len(r.queue) - max(r.maxImages, 1); over > 0 {
		r.queue = r.queue[over:]
	}
	listener := r.listener
	r.mu.Unlock()

	if listener != nil {
		listener(r)
	}
}

func (r *imageReader) generate(frame int) (*simImage, error) {
	switch r.format {
	case camera.ImageFormatJPEG:
		data, err := encodeStill(r.size, frame)
		if err != nil {
			return nil, err
		}
		return &simImage{
			width:  r.size.Width,
			height: r.size.Height,
			format: r.format,
			planes: []camera.Plane{{RowStride: 0, PixelStride: 0, Bytes: data}},
		}, nil
	case camera.ImageFormatYUV420:
		return &simImage{
			width:  r.size.Width,
			height: r.size.Height,
			format: r.format,
			planes: yuvPlanes(r.size, frame),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported image format %d", r.format)
	}
}

// yuvPlanes builds a planar YUV 4:2:0 frame whose luma is a moving gradient.
func yuvPlanes(size camera.Size, frame int) []camera.Plane {
	w, h := size.Width, size.Height
	cw, ch := (w+1)/2, (h+1)/2

	y := make([]byte, w*h)
	for row := range h {
		for col := range w {
			y[row*w+col] = byte(col + row + frame)
		}
	}
	u := bytes.Repeat([]byte{128}, cw*ch)
	v := bytes.Repeat([]byte{128}, cw*ch)

	return []camera.Plane{
		{RowStride: w, PixelStride: 1, Bytes: y},
		{RowStride: cw, PixelStride: 1, Bytes: u},
		{RowStride: cw, PixelStride: 1, Bytes: v},
	}
}

func encodeStill(size camera.Size, frame int) ([]byte, error) {
	w, h := size.Width, size.Height
	if edge := max(w, h); edge > maxStillEdge {
		w = w * maxStillEdge / edge
		h = h * maxStillEdge / edge
	}
	img := image.NewYCbCr(image.Rect(0, 0, max(w, 1), max(h, 1)), image.YCbCrSubsampleRatio420)
	for row := range img.Rect.Dy() {
		for col := range img.Rect.Dx() {
			img.Y[img.YOffset(col, row)] = byte(col ^ row ^ frame)
		}
	}
	for i := range img.Cb {
		img.Cb[i] = 128
	}
	for i := range img.Cr {
		img.Cr[i] = 128
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encode still: %w", err)
	}
	return buf.Bytes(), nil
}

type simImage struct {
	width, height int
	format        camera.ImageFormat
	planes        []camera.Plane

	mu     sync.Mutex
	closed bool
}

func (i *simImage) Width() int                 { return i.width }
func (i *simImage) Height() int                { return i.height }
func (i *simImage) Format() camera.ImageFormat { return i.format }
func (i *simImage) Planes() []camera.Plane     { return i.planes }

func (i *simImage) Close() {
	i.mu.Lock()
	i.closed = true
	i.planes = nil
	i.mu.Unlock()
}

type recorderState int

const (
	recorderInitial recorderState = iota
	recorderConfigured
	recorderPrepared
	recorderRecording
	recorderReleased
)

// recorder writes every frame rendered into its surface to the output file
// as raw luma, behind a one-line text header.
type recorder struct {
	p       *Platform
	surface camera.Surface

	mu     sync.Mutex
	state  recorderState
	config camera.RecorderConfig
	file   *os.File
	frames int
}

func (r *recorder) Configure(config camera.RecorderConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != recorderInitial {
		return errors.New("recorder already configured")
	}
	if config.OutputPath == "" {
		return errors.New("recorder output path is empty")
	}
	r.config = config
	r.state = recorderConfigured
	return nil
}

func (r *recorder) Prepare() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != recorderConfigured {
		return errors.New("recorder not configured")
	}
	f, err := os.OpenFile(r.config.OutputPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("prepare recorder: %w", err)
	}
	c := r.config
	header := fmt.Sprintf("CAMCTL-RAW %s %dfps %s/%s %dbps rotate=%d audio=%t\n",
		c.VideoSize, c.VideoFrameRate, c.Container, c.VideoEncoder, c.VideoBitRate, c.OrientationHint, c.EnableAudio)
	if _, err := f.WriteString(header); err != nil {
		f.Close()
		return fmt.Errorf("prepare recorder: %w", err)
	}
	r.file = f
	r.state = recorderPrepared
	r.p.register(r.surface, r)
	return nil
}

func (r *recorder) Surface() camera.Surface { return r.surface }

func (r *recorder) Start() error {
	r.p.journal.record(Call{Op: OpRecorderStart})

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != recorderPrepared {
		return errors.New("recorder not prepared")
	}
	r.state = recorderRecording
	return nil
}

func (r *recorder) Stop() error {
	r.p.journal.record(Call{Op: OpRecorderStop})

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != recorderRecording {
		return errors.New("recorder not recording")
	}
	r.state = recorderConfigured
	return r.closeFile()
}

func (r *recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == recorderReleased {
		return
	}
	_ = r.closeFile()
	r.p.unregister(r.surface)
	r.state = recorderInitial
	r.frames = 0
}

func (r *recorder) Release() {
	r.p.journal.record(Call{Op: OpRecorderRelease})

	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.closeFile()
	r.p.unregister(r.surface)
	r.state = recorderReleased
}

func (r *recorder) closeFile() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func (r *recorder) render(frame int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != recorderRecording || r.file == nil {
		return
	}
	planes := yuvPlanes(r.config.VideoSize, frame)
	if _, err := r.file.Write(planes[0].Bytes); err != nil {
		r.p.logger.Warn("Failed to write recorded frame", "path", r.config.OutputPath, "error", err)
		return
	}
	r.frames++
}

// Frames returns the number of frames written since Start.
func (r *recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

