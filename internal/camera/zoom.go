package camera

import (
	"math"
	"sync"
)

// ZoomMin is the zoom factor of the full active array.
const ZoomMin = 1.0

// ZoomCropper keeps a crop rectangle centered in the sensor active array under
// multiplicative scale commands. Still captures read the rectangle while zoom
// commands write it, so access is serialized.
type ZoomCropper struct {
	mu          sync.Mutex
	activeArray Rect
	maxZoom     float64
	zoom        float64
	rect        Rect
	centerX     int
	centerY     int
}

// NewZoomCropper starts at zoom 1.0 covering the whole active array.
func NewZoomCropper(activeArray Rect, maxZoom float64) *ZoomCropper {
	if maxZoom < ZoomMin {
		maxZoom = ZoomMin
	}
	return &ZoomCropper{
		activeArray: activeArray,
		maxZoom:     maxZoom,
		zoom:        ZoomMin,
		rect:        activeArray,
		centerX:     activeArray.CenterX(),
		centerY:     activeArray.CenterY(),
	}
}

// Zoom multiplies the current zoom by scale. The command is ignored unless the
// result lies strictly between ZoomMin and the maximum digital zoom. It reports
// whether the crop rectangle changed.
func (z *ZoomCropper) Zoom(scale float64) bool {
	z.mu.Lock()
	defer z.mu.Unlock()

	next := z.zoom * scale
	if !(next > ZoomMin && next < z.maxZoom) {
		return false
	}
	z.zoom = next

	w, h := z.activeArray.Width(), z.activeArray.Height()
	halfW := int(math.Floor(float64(w) / z.zoom / 2.0))
	halfH := int(math.Floor(float64(h) / z.zoom / 2.0))

	cx, cy := z.centerX, z.centerY
	if cx+halfW > z.activeArray.Right {
		cx = z.activeArray.Right - halfW
	} else if cx-halfW < z.activeArray.Left {
		cx = z.activeArray.Left + halfW
	}
	if cy+halfH > z.activeArray.Bottom {
		cy = z.activeArray.Bottom - halfH
	} else if cy-halfH < z.activeArray.Top {
		cy = z.activeArray.Top + halfH
	}

	z.rect = Rect{Left: cx - halfW, Top: cy - halfH, Right: cx + halfW, Bottom: cy + halfH}
	z.centerX = z.rect.CenterX()
	z.centerY = z.rect.CenterY()
	return true
}

// Rect returns the current crop rectangle.
func (z *ZoomCropper) Rect() Rect {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.rect
}

// Current returns the current zoom factor.
func (z *ZoomCropper) Current() float64 {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.zoom
}

// Active reports whether the crop differs from the full active array.
func (z *ZoomCropper) Active() bool {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.zoom != ZoomMin
}
