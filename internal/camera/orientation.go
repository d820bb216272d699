package camera

import (
	"math"
	"sync/atomic"
)

// OrientationUnknown marks an unknown device orientation.
const OrientationUnknown = -1

// MediaOrientation folds sensor orientation, device orientation and lens
// facing into the rotation applied to JPEG metadata and recordings.
func MediaOrientation(sensorOrientation int, facing LensFacing, deviceOrientation int) int {
	offset := 0
	if deviceOrientation != OrientationUnknown {
		if facing == LensFacingFront {
			offset = -deviceOrientation
		} else {
			offset = deviceOrientation
		}
	}
	return ((offset+sensorOrientation+360)%360 + 360) % 360
}

// OrientationWatcher tracks the device orientation rounded to the nearest 90°.
// It is safe for concurrent use.
type OrientationWatcher struct {
	enabled atomic.Bool
	current atomic.Int32
}

// NewOrientationWatcher returns a disabled watcher with an unknown orientation.
func NewOrientationWatcher() *OrientationWatcher {
	w := &OrientationWatcher{}
	w.current.Store(OrientationUnknown)
	return w
}

// Enable starts accepting readings.
func (w *OrientationWatcher) Enable() { w.enabled.Store(true) }

// Disable stops accepting readings. The last orientation is kept.
func (w *OrientationWatcher) Disable() { w.enabled.Store(false) }

// Enabled reports whether readings are accepted.
func (w *OrientationWatcher) Enabled() bool { return w.enabled.Load() }

// OnOrientationChanged consumes a raw reading in [0, 360).
func (w *OrientationWatcher) OnOrientationChanged(raw int) {
	if raw == OrientationUnknown || !w.enabled.Load() {
		return
	}
	rounded := int(math.Floor(float64(raw)/90.0+0.5)) * 90
	w.current.Store(int32(rounded))
}

// Current returns the rounded orientation, or OrientationUnknown.
func (w *OrientationWatcher) Current() int {
	return int(w.current.Load())
}
