package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	platformDeviceOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "camctl",
		Subsystem: "platform",
		Name:      "device_open",
		Help:      "1 while the camera device is open",
	}, []string{"camera_id"})

	platformFramesGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camctl",
		Subsystem: "platform",
		Name:      "frames_generated_total",
		Help:      "Frames produced by the repeating request",
	}, []string{"camera_id"})
)

// SetDeviceOpen records whether a camera device is open.
func SetDeviceOpen(cameraID string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	platformDeviceOpen.WithLabelValues(cameraID).Set(v)
}

// IncFramesGenerated counts a frame produced for a camera.
func IncFramesGenerated(cameraID string) {
	platformFramesGenerated.WithLabelValues(cameraID).Inc()
}

// DeletePlatformMetrics removes all metrics for a camera.
func DeletePlatformMetrics(cameraID string) {
	platformDeviceOpen.DeleteLabelValues(cameraID)
	platformFramesGenerated.DeleteLabelValues(cameraID)
}
