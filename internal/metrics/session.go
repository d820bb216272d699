// Package metrics provides Prometheus metrics for camera sessions and host commands.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session modes exported as gauge labels.
var sessionModes = []string{"idle", "preview", "streaming", "recording"}

var (
	sessionMode = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "camctl",
		Subsystem: "session",
		Name:      "mode",
		Help:      "1 for the current mode of the session, 0 otherwise",
	}, []string{"session_id", "mode"})

	sessionZoom = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "camctl",
		Subsystem: "session",
		Name:      "zoom",
		Help:      "Current digital zoom factor",
	}, []string{"session_id"})

	framesStreamed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camctl",
		Subsystem: "session",
		Name:      "frames_streamed_total",
		Help:      "Frames published on the image stream",
	}, []string{"session_id"})

	stillCaptures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camctl",
		Subsystem: "session",
		Name:      "still_captures_total",
		Help:      "Still captures by outcome",
	}, []string{"outcome"})

	// Local cache for the status endpoint.
	sessionCache   = make(map[string]*SessionMetrics)
	sessionCacheMu sync.RWMutex
)

// SessionMetrics holds current values for a session.
type SessionMetrics struct {
	CameraID       string  `json:"camera_id"`
	TextureID      int64   `json:"texture_id"`
	Mode           string  `json:"mode"`
	Zoom           float64 `json:"zoom"`
	FramesStreamed uint64  `json:"frames_streamed"`
}

// RegisterSession starts tracking a session in idle mode at zoom 1.
func RegisterSession(sessionID, cameraID string, textureID int64) {
	sessionZoom.WithLabelValues(sessionID).Set(1)
	setModeGauge(sessionID, "idle")
	updateCache(sessionID, func(m *SessionMetrics) {
		m.CameraID = cameraID
		m.TextureID = textureID
		m.Mode = "idle"
		m.Zoom = 1
	})
}

// SetSessionMode records the current mode of a session.
func SetSessionMode(sessionID, mode string) {
	setModeGauge(sessionID, mode)
	updateCache(sessionID, func(m *SessionMetrics) { m.Mode = mode })
}

// SetSessionZoom records the current zoom factor of a session.
func SetSessionZoom(sessionID string, zoom float64) {
	sessionZoom.WithLabelValues(sessionID).Set(zoom)
	updateCache(sessionID, func(m *SessionMetrics) { m.Zoom = zoom })
}

// IncFramesStreamed counts a frame published for a session.
func IncFramesStreamed(sessionID string) {
	framesStreamed.WithLabelValues(sessionID).Inc()
	updateCache(sessionID, func(m *SessionMetrics) { m.FramesStreamed++ })
}

// RecordStillCapture counts a still capture with outcome "success" or "failure".
func RecordStillCapture(outcome string) {
	stillCaptures.WithLabelValues(outcome).Inc()
}

// DeleteSession removes all metrics for a session.
func DeleteSession(sessionID string) {
	for _, mode := range sessionModes {
		sessionMode.DeleteLabelValues(sessionID, mode)
	}
	sessionZoom.DeleteLabelValues(sessionID)
	framesStreamed.DeleteLabelValues(sessionID)

	sessionCacheMu.Lock()
	delete(sessionCache, sessionID)
	sessionCacheMu.Unlock()
}

// GetSession returns current values for a session.
func GetSession(sessionID string) *SessionMetrics {
	sessionCacheMu.RLock()
	defer sessionCacheMu.RUnlock()
	if m, ok := sessionCache[sessionID]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllSessions returns values for all tracked sessions.
func GetAllSessions() map[string]*SessionMetrics {
	sessionCacheMu.RLock()
	defer sessionCacheMu.RUnlock()
	result := make(map[string]*SessionMetrics, len(sessionCache))
	for id, m := range sessionCache {
		dup := *m
		result[id] = &dup
	}
	return result
}

func setModeGauge(sessionID, current string) {
	for _, mode := range sessionModes {
		v := 0.0
		if mode == current {
			v = 1
		}
		sessionMode.WithLabelValues(sessionID, mode).Set(v)
	}
}

func updateCache(sessionID string, update func(*SessionMetrics)) {
	sessionCacheMu.Lock()
	defer sessionCacheMu.Unlock()
	m, ok := sessionCache[sessionID]
	if !ok {
		m = &SessionMetrics{}
		sessionCache[sessionID] = m
	}
	update(m)
}
