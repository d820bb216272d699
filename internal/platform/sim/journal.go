package sim

import (
	"sync"

	"github.com/smazurov/camctl/internal/camera"
)

// Journal operation names.
const (
	OpOpenCamera          = "openCamera"
	OpCloseDevice         = "closeDevice"
	OpCreateCaptureReq    = "createCaptureRequest"
	OpCreateCaptureSess   = "createCaptureSession"
	OpCloseSession        = "closeSession"
	OpCapture             = "capture"
	OpSetRepeatingRequest = "setRepeatingRequest"
	OpStopRepeating       = "stopRepeating"
	OpNewImageReader      = "newImageReader"
	OpNewRecorder         = "newRecorder"
	OpRecorderStart       = "recorderStart"
	OpRecorderStop        = "recorderStop"
	OpRecorderRelease     = "recorderRelease"
)

// Call is one recorded platform call.
type Call struct {
	Op       string
	CameraID string
	Template camera.Template
	Surfaces []camera.Surface
	// Request is set for capture and setRepeatingRequest.
	Request *camera.CaptureRequest
}

// Journal records platform calls in order.
type Journal struct {
	mu    sync.Mutex
	calls []Call
}

func (j *Journal) record(c Call) {
	j.mu.Lock()
	j.calls = append(j.calls, c)
	j.mu.Unlock()
}

// Calls returns a copy of all recorded calls.
func (j *Journal) Calls() []Call {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Call, len(j.calls))
	copy(out, j.calls)
	return out
}

// Ops returns the operation names in call order.
func (j *Journal) Ops() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	ops := make([]string, len(j.calls))
	for i, c := range j.calls {
		ops[i] = c.Op
	}
	return ops
}

// Count returns how many times op was called.
func (j *Journal) Count(op string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := 0
	for _, c := range j.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Last returns the most recent call of op.
func (j *Journal) Last(op string) (Call, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := len(j.calls) - 1; i >= 0; i-- {
		if j.calls[i].Op == op {
			return j.calls[i], true
		}
	}
	return Call{}, false
}

// Filter returns all calls of op in order.
func (j *Journal) Filter(op string) []Call {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []Call
	for _, c := range j.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets all recorded calls.
func (j *Journal) Reset() {
	j.mu.Lock()
	j.calls = nil
	j.mu.Unlock()
}
