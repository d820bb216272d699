package camera

import (
	"fmt"
	"log/slog"
	"sync"
)

// FocusTag marks the capture that triggers auto-focus.
const FocusTag = "FOCUS_TAG"

// focusHalfSide is half the side of the square metering region around a tap.
const focusHalfSide = 150

// FocusState is the progress of a tap-to-focus run.
type FocusState string

// Focus states.
const (
	FocusIdle       FocusState = "idle"
	FocusCancelling FocusState = "cancelling"
	FocusTriggering FocusState = "triggering"
)

// focusTarget exposes the live capture session and its repeating builder.
// Both may be nil while the session is being reconfigured.
type focusTarget interface {
	captureSession() CaptureSession
	repeatingBuilder() *RequestBuilder
}

// FocusRegion returns the metering rectangle for a tap at (x, y).
func FocusRegion(x, y float64) MeteringRectangle {
	return MeteringRectangle{
		X:      max(int(x)-focusHalfSide, 0),
		Y:      max(int(y)-focusHalfSide, 0),
		Width:  focusHalfSide * 2,
		Height: focusHalfSide * 2,
		Weight: MeteringWeightMax - 1,
	}
}

// FocusController runs the tap-to-focus capture script: cancel any running
// auto-focus, meter around the tap, retrigger, and restore the repeating
// request once the tagged capture completes.
type FocusController struct {
	maxAFRegions int
	exec         Executor
	logger       *slog.Logger

	mu    sync.Mutex
	state FocusState
}

// NewFocusController creates a controller for a device supporting maxAFRegions regions.
func NewFocusController(maxAFRegions int, exec Executor, logger *slog.Logger) *FocusController {
	return &FocusController{
		maxAFRegions: maxAFRegions,
		exec:         exec,
		logger:       logger,
		state:        FocusIdle,
	}
}

// State returns the current focus state.
func (f *FocusController) State() FocusState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *FocusController) setState(s FocusState) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *FocusController) trigger(target focusTarget, x, y float64) error {
	session := target.captureSession()
	builder := target.repeatingBuilder()
	if session == nil || builder == nil {
		return NewError(KindDeviceClosed, "No active capture session", nil)
	}

	region := FocusRegion(x, y)
	callbacks := CaptureCallbacks{
		OnCompleted: func(req CaptureRequest) {
			if req.Tag != FocusTag {
				return
			}
			f.exec.Post(func() { f.resume(target) })
		},
	}

	f.setState(FocusCancelling)
	if err := session.StopRepeating(); err != nil {
		f.setState(FocusIdle)
		return fmt.Errorf("stop repeating: %w", err)
	}

	// A tag left over from a previous run would resume preview on the cancel capture.
	builder.SetTag("")
	builder.Set(KeyControlAFTrigger, AFTriggerCancel)
	builder.Set(KeyControlAFMode, AFModeOff)
	if err := session.Capture(builder.Build(), callbacks); err != nil {
		f.setState(FocusIdle)
		return fmt.Errorf("cancel auto-focus: %w", err)
	}

	if f.maxAFRegions >= 1 {
		builder.Set(KeyControlAFRegions, []MeteringRectangle{region})
	}
	builder.Set(KeyControlMode, ControlModeAuto)
	builder.Set(KeyControlAFMode, AFModeAuto)
	builder.Set(KeyControlAFTrigger, AFTriggerStart)
	builder.SetTag(FocusTag)

	f.setState(FocusTriggering)
	if err := session.Capture(builder.Build(), callbacks); err != nil {
		f.setState(FocusIdle)
		return fmt.Errorf("trigger auto-focus: %w", err)
	}

	f.logger.Debug("Auto-focus triggered", "x", region.X, "y", region.Y)
	return nil
}

// resume clears the trigger and restores the repeating request.
func (f *FocusController) resume(target focusTarget) {
	defer f.setState(FocusIdle)

	session := target.captureSession()
	builder := target.repeatingBuilder()
	if session == nil || builder == nil {
		return
	}
	builder.Clear(KeyControlAFTrigger)
	if err := session.SetRepeatingRequest(builder.Build()); err != nil {
		f.logger.Warn("Failed to resume repeating request after focus", "error", err)
	}
}
