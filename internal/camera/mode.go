package camera

import (
	"errors"
	"fmt"

	"github.com/looplab/fsm"
)

// Mode is what the repeating request of a session is currently driving.
type Mode string

// Session modes. Still capture is an action on top of preview or streaming.
const (
	ModeIdle      Mode = "idle"
	ModePreview   Mode = "preview"
	ModeStreaming Mode = "streaming"
	ModeRecording Mode = "recording"
)

const (
	eventStartPreview   = "start_preview"
	eventStartStream    = "start_stream"
	eventStartRecording = "start_recording"
	eventClose          = "close"
)

func eventFor(to Mode) string {
	switch to {
	case ModePreview:
		return eventStartPreview
	case ModeStreaming:
		return eventStartStream
	case ModeRecording:
		return eventStartRecording
	default:
		return eventClose
	}
}

// modeMachine tracks the session mode and rejects transitions the session
// cannot make, such as streaming frames while a recording is running.
type modeMachine struct {
	fsm *fsm.FSM
}

func newModeMachine(onChange func(from, to Mode)) *modeMachine {
	all := []string{string(ModeIdle), string(ModePreview), string(ModeStreaming), string(ModeRecording)}
	return &modeMachine{
		fsm: fsm.NewFSM(
			string(ModeIdle),
			fsm.Events{
				{Name: eventStartPreview, Src: all, Dst: string(ModePreview)},
				{Name: eventStartStream, Src: []string{string(ModePreview), string(ModeStreaming)}, Dst: string(ModeStreaming)},
				{Name: eventStartRecording, Src: []string{string(ModePreview), string(ModeStreaming), string(ModeRecording)}, Dst: string(ModeRecording)},
				{Name: eventClose, Src: all, Dst: string(ModeIdle)},
			},
			fsm.Callbacks{
				"enter_state": func(e *fsm.Event) {
					if onChange != nil {
						onChange(Mode(e.Src), Mode(e.Dst))
					}
				},
			},
		),
	}
}

func (m *modeMachine) current() Mode {
	return Mode(m.fsm.Current())
}

func (m *modeMachine) can(to Mode) bool {
	return m.fsm.Can(eventFor(to))
}

// transition moves to the given mode. Re-entering the current mode is not an error.
func (m *modeMachine) transition(to Mode) error {
	err := m.fsm.Event(eventFor(to))
	if err == nil {
		return nil
	}
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	return fmt.Errorf("cannot switch from %s to %s: %w", m.current(), to, err)
}
