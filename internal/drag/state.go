// Package drag models a drag-and-drop gesture as a state machine. Front
// ends translate their events into intents; Reduce applies the legal
// transitions and Machine runs the drop.
package drag

import (
	"meal-scheduler/internal/calendar"
)

// Phase of a gesture.
type Phase int

const (
	Idle Phase = iota
	Dragging
	Hovering
	Committing
	Cancelled
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Hovering:
		return "hovering"
	case Committing:
		return "committing"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// State is an immutable value; Reduce returns a new one.
type State struct {
	Phase   Phase
	Payload Payload
	// Target is the last cell entered. It is set in Hovering and Committing.
	Target *calendar.SlotKey
	// Err is why a gesture was cancelled when it was not a plain abort.
	Err error
}

// Active reports whether a gesture is in progress.
func (s State) Active() bool {
	return s.Phase == Dragging || s.Phase == Hovering
}

// Intent is an input to the state machine.
type Intent interface {
	intent()
}

// Begin starts a gesture with an already-decoded payload.
type Begin struct{ Payload Payload }

// BeginRaw starts a gesture from the drag transfer data.
type BeginRaw struct{ Data []byte }

// Enter moves the pointer over a drop-target cell.
type Enter struct{ Target calendar.SlotKey }

// Leave moves the pointer off the current cell.
type Leave struct{}

// Drop releases the pointer.
type Drop struct{}

// Abort ends the gesture without a drop, e.g. on escape.
type Abort struct{}

func (Begin) intent()    {}
func (BeginRaw) intent() {}
func (Enter) intent()    {}
func (Leave) intent()    {}
func (Drop) intent()     {}
func (Abort) intent()    {}

// Reduce applies intent to s. Intents that are not legal in the current
// phase leave s unchanged. Committing and Cancelled are settled back to Idle
// by the Machine, so Reduce ignores every intent in those phases.
func Reduce(s State, intent Intent) State {
	switch in := intent.(type) {
	case Begin:
		if s.Phase != Idle {
			return s
		}
		return State{Phase: Dragging, Payload: in.Payload}

	case BeginRaw:
		if s.Phase != Idle {
			return s
		}
		p, err := DecodePayload(in.Data)
		if err != nil {
			return State{Phase: Cancelled, Err: err}
		}
		return State{Phase: Dragging, Payload: p}

	case Enter:
		if !s.Active() {
			return s
		}
		target := in.Target
		return State{Phase: Hovering, Payload: s.Payload, Target: &target}

	case Leave:
		if s.Phase != Hovering {
			return s
		}
		return State{Phase: Dragging, Payload: s.Payload}

	case Drop:
		switch s.Phase {
		case Hovering:
			return State{Phase: Committing, Payload: s.Payload, Target: s.Target}
		case Dragging:
			return State{Phase: Cancelled, Payload: s.Payload}
		}
		return s

	case Abort:
		if !s.Active() {
			return s
		}
		return State{Phase: Cancelled, Payload: s.Payload}
	}
	return s
}
