package drag

import (
	"meal-scheduler/internal/calendar"
	"meal-scheduler/internal/placement"
	"meal-scheduler/internal/schedule"

	"go.uber.org/zap"
)

// Occupancy is the current view of the calendar. It is read at drop time,
// never captured when the gesture starts.
type Occupancy interface {
	// InScope reports whether key is a cell that can accept drops now.
	InScope(key calendar.SlotKey) bool
	// Occupants of key in the last authoritative snapshot.
	Occupants(key calendar.SlotKey) []schedule.Schedule
}

// Committer receives accepted operations. Submit must not block on the
// store call.
type Committer interface {
	Submit(op placement.Operation)
}

// Notifier shows transient warnings to the user.
type Notifier interface {
	Warn(message string)
}

// Outcome is what one Dispatch did.
type Outcome struct {
	// State right after the intent. Committing and Cancelled are reported
	// here even though the machine is already back to Idle.
	State State
	// Decision is set when a drop reached the rule engine.
	Decision *placement.Decision
}

// Machine runs gestures for one user. It is not safe for concurrent use;
// the owner serializes Dispatch calls.
type Machine struct {
	state     State
	occupancy Occupancy
	committer Committer
	notifier  Notifier
	logger    *zap.Logger
}

// NewMachine creates an idle machine.
func NewMachine(occupancy Occupancy, committer Committer, notifier Notifier, logger *zap.Logger) *Machine {
	return &Machine{
		occupancy: occupancy,
		committer: committer,
		notifier:  notifier,
		logger:    logger,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Dispatch applies intent and, on a drop over a cell, evaluates and commits
// the proposal. Cells the occupancy does not accept are treated as outside
// any target.
func (m *Machine) Dispatch(intent Intent) Outcome {
	if enter, ok := intent.(Enter); ok && !m.occupancy.InScope(enter.Target) {
		intent = Leave{}
	}

	next := Reduce(m.state, intent)
	out := Outcome{State: next}

	switch next.Phase {
	case Committing:
		target := *next.Target
		if !m.occupancy.InScope(target) {
			out.State = State{Phase: Cancelled, Payload: next.Payload}
			break
		}
		proposal := next.Payload.Proposal(target)
		decision := placement.Evaluate(proposal, m.occupancy.Occupants(target))
		out.Decision = &decision
		m.commit(decision)
	case Cancelled:
		if next.Err != nil {
			m.logger.Warn("drag cancelled", zap.Error(next.Err))
		} else {
			m.logger.Debug("drag cancelled", zap.Stringer("kind", next.Payload.Kind))
		}
	}

	if next.Phase == Committing || next.Phase == Cancelled {
		m.state = State{}
	} else {
		m.state = next
	}
	return out
}

func (m *Machine) commit(d placement.Decision) {
	if d.Accepted {
		m.committer.Submit(d.Operation)
		return
	}
	if msg := d.Message(); msg != "" {
		m.notifier.Warn(msg)
	}
}
