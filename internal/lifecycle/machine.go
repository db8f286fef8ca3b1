package lifecycle

import (
	"log/slog"
)

// Driver requests state transitions from the underlying media engine.
// Implementations must never block on I/O; an asynchronous transition is
// reported as ResultPending and confirmed later via HandleStateChanged.
type Driver interface {
	SetState(s State) (Result, error)
}

// Hooks are optional callbacks fired by the machine. All of them run on
// the control goroutine and must not block.
type Hooks struct {
	// OnTransition fires whenever the authoritative state changes
	OnTransition func(from, to State)
	// OnReachPaused fires on the Ready->Paused edge, before the normal
	// position update would arrive. Used for a proactive duration/position
	// refresh. Read-only, never blocks.
	OnReachPaused func()
	// OnPlayable fires when a playable state (Paused or Playing) is
	// confirmed. Used for diagnostic topology snapshots; may be nil.
	OnPlayable func(s State)
	// OnSessionError fires when an engine error forces the machine back to
	// Ready. The session is over until an explicit new command arrives.
	OnSessionError func(msg string)
}

// Machine drives the pipeline through Null/Ready/Paused/Playing.
//
// All methods must be called from the control goroutine only; events
// produced on engine worker threads reach the machine through the event
// bus. The machine keeps at most one pending target: a request issued
// while another is pending supersedes it, so the net effect of a burst of
// requests is a single transition to the last target.
type Machine struct {
	driver Driver
	hooks  Hooks

	current State
	pending bool
	target  State
}

// NewMachine creates a state machine starting at StateNull.
func NewMachine(driver Driver, hooks Hooks) *Machine {
	return &Machine{driver: driver, hooks: hooks, current: StateNull}
}

// Current returns the last state confirmed by the engine.
func (m *Machine) Current() State {
	return m.current
}

// Pending reports whether a transition is outstanding and, if so, its target.
func (m *Machine) Pending() (State, bool) {
	return m.target, m.pending
}

// Request asks the engine for a transition to target.
//
// Returns ResultCompleted if the engine switched synchronously,
// ResultPending if confirmation will arrive on the bus, ResultRejected if
// the engine refused. A request while another is pending overwrites the
// outstanding target; the superseded target is discarded.
func (m *Machine) Request(target State) (Result, error) {
	if target == m.current && !m.pending {
		return ResultCompleted, nil
	}
	if m.pending && target == m.target {
		// Same target already in flight; nothing new to ask the engine.
		slog.Debug("lifecycle: transition already pending", "target", target)
		return ResultPending, nil
	}

	res, err := m.driver.SetState(target)
	if err != nil || res == ResultRejected {
		slog.Warn("lifecycle: transition rejected",
			"from", m.current,
			"target", target,
			"error", err,
		)
		return ResultRejected, err
	}

	switch res {
	case ResultCompleted:
		m.pending = false
		m.confirm(target)
	case ResultPending:
		if m.pending {
			slog.Debug("lifecycle: pending target superseded",
				"old_target", m.target,
				"new_target", target,
			)
		}
		m.pending = true
		m.target = target
	}
	return res, nil
}

// HandleStateChanged processes a state-changed event relayed from the
// engine. A confirmation for the current pending target clears the pending
// overlay exactly once; a confirmation for a superseded target updates the
// authoritative state but leaves the overlay in place.
func (m *Machine) HandleStateChanged(old, new State, morePending bool) {
	if m.pending && new == m.target && !morePending {
		m.pending = false
	}
	m.confirm(new)

	if old == StateReady && new == StatePaused && m.hooks.OnReachPaused != nil {
		m.hooks.OnReachPaused()
	}
}

// HandleError processes an engine error: the pipeline regresses to Ready
// immediately, any pending target is dropped, and the failure is surfaced
// as fatal for this playback session.
func (m *Machine) HandleError(msg string) {
	slog.Error("lifecycle: engine error, forcing ready", "error", msg)

	m.pending = false
	if _, err := m.driver.SetState(StateReady); err != nil {
		slog.Error("lifecycle: failed to regress to ready", "error", err)
	}
	m.confirm(StateReady)

	if m.hooks.OnSessionError != nil {
		m.hooks.OnSessionError(msg)
	}
}

// confirm commits a new authoritative state and fires hooks.
func (m *Machine) confirm(s State) {
	if s == m.current {
		return
	}
	from := m.current
	m.current = s

	slog.Info("lifecycle: state changed", "from", from, "to", s)

	if m.hooks.OnTransition != nil {
		m.hooks.OnTransition(from, s)
	}
	if s >= StatePaused && m.hooks.OnPlayable != nil {
		m.hooks.OnPlayable(s)
	}
}
