// Package playback exposes the transport operations the UI issues against
// the pipeline: play, pause, stop, seek, and the periodic position poll,
// plus the end-of-stream restart policy. All methods run on the control
// goroutine.
package playback

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/visiona/smartpole/internal/lifecycle"
)

var (
	// ErrNotSeekable is returned for seek requests below the Paused state
	ErrNotSeekable = errors.New("pipeline not seekable in current state")
)

// MediaClock is the bounded query/seek surface of the engine. ok=false
// answers never block past the engine's query timeout.
type MediaClock interface {
	QueryDuration() (int64, bool)
	QueryPosition() (int64, bool)
	Seek(positionNs int64) error
}

// Notifier pushes updates to the external observer (the UI). A
// PositionUpdated push must suppress the observer's user-seek echo for the
// duration of that single push, so periodic refreshes are not
// misinterpreted as user-initiated seeks.
type Notifier interface {
	StateUpdated(s lifecycle.State)
	DurationKnown(durationNs int64)
	PositionUpdated(positionNs int64)
	MetadataUpdated(streamIndex int, kind, text string)
	SessionError(msg string)
}

// Position is the cached playback position. Duration is queried lazily
// once and cached until Stop or a session error; position refreshes on
// every poll tick.
type Position struct {
	DurationKnown  bool
	DurationNs     int64
	LastPositionNs int64
}

// Controller owns the playback transport policy on top of the lifecycle
// machine.
type Controller struct {
	machine  *lifecycle.Machine
	clock    MediaClock
	notifier Notifier

	pos        Position
	restarting bool

	// OnPollFailure, when set, observes failed duration/position queries.
	OnPollFailure func(query string)
	// OnRestart, when set, observes each EOS-triggered restart attempt.
	OnRestart func()
}

// NewController creates a playback controller.
func NewController(machine *lifecycle.Machine, clock MediaClock, notifier Notifier) *Controller {
	return &Controller{machine: machine, clock: clock, notifier: notifier}
}

// Play requests the Playing state.
func (c *Controller) Play() (lifecycle.Result, error) {
	return c.machine.Request(lifecycle.StatePlaying)
}

// Pause requests the Paused state.
func (c *Controller) Pause() (lifecycle.Result, error) {
	return c.machine.Request(lifecycle.StatePaused)
}

// Stop regresses to Ready and invalidates the cached duration: the next
// play may negotiate a different source, so the duration is re-queried on
// the following poll.
func (c *Controller) Stop() (lifecycle.Result, error) {
	c.pos.DurationKnown = false
	c.pos.DurationNs = 0
	return c.machine.Request(lifecycle.StateReady)
}

// Seek jumps to targetNs with a flushing seek. Valid only at Paused or
// above; the target is clamped into [0, duration] when the duration is
// known and passed through unchanged otherwise.
func (c *Controller) Seek(targetNs int64) error {
	if c.machine.Current() < lifecycle.StatePaused {
		return fmt.Errorf("playback: seek in state %s: %w", c.machine.Current(), ErrNotSeekable)
	}

	target := c.clamp(targetNs)
	if err := c.clock.Seek(target); err != nil {
		return fmt.Errorf("playback: seek to %d: %w", target, err)
	}

	c.pos.LastPositionNs = target
	slog.Debug("playback: seek issued", "target_ns", target)
	return nil
}

// PollPosition refreshes the cached duration and position, pushing updates
// to the notifier. Called once per poll tick by the control loop; below
// Paused there is nothing to query. Failed queries silently keep the
// cached values and are retried on the next tick; this never blocks past
// the engine's bounded query timeout.
func (c *Controller) PollPosition() Position {
	if c.machine.Current() < lifecycle.StatePaused {
		return c.pos
	}

	if !c.pos.DurationKnown {
		if d, ok := c.clock.QueryDuration(); ok {
			c.pos.DurationKnown = true
			c.pos.DurationNs = d
			c.notifier.DurationKnown(d)
			slog.Debug("playback: duration known", "duration_ns", d)
		} else {
			c.pollFailed("duration")
		}
	}

	if p, ok := c.clock.QueryPosition(); ok {
		c.pos.LastPositionNs = p
		c.notifier.PositionUpdated(p)
	} else {
		c.pollFailed("position")
	}

	return c.pos
}

// Position returns the cache without querying.
func (c *Controller) Position() Position {
	return c.pos
}

// HandleEOS runs the auto-restart policy: stop, seek back to the start,
// play again. One attempt per end-of-stream; a second EOS arriving while a
// restart is already in flight is ignored, and a failed seek leaves
// playback stopped with the failure surfaced instead of retrying forever.
func (c *Controller) HandleEOS() {
	if c.restarting {
		slog.Debug("playback: eos during restart, ignoring")
		return
	}
	c.restarting = true

	slog.Info("playback: end of stream, restarting from start")
	if c.OnRestart != nil {
		c.OnRestart()
	}

	if _, err := c.machine.Request(lifecycle.StateReady); err != nil {
		c.restarting = false
		c.notifier.SessionError(fmt.Sprintf("restart: stop failed: %v", err))
		return
	}

	if err := c.clock.Seek(0); err != nil {
		c.restarting = false
		slog.Warn("playback: restart seek failed, staying stopped", "error", err)
		c.notifier.SessionError(fmt.Sprintf("restart: seek failed: %v", err))
		return
	}
	c.pos.LastPositionNs = 0

	if _, err := c.machine.Request(lifecycle.StatePlaying); err != nil {
		c.restarting = false
		c.notifier.SessionError(fmt.Sprintf("restart: play failed: %v", err))
	}
}

// ObserveTransition tracks confirmed lifecycle changes; reaching Playing
// completes any in-flight restart.
func (c *Controller) ObserveTransition(from, to lifecycle.State) {
	if to == lifecycle.StatePlaying {
		c.restarting = false
	}
	c.notifier.StateUpdated(to)
}

// HandleSessionError resets the restart guard and position cache after an
// engine error forced the session down; playback needs an explicit new
// command.
func (c *Controller) HandleSessionError(msg string) {
	c.restarting = false
	c.pos.DurationKnown = false
	c.pos.DurationNs = 0
	c.notifier.SessionError(msg)
}

func (c *Controller) clamp(targetNs int64) int64 {
	if targetNs < 0 {
		return 0
	}
	if c.pos.DurationKnown && targetNs > c.pos.DurationNs {
		return c.pos.DurationNs
	}
	return targetNs
}

func (c *Controller) pollFailed(query string) {
	if c.OnPollFailure != nil {
		c.OnPollFailure(query)
	}
	slog.Debug("playback: query failed, keeping cached value", "query", query)
}
