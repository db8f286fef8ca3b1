package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/visiona/smartpole/internal/eventbus"
	"github.com/visiona/smartpole/internal/lifecycle"
	"github.com/visiona/smartpole/internal/playback"
)

// Callbacks are the operations the loop executes on behalf of commands.
// All of them run on the loop goroutine.
type Callbacks struct {
	OnPlay         func() (lifecycle.Result, error)
	OnPause        func() (lifecycle.Result, error)
	OnStop         func() (lifecycle.Result, error)
	OnSeek         func(positionNs int64) error
	OnSetParameter func(node, key string, value any) error
	OnGetPosition  func() playback.Position
	OnGetStatus    func() map[string]any
}

// SeekGate reports whether a position push to the UI is in flight, in
// which case an arriving seek is our own echo and gets dropped.
type SeekGate interface {
	Suppressed() bool
}

// Loop is the single consumer of the event bus and the command queue. It
// owns the two recurring suspension points of the core: the bus drain and
// the periodic position poll. Everything it calls mutates pipeline state
// without locks because nothing else can reach that state.
type Loop struct {
	bus        *eventbus.Bus
	dispatcher *eventbus.Dispatcher
	commands   <-chan Command
	respond    func(Response)
	callbacks  Callbacks
	seekGate   SeekGate

	pollInterval time.Duration
	poll         func()

	// OnCommand, when set, observes each processed command for
	// instrumentation.
	OnCommand func(name, status string)
}

// NewLoop assembles the control loop. respond and seekGate may be nil in
// tests.
func NewLoop(
	bus *eventbus.Bus,
	dispatcher *eventbus.Dispatcher,
	commands <-chan Command,
	respond func(Response),
	callbacks Callbacks,
	seekGate SeekGate,
	pollInterval time.Duration,
	poll func(),
) *Loop {
	return &Loop{
		bus:          bus,
		dispatcher:   dispatcher,
		commands:     commands,
		respond:      respond,
		callbacks:    callbacks,
		seekGate:     seekGate,
		pollInterval: pollInterval,
		poll:         poll,
	}
}

// Run drains events, commands and poll ticks until the context ends. It
// never busy-spins: every iteration parks on the select until something
// arrives.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	slog.Info("control loop started", "poll_interval", l.pollInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("control loop stopping")
			return ctx.Err()

		case ev, ok := <-l.bus.Events():
			if !ok {
				return nil
			}
			l.dispatcher.Dispatch(ev)

		case cmd, ok := <-l.commands:
			if !ok {
				return nil
			}
			resp := l.Execute(cmd)
			if l.respond != nil {
				l.respond(resp)
			}

		case <-ticker.C:
			if l.poll != nil {
				l.poll()
			}
		}
	}
}

// Execute runs one command against the callbacks and builds its response.
func (l *Loop) Execute(cmd Command) Response {
	resp := Response{ID: cmd.ID, CommandAck: cmd.Name}

	switch cmd.Name {
	case "play":
		l.transition(&resp, l.callbacks.OnPlay)

	case "pause":
		l.transition(&resp, l.callbacks.OnPause)

	case "stop":
		l.transition(&resp, l.callbacks.OnStop)

	case "seek":
		if l.seekGate != nil && l.seekGate.Suppressed() {
			// Echo of our own position push, not a user request.
			slog.Debug("seek dropped, position push in flight")
			resp.Status = "ignored"
			break
		}
		pos, ok := numberParam(cmd.Params, "position_ns")
		if !ok {
			resp.Status = "error"
			resp.Error = "missing or invalid 'position_ns' parameter (expected integer nanoseconds)"
			break
		}
		if err := l.callbacks.OnSeek(pos); err != nil {
			resp.Status = "error"
			resp.Error = err.Error()
			break
		}
		resp.Status = "success"
		resp.Data = map[string]any{"position_ns": pos}

	case "set_parameter":
		node, okNode := cmd.Params["node"].(string)
		key, okKey := cmd.Params["key"].(string)
		value, okValue := cmd.Params["value"]
		if !okNode || !okKey || !okValue {
			resp.Status = "error"
			resp.Error = "missing 'node', 'key' or 'value' parameter"
			break
		}
		if err := l.callbacks.OnSetParameter(node, key, value); err != nil {
			resp.Status = "error"
			resp.Error = err.Error()
			break
		}
		resp.Status = "success"
		resp.Data = map[string]any{"node": node, "key": key, "value": value}

	case "get_position":
		pos := l.callbacks.OnGetPosition()
		resp.Status = "success"
		resp.Data = map[string]any{
			"duration_known":   pos.DurationKnown,
			"duration_ns":      pos.DurationNs,
			"last_position_ns": pos.LastPositionNs,
		}

	case "get_status":
		resp.Status = "success"
		resp.Data = l.callbacks.OnGetStatus()

	default:
		resp.Status = "error"
		resp.Error = fmt.Sprintf("unknown command: %s", cmd.Name)
	}

	if l.OnCommand != nil {
		l.OnCommand(cmd.Name, resp.Status)
	}
	return resp
}

// transition runs a play/pause/stop callback and encodes its result.
func (l *Loop) transition(resp *Response, op func() (lifecycle.Result, error)) {
	res, err := op()
	if err != nil {
		resp.Status = "error"
		resp.Error = err.Error()
		return
	}
	resp.Status = "success"
	resp.Data = map[string]any{"transition": res.String()}
}

// numberParam reads an integer parameter that JSON decoding may have
// produced as float64, int or json.Number-style string.
func numberParam(params map[string]any, key string) (int64, bool) {
	switch v := params[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}
