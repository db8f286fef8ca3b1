package eventbus

import "log/slog"

// Handlers is the fixed dispatch table: one handler per event kind. Nil
// entries mean the kind is unhandled and gets dropped at debug level.
// Handlers run on the control goroutine and may mutate core state freely.
type Handlers struct {
	Error         func(ErrorEvent)
	EOS           func(EOSEvent)
	StateChanged  func(StateChangedEvent)
	Tags          func(TagsEvent)
	Application   func(ApplicationEvent)
	PortAnnounced func(PortAnnouncedEvent)
}

// Dispatcher demultiplexes drained events into the handler table. Exactly
// one handler fires per event; unknown kinds are never fatal.
type Dispatcher struct {
	h       Handlers
	dropped uint64

	// Observe, when set, sees every event before dispatch. Used for
	// instrumentation counters.
	Observe func(Event)
	// OnUnhandled, when set, sees every dropped event.
	OnUnhandled func(Event)
}

// NewDispatcher creates a dispatcher over the given table.
func NewDispatcher(h Handlers) *Dispatcher {
	return &Dispatcher{h: h}
}

// Dispatch routes one event to its handler.
func (d *Dispatcher) Dispatch(ev Event) {
	if d.Observe != nil {
		d.Observe(ev)
	}

	switch e := ev.(type) {
	case ErrorEvent:
		if d.h.Error != nil {
			d.h.Error(e)
			return
		}
	case EOSEvent:
		if d.h.EOS != nil {
			d.h.EOS(e)
			return
		}
	case StateChangedEvent:
		if d.h.StateChanged != nil {
			d.h.StateChanged(e)
			return
		}
	case TagsEvent:
		if d.h.Tags != nil {
			d.h.Tags(e)
			return
		}
	case ApplicationEvent:
		if d.h.Application != nil {
			d.h.Application(e)
			return
		}
	case PortAnnouncedEvent:
		if d.h.PortAnnounced != nil {
			d.h.PortAnnounced(e)
			return
		}
	}

	d.dropped++
	if d.OnUnhandled != nil {
		d.OnUnhandled(ev)
	}
	slog.Debug("eventbus: dropping unhandled event",
		"type", Kind(ev),
		"source", ev.Source(),
	)
}

// Dropped returns how many events had no handler.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped
}

// Kind returns a short label for an event's variant, for logging and
// metric labels.
func Kind(ev Event) string {
	switch ev.(type) {
	case ErrorEvent:
		return "error"
	case EOSEvent:
		return "eos"
	case StateChangedEvent:
		return "state-changed"
	case TagsEvent:
		return "tags"
	case ApplicationEvent:
		return "application"
	case PortAnnouncedEvent:
		return "port-announced"
	default:
		return "unknown"
	}
}
