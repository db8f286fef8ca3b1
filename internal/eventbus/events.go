// Package eventbus relays notifications produced on engine worker threads
// to the single control goroutine. The bus is the only crossing point:
// worker threads post, the control loop drains, handlers mutate core state
// without locks because nothing else can reach it.
package eventbus

import (
	"github.com/visiona/smartpole/internal/graph"
	"github.com/visiona/smartpole/internal/lifecycle"
)

// Event is a tagged notification from the engine. Concrete variants are
// matched exhaustively by the Dispatcher's handler table.
type Event interface {
	// Source names the element or subsystem that produced the event
	Source() string
}

// ErrorEvent reports an engine failure. Fatal for the current playback
// session: the lifecycle regresses to Ready and waits for a new command.
type ErrorEvent struct {
	Origin  string
	Message string
	Detail  string
}

// EOSEvent signals the media source has no more data.
type EOSEvent struct {
	Origin string
}

// StateChangedEvent confirms an engine state transition. MorePending is
// set while the engine is still walking toward a further state.
type StateChangedEvent struct {
	Origin      string
	Old         lifecycle.State
	New         lifecycle.State
	MorePending bool
}

// TagsEvent reports metadata discovered in a stream.
type TagsEvent struct {
	Origin      string
	StreamIndex int
	Kind        string
	Text        string
}

// ApplicationEvent carries an engine-defined custom notification.
type ApplicationEvent struct {
	Origin string
	Name   string
}

// PortAnnouncedEvent reports a dynamic-output node announcing a negotiated
// output port. Riding the bus keeps graph mutation on the control
// goroutine even though the announcement fires on a streaming thread.
type PortAnnouncedEvent struct {
	Origin string
	Node   string
	Port   graph.PortSpec
}

// Source implementations.
func (e ErrorEvent) Source() string         { return e.Origin }
func (e EOSEvent) Source() string           { return e.Origin }
func (e StateChangedEvent) Source() string  { return e.Origin }
func (e TagsEvent) Source() string          { return e.Origin }
func (e ApplicationEvent) Source() string   { return e.Origin }
func (e PortAnnouncedEvent) Source() string { return e.Origin }
