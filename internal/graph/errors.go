package graph

import "errors"

// Build-time configuration errors are fatal and returned to the caller.
// Link errors degrade the affected branch but keep the pipeline running.
var (
	// ErrDuplicateNode is returned when a node name is already registered
	ErrDuplicateNode = errors.New("node name already registered")
	// ErrUnknownNode is returned when an operation names a node that is
	// not part of the graph
	ErrUnknownNode = errors.New("node not found in graph")
	// ErrUnknownPort is returned when a node has no port with that name
	ErrUnknownPort = errors.New("port not found on node")
	// ErrBadDirection is returned when a link does not go output->input
	ErrBadDirection = errors.New("link must connect an output port to an input port")
	// ErrIncompatibleShape is returned when two linked ports carry
	// incompatible media shapes
	ErrIncompatibleShape = errors.New("incompatible media shapes")
	// ErrPortTaken is returned when the input port is already linked
	ErrPortTaken = errors.New("port already linked")
	// ErrUnclaimedPort is returned when a dynamic node announces a port
	// that no deferred link is waiting for. Non-fatal: the port is left
	// unconnected and the pipeline continues degraded.
	ErrUnclaimedPort = errors.New("announced port claimed by no deferred link")
	// ErrCycle is returned when the graph is not a simple DAG
	ErrCycle = errors.New("graph contains a cycle")
	// ErrUnresolvedLink is returned when a deferred link is still pending
	// at a point where the graph must be fully connected
	ErrUnresolvedLink = errors.New("deferred link still unresolved")
	// ErrRejectedParameter is returned when the engine refuses a runtime
	// parameter value; the previous value stays in effect
	ErrRejectedParameter = errors.New("parameter value rejected")
)
