// Package engine defines the boundary to the external media-processing
// engine. The core never touches media data; it creates elements, links
// them, requests lifecycle transitions and runs bounded queries, while the
// engine's own worker threads report back through the event bus.
package engine

import (
	"context"

	"github.com/visiona/smartpole/internal/eventbus"
	"github.com/visiona/smartpole/internal/lifecycle"
)

// Poster accepts events produced on engine worker threads.
type Poster interface {
	Post(ev eventbus.Event) bool
}

// Engine is the full boundary contract. Implementations: the GStreamer
// adapter in gstengine, and the in-tree Mock for tests and camera-less
// runs.
//
// All queries are bounded and synchronous; ok=false means the engine could
// not answer in time and the caller falls back to cached values. SetState
// never blocks on the transition itself: an asynchronous switch returns
// ResultPending and is confirmed later by a StateChangedEvent on the bus.
type Engine interface {
	// CreateElement instantiates an element of the given kind and applies
	// its initial parameters.
	CreateElement(kind, name string, params map[string]any) error

	// SetElementProperty updates one runtime parameter on one element.
	SetElementProperty(node, key string, value any) error

	// LinkElements wires two already-created elements eagerly.
	LinkElements(src, dst string) error

	// WatchPorts subscribes to port announcements from a dynamic-output
	// element; each announcement arrives as a PortAnnouncedEvent.
	WatchPorts(node string) error

	// CompletePortLink finishes a deferred link once the announced source
	// port exists.
	CompletePortLink(srcNode, portName, dstNode string) error

	// SetState requests a lifecycle transition.
	SetState(s lifecycle.State) (lifecycle.Result, error)

	// QueryDuration returns the stream duration in nanoseconds.
	QueryDuration() (int64, bool)

	// QueryPosition returns the playback position in nanoseconds.
	QueryPosition() (int64, bool)

	// Seek jumps to the given position with a flushing seek, discarding
	// buffered-but-unconsumed data so the visible position updates
	// immediately.
	Seek(positionNs int64) error

	// Start begins pumping engine messages onto the bus.
	Start(ctx context.Context) error

	// Close tears the engine down to the null state.
	Close() error
}
