package graph

import (
	"errors"
	"log/slog"
)

// LinkCompleter finishes a resolved link inside the underlying engine,
// wiring the announced source port to the fixed input of the downstream
// element.
type LinkCompleter interface {
	CompletePortLink(srcNode, portName, dstNode string) error
}

// Linker resolves runtime-announced output ports into the graph model and
// mirrors the completed link into the engine.
//
// Announcements originate on engine worker threads but reach the linker as
// bus events, so ResolveAnnounced always runs on the control goroutine.
// Resolution is idempotent: a re-announcement of an already-resolved port
// is a no-op. Link failures are warnings; the affected downstream branch
// stays disconnected while the rest of the pipeline keeps running.
type Linker struct {
	graph     *Graph
	completer LinkCompleter
}

// NewLinker creates a dynamic linker over g. completer may be nil when the
// engine handles its own pad wiring.
func NewLinker(g *Graph, completer LinkCompleter) *Linker {
	return &Linker{graph: g, completer: completer}
}

// ResolveAnnounced handles a port announcement from a dynamic-output node.
func (l *Linker) ResolveAnnounced(nodeName string, spec PortSpec) {
	node, err := l.graph.Node(nodeName)
	if err != nil {
		slog.Warn("linker: announcement from unknown node",
			"node", nodeName,
			"port", spec.Name,
		)
		return
	}

	// Snapshot the downstream peer before resolution detaches it on a
	// shape mismatch.
	var dst string
	for _, dl := range l.graph.deferred {
		if dl.Src.Owner == node {
			dst = dl.Dst.Owner.Name
			break
		}
	}

	if err := l.graph.ResolvePendingOutput(node, spec); err != nil {
		if errors.Is(err, ErrUnclaimedPort) {
			slog.Warn("linker: unclaimed port, leaving unconnected",
				"node", nodeName,
				"port", spec.Name,
				"caps", spec.Caps,
			)
			return
		}
		slog.Warn("linker: port resolution failed", "node", nodeName, "error", err)
		return
	}

	if dst == "" || l.completer == nil {
		return
	}
	out, _ := node.Output("")
	if out == nil || out.Link == nil {
		// Resolution degraded the branch; nothing to complete.
		return
	}
	if err := l.completer.CompletePortLink(nodeName, spec.Name, dst); err != nil {
		slog.Warn("linker: engine link failed, branch disconnected",
			"src", nodeName,
			"dst", dst,
			"error", err,
		)
	}
}
