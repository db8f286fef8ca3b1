// Package graph holds the media-graph model: processing nodes, their
// typed ports, and the links between them. The model mirrors what the
// underlying engine assembles, including links that cannot be completed
// until the remote stream negotiates its output shape.
//
// The graph is owned by the control goroutine; nothing here is safe for
// concurrent use, and nothing here needs to be.
package graph

import (
	"fmt"
	"log/slog"
	"strings"
)

// Direction tells whether a port consumes or produces data.
type Direction int

const (
	// Input ports consume data from an upstream link
	Input Direction = iota
	// Output ports produce data for a downstream link
	Output
)

// CapsAny matches every media shape.
const CapsAny = "ANY"

// PortSpec declares a port at build or resolution time.
type PortSpec struct {
	Name string
	Caps string
}

// Port is a typed connection point on a node. An output port on a
// dynamic-output node stays unresolved until the engine announces its
// negotiated shape.
type Port struct {
	Name     string
	Dir      Direction
	Caps     string
	Resolved bool
	Owner    *Node
	Link     *Link
}

// Node is a processing stage: source, filter, decoder or sink. Parameters
// are runtime-mutable through the ToggleRegistry.
type Node struct {
	Name    string
	Kind    string
	Params  map[string]any
	Inputs  []*Port
	Outputs []*Port

	// DynamicOutput marks source-like nodes whose output ports appear
	// only after live input data is inspected.
	DynamicOutput bool
}

// NodeSpec declares a node for AddNode.
type NodeSpec struct {
	Name          string
	Kind          string
	Params        map[string]any
	Inputs        []PortSpec
	Outputs       []PortSpec
	DynamicOutput bool
}

// Link is an ordered output->input connection. A deferred link has an
// unresolved source port and becomes active on resolution.
type Link struct {
	Src      *Port
	Dst      *Port
	Deferred bool
}

// Graph is the set of nodes plus eager and deferred links. Invariant: a
// simple DAG from source to sink.
type Graph struct {
	nodes    map[string]*Node
	order    []*Node
	links    []*Link
	deferred []*Link
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// AddNode registers a node and materializes its ports.
func (g *Graph) AddNode(spec NodeSpec) (*Node, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("graph: node name is required")
	}
	if _, exists := g.nodes[spec.Name]; exists {
		return nil, fmt.Errorf("graph: %q: %w", spec.Name, ErrDuplicateNode)
	}

	n := &Node{
		Name:          spec.Name,
		Kind:          spec.Kind,
		Params:        make(map[string]any),
		DynamicOutput: spec.DynamicOutput,
	}
	for k, v := range spec.Params {
		n.Params[k] = v
	}
	for _, ps := range spec.Inputs {
		n.Inputs = append(n.Inputs, &Port{Name: ps.Name, Dir: Input, Caps: ps.Caps, Resolved: true, Owner: n})
	}
	for _, ps := range spec.Outputs {
		n.Outputs = append(n.Outputs, &Port{Name: ps.Name, Dir: Output, Caps: ps.Caps, Resolved: true, Owner: n})
	}
	if spec.DynamicOutput && len(spec.Outputs) == 0 {
		// Placeholder for the port the engine will announce later.
		n.Outputs = append(n.Outputs, &Port{Name: "src", Dir: Output, Caps: CapsAny, Resolved: false, Owner: n})
	}

	g.nodes[spec.Name] = n
	g.order = append(g.order, n)
	return n, nil
}

// Node returns a registered node by name.
func (g *Graph) Node(name string) (*Node, error) {
	n, ok := g.nodes[name]
	if !ok {
		return nil, fmt.Errorf("graph: %q: %w", name, ErrUnknownNode)
	}
	return n, nil
}

// Input returns the named input port, defaulting to the first one when
// name is empty.
func (n *Node) Input(name string) (*Port, error) {
	return findPort(n.Inputs, name, n)
}

// Output returns the named output port, defaulting to the first one when
// name is empty.
func (n *Node) Output(name string) (*Port, error) {
	return findPort(n.Outputs, name, n)
}

func findPort(ports []*Port, name string, owner *Node) (*Port, error) {
	if name == "" && len(ports) > 0 {
		return ports[0], nil
	}
	for _, p := range ports {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("graph: %s.%s: %w", owner.Name, name, ErrUnknownPort)
}

// Link connects an output port to an input port.
//
// If the output port is already resolved the link is established eagerly
// and shape compatibility is enforced. If it belongs to a dynamic-output
// node whose shape is not yet known, a deferred link is registered and
// completed later by ResolvePendingOutput.
func (g *Graph) Link(out, in *Port) (*Link, error) {
	if out.Dir != Output || in.Dir != Input {
		return nil, ErrBadDirection
	}
	if in.Link != nil {
		return nil, fmt.Errorf("graph: %s.%s: %w", in.Owner.Name, in.Name, ErrPortTaken)
	}

	if !out.Resolved {
		l := &Link{Src: out, Dst: in, Deferred: true}
		g.deferred = append(g.deferred, l)
		slog.Debug("graph: deferred link registered",
			"src", out.Owner.Name,
			"dst", in.Owner.Name,
		)
		return l, nil
	}

	if !capsCompatible(out.Caps, in.Caps) {
		return nil, fmt.Errorf("graph: %s(%s) -> %s(%s): %w",
			out.Owner.Name, out.Caps, in.Owner.Name, in.Caps, ErrIncompatibleShape)
	}

	l := &Link{Src: out, Dst: in}
	out.Link = l
	in.Link = l
	g.links = append(g.links, l)
	return l, nil
}

// ResolvePendingOutput completes the deferred link waiting on node after
// the engine announced a negotiated output port.
//
// Re-announcing an already-resolved port is a no-op. When no deferred link
// claims the node's output, ErrUnclaimedPort is returned; the caller logs
// it and the pipeline continues degraded. A shape mismatch on completion
// likewise degrades the branch instead of aborting the graph.
func (g *Graph) ResolvePendingOutput(node *Node, spec PortSpec) error {
	out, err := node.Output("")
	if err != nil {
		return err
	}
	if out.Resolved {
		slog.Debug("graph: port already resolved, ignoring re-announcement",
			"node", node.Name,
			"port", spec.Name,
		)
		return nil
	}

	idx := -1
	for i, l := range g.deferred {
		if l.Src.Owner == node {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("graph: %s.%s: %w", node.Name, spec.Name, ErrUnclaimedPort)
	}

	l := g.deferred[idx]
	g.deferred = append(g.deferred[:idx], g.deferred[idx+1:]...)

	out.Name = spec.Name
	out.Caps = spec.Caps
	out.Resolved = true

	if !capsCompatible(out.Caps, l.Dst.Caps) {
		slog.Warn("graph: deferred link shape mismatch, branch disconnected",
			"src", node.Name,
			"src_caps", out.Caps,
			"dst", l.Dst.Owner.Name,
			"dst_caps", l.Dst.Caps,
		)
		return nil
	}

	l.Deferred = false
	out.Link = l
	l.Dst.Link = l
	g.links = append(g.links, l)

	slog.Info("graph: deferred link resolved",
		"src", node.Name,
		"port", spec.Name,
		"caps", spec.Caps,
		"dst", l.Dst.Owner.Name,
	)
	return nil
}

// PendingLinks returns the number of deferred links not yet resolved.
func (g *Graph) PendingLinks() int {
	return len(g.deferred)
}

// Validate checks the build-time topology invariant: the graph must be a
// simple DAG. Deferred links count as edges for cycle detection.
func (g *Graph) Validate() error {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make(map[*Node]int, len(g.nodes))

	adj := func(n *Node) []*Node {
		var out []*Node
		for _, l := range g.links {
			if l.Src.Owner == n {
				out = append(out, l.Dst.Owner)
			}
		}
		for _, l := range g.deferred {
			if l.Src.Owner == n {
				out = append(out, l.Dst.Owner)
			}
		}
		return out
	}

	var visit func(n *Node) error
	visit = func(n *Node) error {
		color[n] = grey
		for _, next := range adj(n) {
			switch color[next] {
			case grey:
				return fmt.Errorf("graph: at %q: %w", next.Name, ErrCycle)
			case white:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		color[n] = black
		return nil
	}

	for _, n := range g.order {
		if color[n] == white {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadyCheck enforces the prerolled-graph invariant: once playback has
// negotiated, no deferred link may remain. A violation is a fatal
// configuration error.
func (g *Graph) ReadyCheck() error {
	if len(g.deferred) == 0 {
		return nil
	}
	l := g.deferred[0]
	return fmt.Errorf("graph: %s -> %s: %w",
		l.Src.Owner.Name, l.Dst.Owner.Name, ErrUnresolvedLink)
}

// Topology returns one line per node with its links, used for diagnostic
// snapshots when the pipeline enters a playable state.
func (g *Graph) Topology() []string {
	lines := make([]string, 0, len(g.order))
	for _, n := range g.order {
		var outs []string
		for _, p := range n.Outputs {
			switch {
			case p.Link != nil:
				outs = append(outs, fmt.Sprintf("%s->%s", p.Name, p.Link.Dst.Owner.Name))
			case !p.Resolved:
				outs = append(outs, p.Name+"->(unresolved)")
			default:
				outs = append(outs, p.Name+"->(unlinked)")
			}
		}
		lines = append(lines, fmt.Sprintf("%s[%s] %s", n.Name, n.Kind, strings.Join(outs, " ")))
	}
	return lines
}

// capsCompatible reports whether two media shapes can be linked. Shapes
// are compatible when either side is ANY or their media types (the part
// before any comma-separated fields) match.
func capsCompatible(a, b string) bool {
	if a == CapsAny || b == CapsAny || a == "" || b == "" {
		return true
	}
	return mediaType(a) == mediaType(b)
}

func mediaType(caps string) string {
	if i := strings.IndexByte(caps, ','); i >= 0 {
		return strings.TrimSpace(caps[:i])
	}
	return strings.TrimSpace(caps)
}
