package graph

import (
	"fmt"
	"log/slog"
)

// PropertySetter pushes a runtime parameter down to the engine element
// backing a node.
type PropertySetter interface {
	SetElementProperty(node, key string, value any) error
}

// ToggleRegistry mutates per-node runtime parameters without rebuilding or
// restarting the graph: overlay visibility, blur on/off and the like take
// effect on the node's next processing cycle.
type ToggleRegistry struct {
	graph  *Graph
	setter PropertySetter
}

// NewToggleRegistry creates a registry over g backed by setter.
func NewToggleRegistry(g *Graph, setter PropertySetter) *ToggleRegistry {
	return &ToggleRegistry{graph: g, setter: setter}
}

// SetParameter updates one parameter on one node. The model is committed
// only after the engine accepts the value; a rejected value leaves the
// previous one intact and returns ErrRejectedParameter. There is no
// partial-failure rollback because there is nothing partial: one key, one
// node, one engine call.
func (r *ToggleRegistry) SetParameter(nodeName, key string, value any) error {
	node, err := r.graph.Node(nodeName)
	if err != nil {
		return err
	}

	if r.setter != nil {
		if err := r.setter.SetElementProperty(nodeName, key, value); err != nil {
			return fmt.Errorf("graph: %s.%s=%v: %w (%v)",
				nodeName, key, value, ErrRejectedParameter, err)
		}
	}

	node.Params[key] = value
	slog.Info("graph: parameter updated", "node", nodeName, "key", key, "value", value)
	return nil
}

// Parameter reads back a node parameter, with ok=false when unset.
func (r *ToggleRegistry) Parameter(nodeName, key string) (any, bool, error) {
	node, err := r.graph.Node(nodeName)
	if err != nil {
		return nil, false, err
	}
	v, ok := node.Params[key]
	return v, ok, nil
}
