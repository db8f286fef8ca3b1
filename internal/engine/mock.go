package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/visiona/smartpole/internal/eventbus"
	"github.com/visiona/smartpole/internal/graph"
	"github.com/visiona/smartpole/internal/lifecycle"
)

// Mock is an in-memory engine for tests and for running the daemon with no
// camera attached. Every knob is a plain field set before use; the Post*
// helpers imitate worker-thread notifications by posting bus events.
type Mock struct {
	poster Poster

	mu       sync.Mutex
	state    lifecycle.State
	elements map[string]map[string]any
	links    [][2]string
	watched  map[string]bool

	// StateResult and StateErr control what SetState reports.
	StateResult lifecycle.Result
	StateErr    error
	// SeekErr makes Seek fail.
	SeekErr error
	// Duration/Position query knobs.
	DurationNs int64
	DurationOK bool
	PositionNs int64
	PositionOK bool
	// RejectProps lists "node.key" entries whose updates are refused.
	RejectProps map[string]bool

	// Requested records every SetState target in order.
	Requested []lifecycle.State
	// Seeks records every Seek target in order.
	Seeks []int64
	// Completed records CompletePortLink calls as src/port/dst triples.
	Completed [][3]string
}

// NewMock creates a mock engine posting events through poster. The default
// StateResult is ResultPending, matching the production adapter.
func NewMock(poster Poster) *Mock {
	return &Mock{
		poster:      poster,
		elements:    make(map[string]map[string]any),
		watched:     make(map[string]bool),
		StateResult: lifecycle.ResultPending,
	}
}

// CreateElement registers an element and its initial parameters.
func (m *Mock) CreateElement(kind, name string, params map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.elements[name]; exists {
		return fmt.Errorf("mock engine: element %q already exists", name)
	}
	props := map[string]any{}
	for k, v := range params {
		props[k] = v
	}
	m.elements[name] = props
	return nil
}

// SetElementProperty updates one element parameter, honoring RejectProps.
func (m *Mock) SetElementProperty(node, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	props, ok := m.elements[node]
	if !ok {
		return fmt.Errorf("mock engine: no element %q", node)
	}
	if m.RejectProps[node+"."+key] {
		return fmt.Errorf("mock engine: property %s.%s refused", node, key)
	}
	props[key] = value
	return nil
}

// Property reads back an element parameter for assertions.
func (m *Mock) Property(node, key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	props, ok := m.elements[node]
	if !ok {
		return nil, false
	}
	v, ok := props[key]
	return v, ok
}

// LinkElements records an eager element link.
func (m *Mock) LinkElements(src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.elements[src]; !ok {
		return fmt.Errorf("mock engine: no element %q", src)
	}
	if _, ok := m.elements[dst]; !ok {
		return fmt.Errorf("mock engine: no element %q", dst)
	}
	m.links = append(m.links, [2]string{src, dst})
	return nil
}

// Links returns the recorded eager links for assertions.
func (m *Mock) Links() [][2]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][2]string, len(m.links))
	copy(out, m.links)
	return out
}

// Watched reports whether WatchPorts was called for node.
func (m *Mock) Watched(node string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watched[node]
}

// WatchPorts marks an element as announcement-watched.
func (m *Mock) WatchPorts(node string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.elements[node]; !ok {
		return fmt.Errorf("mock engine: no element %q", node)
	}
	m.watched[node] = true
	return nil
}

// CompletePortLink records a deferred-link completion.
func (m *Mock) CompletePortLink(srcNode, portName, dstNode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Completed = append(m.Completed, [3]string{srcNode, portName, dstNode})
	return nil
}

// SetState records the request and reports the configured result.
func (m *Mock) SetState(s lifecycle.State) (lifecycle.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requested = append(m.Requested, s)
	if m.StateErr != nil {
		return lifecycle.ResultRejected, m.StateErr
	}
	if m.StateResult == lifecycle.ResultCompleted {
		m.state = s
	}
	return m.StateResult, nil
}

// State returns the mock's committed state.
func (m *Mock) State() lifecycle.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// QueryDuration reports the configured duration.
func (m *Mock) QueryDuration() (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.DurationNs, m.DurationOK
}

// QueryPosition reports the configured position.
func (m *Mock) QueryPosition() (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PositionNs, m.PositionOK
}

// Seek records the target and honors SeekErr.
func (m *Mock) Seek(positionNs int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SeekErr != nil {
		return m.SeekErr
	}
	m.Seeks = append(m.Seeks, positionNs)
	m.PositionNs = positionNs
	return nil
}

// Start is a no-op; the mock posts events only when told to.
func (m *Mock) Start(ctx context.Context) error { return nil }

// Close drops to the null state.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = lifecycle.StateNull
	return nil
}

// PostStateChanged imitates a worker-thread state confirmation.
func (m *Mock) PostStateChanged(old, new lifecycle.State, morePending bool) {
	m.mu.Lock()
	m.state = new
	m.mu.Unlock()
	m.poster.Post(eventbus.StateChangedEvent{Origin: "mock", Old: old, New: new, MorePending: morePending})
}

// PostEOS imitates an end-of-stream notification.
func (m *Mock) PostEOS() {
	m.poster.Post(eventbus.EOSEvent{Origin: "mock"})
}

// PostError imitates a fatal engine error.
func (m *Mock) PostError(msg, detail string) {
	m.poster.Post(eventbus.ErrorEvent{Origin: "mock", Message: msg, Detail: detail})
}

// AnnouncePort imitates a dynamic-output node announcing a negotiated port.
func (m *Mock) AnnouncePort(node string, spec graph.PortSpec) {
	m.poster.Post(eventbus.PortAnnouncedEvent{Origin: "mock", Node: node, Port: spec})
}
