// Package gstengine adapts the GStreamer engine to the core's engine
// boundary. Elements are created and linked one by one (the canonical
// manual-assembly path), the pipeline bus is pumped into the event bus,
// and dynamic rtspsrc pads are reported as port announcements.
package gstengine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/visiona/smartpole/internal/engine"
	"github.com/visiona/smartpole/internal/eventbus"
	"github.com/visiona/smartpole/internal/graph"
	"github.com/visiona/smartpole/internal/lifecycle"
)

const busPollInterval = 50 * time.Millisecond

// Engine drives a GStreamer pipeline. Construction and control run on the
// control goroutine; the bus pump goroutine and GStreamer's own streaming
// threads only ever post events.
type Engine struct {
	name     string
	pipeline *gst.Pipeline
	poster   engine.Poster

	mu       sync.Mutex
	elements map[string]*gst.Element

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New initializes GStreamer and creates an empty named pipeline.
func New(name string, poster engine.Poster) (*Engine, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline(name)
	if err != nil {
		return nil, fmt.Errorf("gstengine: failed to create pipeline: %w", err)
	}

	return &Engine{
		name:     name,
		pipeline: pipeline,
		poster:   poster,
		elements: make(map[string]*gst.Element),
	}, nil
}

// CreateElement instantiates an element of the given factory kind, applies
// its initial properties and adds it to the pipeline.
func (e *Engine) CreateElement(kind, name string, params map[string]any) error {
	el, err := gst.NewElement(kind)
	if err != nil {
		return fmt.Errorf("gstengine: failed to create %s (%s): %w", name, kind, err)
	}
	for k, v := range params {
		el.SetProperty(k, v)
	}
	if err := e.pipeline.Add(el); err != nil {
		return fmt.Errorf("gstengine: failed to add %s to pipeline: %w", name, err)
	}

	e.mu.Lock()
	e.elements[name] = el
	e.mu.Unlock()

	slog.Debug("gstengine: element created", "name", name, "kind", kind)
	return nil
}

// SetElementProperty updates one runtime property on a live element.
func (e *Engine) SetElementProperty(node, key string, value any) error {
	el, err := e.element(node)
	if err != nil {
		return err
	}
	el.SetProperty(key, value)
	return nil
}

// LinkElements wires two elements with static pads.
func (e *Engine) LinkElements(src, dst string) error {
	a, err := e.element(src)
	if err != nil {
		return err
	}
	b, err := e.element(dst)
	if err != nil {
		return err
	}
	if err := gst.ElementLinkMany(a, b); err != nil {
		return fmt.Errorf("gstengine: failed to link %s -> %s: %w", src, dst, err)
	}
	return nil
}

// WatchPorts connects the pad-added signal of a dynamic-output element.
// The callback fires on a GStreamer streaming thread; it only posts a
// PortAnnouncedEvent so resolution happens on the control goroutine.
func (e *Engine) WatchPorts(node string) error {
	el, err := e.element(node)
	if err != nil {
		return err
	}

	el.Connect("pad-added", func(self *gst.Element, pad *gst.Pad) {
		spec := graph.PortSpec{Name: pad.GetName(), Caps: padMediaType(pad)}
		slog.Debug("gstengine: pad added", "node", node, "pad", spec.Name, "caps", spec.Caps)
		e.poster.Post(eventbus.PortAnnouncedEvent{Origin: node, Node: node, Port: spec})
	})
	return nil
}

// CompletePortLink links a now-existing announced pad to the sink pad of
// the downstream element.
func (e *Engine) CompletePortLink(srcNode, portName, dstNode string) error {
	src, err := e.element(srcNode)
	if err != nil {
		return err
	}
	dst, err := e.element(dstNode)
	if err != nil {
		return err
	}

	srcPad := src.GetStaticPad(portName)
	if srcPad == nil {
		return fmt.Errorf("gstengine: %s has no pad %q", srcNode, portName)
	}
	sinkPad := dst.GetStaticPad("sink")
	if sinkPad == nil {
		return fmt.Errorf("gstengine: %s has no sink pad", dstNode)
	}

	if ret := srcPad.Link(sinkPad); ret != gst.PadLinkOK {
		return fmt.Errorf("gstengine: pad link %s.%s -> %s failed: %v", srcNode, portName, dstNode, ret)
	}

	slog.Debug("gstengine: pads linked", "src", srcNode, "pad", portName, "dst", dstNode)
	return nil
}

// SetState requests a pipeline state change. GStreamer walks through the
// intermediate states and confirms on the bus, so an accepted request is
// always reported as pending.
func (e *Engine) SetState(s lifecycle.State) (lifecycle.Result, error) {
	if err := e.pipeline.SetState(toGstState(s)); err != nil {
		return lifecycle.ResultRejected, fmt.Errorf("gstengine: set state %s: %w", s, err)
	}
	return lifecycle.ResultPending, nil
}

// QueryDuration runs a bounded duration query against the pipeline.
func (e *Engine) QueryDuration() (int64, bool) {
	q := gst.NewDurationQuery(gst.FormatTime)
	if !e.pipeline.Query(q) {
		return 0, false
	}
	_, d := q.ParseDuration()
	return d, d >= 0
}

// QueryPosition runs a bounded position query against the pipeline.
func (e *Engine) QueryPosition() (int64, bool) {
	q := gst.NewPositionQuery(gst.FormatTime)
	if !e.pipeline.Query(q) {
		return 0, false
	}
	_, p := q.ParsePosition()
	return p, p >= 0
}

// Seek jumps to positionNs with a flushing key-unit seek so buffered data
// is discarded and the visible position updates immediately.
func (e *Engine) Seek(positionNs int64) error {
	ok := e.pipeline.Seek(
		1.0,
		gst.FormatTime,
		gst.SeekFlagFlush|gst.SeekFlagKeyUnit,
		gst.SeekTypeSet,
		positionNs,
		gst.SeekTypeNone,
		-1,
	)
	if !ok {
		return fmt.Errorf("gstengine: seek to %d failed", positionNs)
	}
	return nil
}

// Start launches the bus pump goroutine.
func (e *Engine) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.wg.Add(1)
	go e.pumpBus(ctx)
	return nil
}

// Close stops the bus pump and tears the pipeline down to null.
func (e *Engine) Close() error {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()

	if err := e.pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("gstengine: failed to set pipeline to null: %w", err)
	}
	return nil
}

// pumpBus polls the pipeline bus and translates messages into core events.
func (e *Engine) pumpBus(ctx context.Context) {
	defer e.wg.Done()

	bus := e.pipeline.GetPipelineBus()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("gstengine: bus pump stopping")
			return
		default:
		}

		// Short timeout keeps shutdown responsive.
		msg := bus.TimedPop(busPollInterval)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			slog.Info("gstengine: end of stream received")
			e.poster.Post(eventbus.EOSEvent{Origin: msg.Source()})

		case gst.MessageError:
			gerr := msg.ParseError()
			slog.Error("gstengine: pipeline error",
				"source", msg.Source(),
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
			)
			e.poster.Post(eventbus.ErrorEvent{
				Origin:  msg.Source(),
				Message: gerr.Error(),
				Detail:  gerr.DebugString(),
			})

		case gst.MessageStateChanged:
			// Only the top-level pipeline's transitions are authoritative;
			// per-element changes are noise here.
			if msg.Source() != e.name {
				continue
			}
			old, new := msg.ParseStateChanged()
			e.poster.Post(eventbus.StateChangedEvent{
				Origin: msg.Source(),
				Old:    fromGstState(old),
				New:    fromGstState(new),
			})

		case gst.MessageTag:
			e.poster.Post(eventbus.TagsEvent{
				Origin: msg.Source(),
				Kind:   "tags",
				Text:   msg.String(),
			})

		case gst.MessageApplication:
			name := "application"
			if s := msg.GetStructure(); s != nil {
				name = s.Name()
			}
			e.poster.Post(eventbus.ApplicationEvent{Origin: msg.Source(), Name: name})
		}
	}
}

func (e *Engine) element(name string) (*gst.Element, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	el, ok := e.elements[name]
	if !ok {
		return nil, fmt.Errorf("gstengine: no element %q", name)
	}
	return el, nil
}

// padMediaType reads the negotiated media type of a pad, falling back to
// ANY before negotiation settles.
func padMediaType(pad *gst.Pad) string {
	caps := pad.GetCurrentCaps()
	if caps == nil || caps.GetSize() == 0 {
		return graph.CapsAny
	}
	return caps.GetStructureAt(0).Name()
}

func toGstState(s lifecycle.State) gst.State {
	switch s {
	case lifecycle.StateReady:
		return gst.StateReady
	case lifecycle.StatePaused:
		return gst.StatePaused
	case lifecycle.StatePlaying:
		return gst.StatePlaying
	default:
		return gst.StateNull
	}
}

func fromGstState(s gst.State) lifecycle.State {
	switch s {
	case gst.StateReady:
		return lifecycle.StateReady
	case gst.StatePaused:
		return lifecycle.StatePaused
	case gst.StatePlaying:
		return lifecycle.StatePlaying
	default:
		return lifecycle.StateNull
	}
}
