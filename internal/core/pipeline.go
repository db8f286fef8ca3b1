package core

import (
	"fmt"
	"log/slog"

	"github.com/visiona/smartpole/internal/config"
	"github.com/visiona/smartpole/internal/engine"
	"github.com/visiona/smartpole/internal/graph"
)

// Media types of the canonical camera chain.
const (
	capsRTP  = "application/x-rtp"
	capsH264 = "video/x-h264"
	capsRaw  = "video/x-raw"
)

// buildPipeline declares the camera chain in the graph model and mirrors
// every node and eager link into the engine. The source's output is
// unknown until the RTSP session negotiates, so the source->depay link is
// the single deferred link; the engine completes it when the port is
// announced.
//
// Chain: source -> depay -> parse -> decode -> convert
//        [-> facedetect] [-> faceblur] -> convert2 -> sink
func buildPipeline(cfg *config.Config, g *graph.Graph, eng engine.Engine) error {
	specs := []graph.NodeSpec{
		{
			Name: "source",
			Kind: "rtspsrc",
			Params: map[string]any{
				"location": cfg.Camera.RTSPURL,
				"latency":  cfg.Camera.LatencyMS,
			},
			DynamicOutput: true,
		},
		{
			Name:    "depay",
			Kind:    "rtph264depay",
			Inputs:  []graph.PortSpec{{Name: "sink", Caps: capsRTP}},
			Outputs: []graph.PortSpec{{Name: "src", Caps: capsH264}},
		},
		{
			Name:    "parse",
			Kind:    "h264parse",
			Inputs:  []graph.PortSpec{{Name: "sink", Caps: capsH264}},
			Outputs: []graph.PortSpec{{Name: "src", Caps: capsH264}},
		},
		{
			Name:    "decode",
			Kind:    cfg.Pipeline.Decoder,
			Inputs:  []graph.PortSpec{{Name: "sink", Caps: capsH264}},
			Outputs: []graph.PortSpec{{Name: "src", Caps: capsRaw}},
		},
		{
			Name:    "convert",
			Kind:    "videoconvert",
			Inputs:  []graph.PortSpec{{Name: "sink", Caps: capsRaw}},
			Outputs: []graph.PortSpec{{Name: "src", Caps: capsRaw}},
		},
	}

	if cfg.Pipeline.FaceDetect {
		specs = append(specs, graph.NodeSpec{
			Name:    "facedetect",
			Kind:    "facedetect",
			Params:  map[string]any{"display": cfg.Pipeline.ShowFaces},
			Inputs:  []graph.PortSpec{{Name: "sink", Caps: capsRaw}},
			Outputs: []graph.PortSpec{{Name: "src", Caps: capsRaw}},
		})
	}
	if cfg.Pipeline.FaceBlur {
		specs = append(specs, graph.NodeSpec{
			Name:    "faceblur",
			Kind:    "faceblur",
			Inputs:  []graph.PortSpec{{Name: "sink", Caps: capsRaw}},
			Outputs: []graph.PortSpec{{Name: "src", Caps: capsRaw}},
		})
	}

	specs = append(specs,
		graph.NodeSpec{
			Name:    "convert2",
			Kind:    "videoconvert",
			Inputs:  []graph.PortSpec{{Name: "sink", Caps: capsRaw}},
			Outputs: []graph.PortSpec{{Name: "src", Caps: capsRaw}},
		},
		graph.NodeSpec{
			Name:   "sink",
			Kind:   cfg.Pipeline.DisplaySink,
			Inputs: []graph.PortSpec{{Name: "sink", Caps: capsRaw}},
		},
	)

	for _, spec := range specs {
		if _, err := g.AddNode(spec); err != nil {
			return fmt.Errorf("add node %s: %w", spec.Name, err)
		}
		if err := eng.CreateElement(spec.Kind, spec.Name, spec.Params); err != nil {
			return fmt.Errorf("create element %s: %w", spec.Name, err)
		}
	}

	// Eager links between static stages.
	chain := []string{"depay", "parse", "decode", "convert"}
	if cfg.Pipeline.FaceDetect {
		chain = append(chain, "facedetect")
	}
	if cfg.Pipeline.FaceBlur {
		chain = append(chain, "faceblur")
	}
	chain = append(chain, "convert2", "sink")

	for i := 0; i < len(chain)-1; i++ {
		if err := linkPair(g, eng, chain[i], chain[i+1]); err != nil {
			return err
		}
	}

	// The source output resolves at runtime; only the model records the
	// intent for now.
	if err := deferLink(g, "source", "depay"); err != nil {
		return err
	}
	if err := eng.WatchPorts("source"); err != nil {
		return fmt.Errorf("watch ports on source: %w", err)
	}

	if err := g.Validate(); err != nil {
		return fmt.Errorf("validate pipeline: %w", err)
	}

	slog.Info("pipeline assembled",
		"nodes", len(chain)+1,
		"face_detect", cfg.Pipeline.FaceDetect,
		"face_blur", cfg.Pipeline.FaceBlur,
	)
	return nil
}

// linkPair links two static stages in both the model and the engine.
func linkPair(g *graph.Graph, eng engine.Engine, src, dst string) error {
	out, in, err := portPair(g, src, dst)
	if err != nil {
		return err
	}
	if _, err := g.Link(out, in); err != nil {
		return fmt.Errorf("link %s -> %s: %w", src, dst, err)
	}
	if err := eng.LinkElements(src, dst); err != nil {
		return fmt.Errorf("link elements %s -> %s: %w", src, dst, err)
	}
	return nil
}

// deferLink records a link whose source port is still unresolved.
func deferLink(g *graph.Graph, src, dst string) error {
	out, in, err := portPair(g, src, dst)
	if err != nil {
		return err
	}
	if _, err := g.Link(out, in); err != nil {
		return fmt.Errorf("defer link %s -> %s: %w", src, dst, err)
	}
	return nil
}

func portPair(g *graph.Graph, src, dst string) (*graph.Port, *graph.Port, error) {
	srcNode, err := g.Node(src)
	if err != nil {
		return nil, nil, err
	}
	dstNode, err := g.Node(dst)
	if err != nil {
		return nil, nil, err
	}
	out, err := srcNode.Output("")
	if err != nil {
		return nil, nil, err
	}
	in, err := dstNode.Input("")
	if err != nil {
		return nil, nil, err
	}
	return out, in, nil
}
