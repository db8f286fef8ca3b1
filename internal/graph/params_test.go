package graph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSetter struct {
	rejected map[string]bool
	applied  []string
}

func (f *fakeSetter) SetElementProperty(node, key string, value any) error {
	id := node + "." + key
	if f.rejected[id] {
		return fmt.Errorf("property %s refused", id)
	}
	f.applied = append(f.applied, id)
	return nil
}

func TestSetParameterCommitsAfterEngineAccepts(t *testing.T) {
	g := New()
	_, err := g.AddNode(NodeSpec{
		Name:   "facedetect",
		Kind:   "facedetect",
		Params: map[string]any{"display": true},
	})
	require.NoError(t, err)

	setter := &fakeSetter{}
	reg := NewToggleRegistry(g, setter)

	require.NoError(t, reg.SetParameter("facedetect", "display", false))
	assert.Equal(t, []string{"facedetect.display"}, setter.applied)

	v, ok, err := reg.Parameter("facedetect", "display")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, false, v)
}

func TestSetParameterRejectedKeepsOldValue(t *testing.T) {
	g := New()
	_, err := g.AddNode(NodeSpec{
		Name:   "facedetect",
		Kind:   "facedetect",
		Params: map[string]any{"display": true},
	})
	require.NoError(t, err)

	setter := &fakeSetter{rejected: map[string]bool{"facedetect.display": true}}
	reg := NewToggleRegistry(g, setter)

	err = reg.SetParameter("facedetect", "display", false)
	assert.ErrorIs(t, err, ErrRejectedParameter)

	v, ok, err := reg.Parameter("facedetect", "display")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, true, v)
}

func TestSetParameterUnknownNode(t *testing.T) {
	reg := NewToggleRegistry(New(), &fakeSetter{})
	err := reg.SetParameter("ghost", "display", true)
	assert.ErrorIs(t, err, ErrUnknownNode)
}

type fakeCompleter struct {
	completed [][3]string
	fail      bool
}

func (f *fakeCompleter) CompletePortLink(srcNode, portName, dstNode string) error {
	if f.fail {
		return fmt.Errorf("pad link refused")
	}
	f.completed = append(f.completed, [3]string{srcNode, portName, dstNode})
	return nil
}

func deferredPair(t *testing.T) (*Graph, *Node) {
	t.Helper()
	g := New()
	src, err := g.AddNode(NodeSpec{Name: "source", Kind: "rtspsrc", DynamicOutput: true})
	require.NoError(t, err)
	depay, err := g.AddNode(NodeSpec{
		Name:    "depay",
		Kind:    "rtph264depay",
		Inputs:  []PortSpec{{Name: "sink", Caps: "application/x-rtp"}},
		Outputs: []PortSpec{{Name: "src", Caps: "video/x-h264"}},
	})
	require.NoError(t, err)

	out, _ := src.Output("")
	in, _ := depay.Input("")
	_, err = g.Link(out, in)
	require.NoError(t, err)
	return g, src
}

func TestLinkerResolvesAndCompletes(t *testing.T) {
	g, _ := deferredPair(t)
	completer := &fakeCompleter{}
	linker := NewLinker(g, completer)

	linker.ResolveAnnounced("source", PortSpec{Name: "recv_rtp_src_0", Caps: "application/x-rtp"})

	assert.Equal(t, 0, g.PendingLinks())
	require.Len(t, completer.completed, 1)
	assert.Equal(t, [3]string{"source", "recv_rtp_src_0", "depay"}, completer.completed[0])
}

func TestLinkerIgnoresUnknownNode(t *testing.T) {
	g, _ := deferredPair(t)
	completer := &fakeCompleter{}
	linker := NewLinker(g, completer)

	linker.ResolveAnnounced("ghost", PortSpec{Name: "src", Caps: "video/x-raw"})
	assert.Empty(t, completer.completed)
	assert.Equal(t, 1, g.PendingLinks())
}

func TestLinkerShapeMismatchSkipsEngineLink(t *testing.T) {
	g, _ := deferredPair(t)
	completer := &fakeCompleter{}
	linker := NewLinker(g, completer)

	linker.ResolveAnnounced("source", PortSpec{Name: "recv_rtp_src_1", Caps: "audio/x-raw"})

	// Branch degraded: resolved in the model, never handed to the engine.
	assert.Equal(t, 0, g.PendingLinks())
	assert.Empty(t, completer.completed)
}
