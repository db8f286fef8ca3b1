package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visiona/smartpole/internal/config"
	"github.com/visiona/smartpole/internal/engine"
	"github.com/visiona/smartpole/internal/eventbus"
	"github.com/visiona/smartpole/internal/graph"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		InstanceID: "test",
		Camera:     config.CameraConfig{RTSPURL: "rtsp://cam/stream"},
		MQTT:       config.MQTTConfig{Broker: "localhost:1883"},
	}
	require.NoError(t, config.Validate(cfg))
	return cfg
}

func TestBuildPipelineBaseChain(t *testing.T) {
	cfg := testConfig(t)
	bus := eventbus.New(8)
	defer bus.Close()
	g := graph.New()
	mock := engine.NewMock(bus)

	require.NoError(t, buildPipeline(cfg, g, mock))

	// Without the face stages the chain is source..sink with one deferred
	// link at the front.
	assert.Equal(t, 1, g.PendingLinks())
	assert.True(t, mock.Watched("source"))
	assert.Equal(t, [][2]string{
		{"depay", "parse"},
		{"parse", "decode"},
		{"decode", "convert"},
		{"convert", "convert2"},
		{"convert2", "sink"},
	}, mock.Links())

	// Source parameters reached the engine element.
	loc, ok := mock.Property("source", "location")
	require.True(t, ok)
	assert.Equal(t, "rtsp://cam/stream", loc)
	latency, ok := mock.Property("source", "latency")
	require.True(t, ok)
	assert.Equal(t, 200, latency)
}

func TestBuildPipelineFaceStages(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.FaceDetect = true
	cfg.Pipeline.FaceBlur = true
	cfg.Pipeline.ShowFaces = true

	bus := eventbus.New(8)
	defer bus.Close()
	g := graph.New()
	mock := engine.NewMock(bus)

	require.NoError(t, buildPipeline(cfg, g, mock))

	assert.Equal(t, [][2]string{
		{"depay", "parse"},
		{"parse", "decode"},
		{"decode", "convert"},
		{"convert", "facedetect"},
		{"facedetect", "faceblur"},
		{"faceblur", "convert2"},
		{"convert2", "sink"},
	}, mock.Links())

	display, ok := mock.Property("facedetect", "display")
	require.True(t, ok)
	assert.Equal(t, true, display)
}

func TestPortAnnouncementCompletesDeferredLink(t *testing.T) {
	cfg := testConfig(t)
	bus := eventbus.New(8)
	defer bus.Close()
	g := graph.New()
	mock := engine.NewMock(bus)

	require.NoError(t, buildPipeline(cfg, g, mock))

	linker := graph.NewLinker(g, mock)
	dispatcher := eventbus.NewDispatcher(eventbus.Handlers{
		PortAnnounced: func(ev eventbus.PortAnnouncedEvent) {
			linker.ResolveAnnounced(ev.Node, ev.Port)
		},
	})

	// The announcement rides the bus from the engine worker to the
	// control side, exactly like at runtime.
	mock.AnnouncePort("source", graph.PortSpec{Name: "recv_rtp_src_0", Caps: "application/x-rtp"})
	dispatcher.Dispatch(<-bus.Events())

	assert.Equal(t, 0, g.PendingLinks())
	assert.NoError(t, g.ReadyCheck())
	require.Len(t, mock.Completed, 1)
	assert.Equal(t, [3]string{"source", "recv_rtp_src_0", "depay"}, mock.Completed[0])
}

func TestBuildPipelineTopologyIsAcyclic(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.FaceDetect = true

	bus := eventbus.New(8)
	defer bus.Close()
	g := graph.New()
	mock := engine.NewMock(bus)

	require.NoError(t, buildPipeline(cfg, g, mock))
	assert.NoError(t, g.Validate())

	lines := g.Topology()
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "source[rtspsrc]")
}
