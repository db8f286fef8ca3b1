package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "smartpole.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadMinimalConfigFillsDefaults(t *testing.T) {
	path := writeConfig(t, `
instance_id: pole-test
mqtt:
  broker: localhost:1883
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "pole-test", cfg.InstanceID)
	assert.Equal(t, 200, cfg.Camera.LatencyMS)
	assert.Equal(t, "avdec_h264", cfg.Pipeline.Decoder)
	assert.Equal(t, "ximagesink", cfg.Pipeline.DisplaySink)
	assert.Equal(t, 1, cfg.Playback.PollIntervalS)
	assert.Equal(t, 500, cfg.Playback.QueryTimeoutMS)
	assert.Equal(t, "smartpole/control/pole-test", cfg.MQTT.Topics.Control)
	assert.Equal(t, "smartpole/status/pole-test", cfg.MQTT.Topics.Status)
	assert.Equal(t, "smartpole/health/pole-test", cfg.MQTT.Topics.Health)
	assert.Equal(t, byte(1), cfg.MQTT.QoS["control"])
	assert.Equal(t, "8080", cfg.HealthPort)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
instance_id: pole-7
pole_id: intersection-12
shutdown_timeout_s: 10
camera:
  rtsp_url: rtsp://10.0.0.5/stream
  latency_ms: 100
pipeline:
  face_detect: true
  face_blur: true
  show_faces: false
playback:
  poll_interval_s: 2
mqtt:
  broker: broker:1883
  topics:
    control: custom/control
health_port: "9090"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "rtsp://10.0.0.5/stream", cfg.Camera.RTSPURL)
	assert.Equal(t, 100, cfg.Camera.LatencyMS)
	assert.True(t, cfg.Pipeline.FaceDetect)
	assert.True(t, cfg.Pipeline.FaceBlur)
	assert.False(t, cfg.Pipeline.ShowFaces)
	assert.Equal(t, 2, cfg.Playback.PollIntervalS)
	assert.Equal(t, "custom/control", cfg.MQTT.Topics.Control)
	// Unset topics still get defaults.
	assert.Equal(t, "smartpole/status/pole-7", cfg.MQTT.Topics.Status)
	assert.Equal(t, "9090", cfg.HealthPort)
}

func TestLoadMissingInstanceID(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker: localhost:1883
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "instance_id")
}

func TestLoadInvalidInstanceID(t *testing.T) {
	path := writeConfig(t, `
instance_id: "Pole_One"
mqtt:
  broker: localhost:1883
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "instance_id")
}

func TestLoadMissingBroker(t *testing.T) {
	path := writeConfig(t, `
instance_id: pole-test
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "mqtt.broker")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
