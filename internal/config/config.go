package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the complete smartpole daemon configuration.
type Config struct {
	InstanceID       string         `yaml:"instance_id"`
	PoleID           string         `yaml:"pole_id"`
	ShutdownTimeoutS int            `yaml:"shutdown_timeout_s"` // graceful shutdown timeout in seconds (default: 5)
	Camera           CameraConfig   `yaml:"camera"`
	Pipeline         PipelineConfig `yaml:"pipeline"`
	Playback         PlaybackConfig `yaml:"playback"`
	MQTT             MQTTConfig     `yaml:"mqtt"`
	HealthPort       string         `yaml:"health_port"`
}

// CameraConfig contains the camera-stream settings handed to the engine.
type CameraConfig struct {
	RTSPURL   string `yaml:"rtsp_url"`
	LatencyMS int    `yaml:"latency_ms"` // jitter buffer, default 200
}

// PipelineConfig selects the processing stages between decode and display.
type PipelineConfig struct {
	Decoder     string `yaml:"decoder"`      // default avdec_h264
	DisplaySink string `yaml:"display_sink"` // default ximagesink
	FaceDetect  bool   `yaml:"face_detect"`  // insert the face-detection stage
	FaceBlur    bool   `yaml:"face_blur"`    // insert the face-blur stage
	ShowFaces   bool   `yaml:"show_faces"`   // initial detection overlay visibility
}

// PlaybackConfig tunes the controller's polling and query bounds.
type PlaybackConfig struct {
	PollIntervalS  int `yaml:"poll_interval_s"`  // position poll period, default 1
	QueryTimeoutMS int `yaml:"query_timeout_ms"` // engine query bound, default 500
}

// MQTTConfig contains the control/notification plane settings.
type MQTTConfig struct {
	Broker string          `yaml:"broker"`
	Topics MQTTTopics      `yaml:"topics"`
	QoS    map[string]byte `yaml:"qos"`
}

// MQTTTopics contains topic templates.
type MQTTTopics struct {
	Control string `yaml:"control"`
	Status  string `yaml:"status"`
	Health  string `yaml:"health"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
