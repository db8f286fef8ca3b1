package config

import (
	"fmt"
	"regexp"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks the configuration and fills in defaults.
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if cfg.ShutdownTimeoutS < 0 {
		return fmt.Errorf("shutdown_timeout_s must be >= 0")
	}

	// Camera: rtsp_url may be empty, in which case the daemon runs on the
	// mock engine.
	if cfg.Camera.LatencyMS <= 0 {
		cfg.Camera.LatencyMS = 200
	}

	if cfg.Pipeline.Decoder == "" {
		cfg.Pipeline.Decoder = "avdec_h264"
	}
	if cfg.Pipeline.DisplaySink == "" {
		cfg.Pipeline.DisplaySink = "ximagesink"
	}

	if cfg.Playback.PollIntervalS <= 0 {
		cfg.Playback.PollIntervalS = 1
	}
	if cfg.Playback.QueryTimeoutMS <= 0 {
		cfg.Playback.QueryTimeoutMS = 500
	}

	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}
	if cfg.MQTT.Topics.Control == "" {
		cfg.MQTT.Topics.Control = fmt.Sprintf("smartpole/control/%s", cfg.InstanceID)
	}
	if cfg.MQTT.Topics.Status == "" {
		cfg.MQTT.Topics.Status = fmt.Sprintf("smartpole/status/%s", cfg.InstanceID)
	}
	if cfg.MQTT.Topics.Health == "" {
		cfg.MQTT.Topics.Health = fmt.Sprintf("smartpole/health/%s", cfg.InstanceID)
	}
	if cfg.MQTT.QoS == nil {
		cfg.MQTT.QoS = map[string]byte{
			"control": 1,
			"status":  0,
			"health":  0,
		}
	}

	if cfg.HealthPort == "" {
		cfg.HealthPort = "8080"
	}

	return nil
}
