// Package emitter publishes pipeline notifications to the operator UI over
// MQTT: state changes, position and duration updates, stream metadata and
// session errors.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/visiona/smartpole/internal/config"
	"github.com/visiona/smartpole/internal/lifecycle"
)

// notification is the wire shape on the status topic.
type notification struct {
	Kind        string `json:"kind"`
	State       string `json:"state,omitempty"`
	PositionNs  int64  `json:"position_ns,omitempty"`
	DurationNs  int64  `json:"duration_ns,omitempty"`
	StreamIndex int    `json:"stream_index,omitempty"`
	TagKind     string `json:"tag_kind,omitempty"`
	Text        string `json:"text,omitempty"`
	Error       string `json:"error,omitempty"`
	Timestamp   int64  `json:"timestamp_ms"`
}

// MQTTNotifier implements the notification interface to the UI. Pushes of
// position updates hold SeekGate so the slider echo cannot be mistaken for
// a user seek.
type MQTTNotifier struct {
	cfg    *config.Config
	Client mqtt.Client // exported for the control plane subscription

	// SeekGate is consulted by the command handler to drop seek echoes.
	SeekGate Gate

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64
}

// NewMQTTNotifier creates a notifier for the configured broker.
func NewMQTTNotifier(cfg *config.Config) *MQTTNotifier {
	return &MQTTNotifier{cfg: cfg}
}

// Connect establishes the broker connection with auto-reconnect.
func (e *MQTTNotifier) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.MQTT.Broker))
	opts.SetClientID(e.cfg.InstanceID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.mu.Lock()
		e.connected = true
		e.mu.Unlock()
		slog.Info("mqtt connection established",
			"broker", e.cfg.MQTT.Broker,
			"client_id", e.cfg.InstanceID,
		)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.mu.Lock()
		e.connected = false
		e.mu.Unlock()
		slog.Warn("mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", e.cfg.MQTT.Broker,
		)
	}

	e.Client = mqtt.NewClient(opts)

	slog.Info("connecting to mqtt broker", "broker", e.cfg.MQTT.Broker)

	token := e.Client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.mu.Lock()
	e.connected = true
	e.mu.Unlock()
	return nil
}

// Disconnect closes the broker connection.
func (e *MQTTNotifier) Disconnect() error {
	if e.Client != nil && e.Client.IsConnected() {
		e.Client.Disconnect(250)
		slog.Info("mqtt disconnected")
	}
	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()
	return nil
}

// StateUpdated pushes a state-update notification.
func (e *MQTTNotifier) StateUpdated(s lifecycle.State) {
	e.publish(notification{Kind: "state-update", State: s.String()})
}

// DurationKnown pushes the stream duration once it is discovered.
func (e *MQTTNotifier) DurationKnown(durationNs int64) {
	e.publish(notification{Kind: "duration-known", DurationNs: durationNs})
}

// PositionUpdated pushes a position update inside the suppression gate.
func (e *MQTTNotifier) PositionUpdated(positionNs int64) {
	e.SeekGate.Enter()
	defer e.SeekGate.Leave()
	e.publish(notification{Kind: "position-update", PositionNs: positionNs})
}

// MetadataUpdated pushes discovered stream metadata.
func (e *MQTTNotifier) MetadataUpdated(streamIndex int, kind, text string) {
	e.publish(notification{Kind: "metadata-update", StreamIndex: streamIndex, TagKind: kind, Text: text})
}

// SessionError pushes a session-ending failure; playback stays down until
// an explicit new command arrives.
func (e *MQTTNotifier) SessionError(msg string) {
	e.publish(notification{Kind: "error", Error: msg})
}

// PublishHealth publishes a health document on the health topic.
func (e *MQTTNotifier) PublishHealth(payload []byte) error {
	if !e.isConnected() {
		return fmt.Errorf("mqtt not connected")
	}
	token := e.Client.Publish(e.cfg.MQTT.Topics.Health, e.qos("health"), false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	return token.Error()
}

// Stats contains emitter counters.
type Stats struct {
	Connected bool
	Published uint64
	Errors    uint64
}

// Stats returns emitter counters.
func (e *MQTTNotifier) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{Connected: e.connected, Published: e.published, Errors: e.errors}
}

func (e *MQTTNotifier) publish(n notification) {
	if !e.isConnected() {
		e.mu.Lock()
		e.errors++
		e.mu.Unlock()
		slog.Debug("notification skipped, mqtt not connected", "kind", n.Kind)
		return
	}

	n.Timestamp = time.Now().UnixMilli()
	payload, err := json.Marshal(n)
	if err != nil {
		slog.Error("failed to marshal notification", "kind", n.Kind, "error", err)
		return
	}

	token := e.Client.Publish(e.cfg.MQTT.Topics.Status, e.qos("status"), false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		e.mu.Lock()
		e.errors++
		e.mu.Unlock()
		slog.Warn("notification publish timeout", "kind", n.Kind)
		return
	}
	if err := token.Error(); err != nil {
		e.mu.Lock()
		e.errors++
		e.mu.Unlock()
		slog.Warn("notification publish failed", "kind", n.Kind, "error", err)
		return
	}

	e.mu.Lock()
	e.published++
	e.mu.Unlock()
	slog.Debug("notification published", "kind", n.Kind)
}

func (e *MQTTNotifier) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *MQTTNotifier) qos(class string) byte {
	if q, ok := e.cfg.MQTT.QoS[class]; ok {
		return q
	}
	return 0
}
