// Package control carries the command plane: an MQTT handler that parses
// operator commands, and the control loop that executes them on the same
// goroutine that owns all pipeline state.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/visiona/smartpole/internal/config"
)

// Command is a control-plane command. Params hold the operation arguments
// (seek position, parameter node/key/value).
type Command struct {
	ID     string         `json:"id,omitempty"`
	Name   string         `json:"command"`
	Params map[string]any `json:"params,omitempty"`
}

// Response acknowledges a command on the status topic.
type Response struct {
	ID         string         `json:"id,omitempty"`
	CommandAck string         `json:"command_ack"`
	Status     string         `json:"status"`
	Data       map[string]any `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
	Timestamp  int64          `json:"timestamp_ms"`
}

// Handler subscribes to the control topic and forwards parsed commands to
// the control loop. MQTT callbacks run on paho worker goroutines, so the
// handler only parses and enqueues; execution happens on the loop.
type Handler struct {
	cfg      *config.Config
	client   mqtt.Client
	commands chan Command
}

// NewHandler creates a control-plane handler.
func NewHandler(cfg *config.Config, client mqtt.Client) *Handler {
	return &Handler{
		cfg:      cfg,
		client:   client,
		commands: make(chan Command, 10),
	}
}

// Start subscribes to the control topic.
func (h *Handler) Start(ctx context.Context) error {
	topic := h.cfg.MQTT.Topics.Control
	qos := h.cfg.MQTT.QoS["control"]

	slog.Info("subscribing to control plane", "topic", topic, "qos", qos)

	token := h.client.Subscribe(topic, qos, h.messageHandler)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("control plane subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("control plane subscription failed: %w", err)
	}

	slog.Info("control plane handler started")
	return nil
}

// Stop unsubscribes from the control topic.
func (h *Handler) Stop() error {
	if h.client != nil && h.client.IsConnected() {
		token := h.client.Unsubscribe(h.cfg.MQTT.Topics.Control)
		token.Wait()
	}
	slog.Info("control plane handler stopped")
	return nil
}

// Commands returns the queue drained by the control loop.
func (h *Handler) Commands() <-chan Command {
	return h.commands
}

// Respond publishes a command acknowledgment.
func (h *Handler) Respond(resp Response) {
	resp.Timestamp = time.Now().UnixMilli()

	payload, err := json.Marshal(resp)
	if err != nil {
		slog.Error("failed to marshal response", "error", err)
		return
	}

	token := h.client.Publish(h.cfg.MQTT.Topics.Status, h.cfg.MQTT.QoS["status"], false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		slog.Error("response publish timeout", "command_ack", resp.CommandAck)
		return
	}
	if err := token.Error(); err != nil {
		slog.Error("failed to publish response", "command_ack", resp.CommandAck, "error", err)
		return
	}

	slog.Debug("response sent", "command_ack", resp.CommandAck, "status", resp.Status)
}

// messageHandler parses an incoming command and enqueues it. The queue is
// bounded; a full queue drops the command with a warning rather than
// blocking a paho worker.
func (h *Handler) messageHandler(client mqtt.Client, msg mqtt.Message) {
	var cmd Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		slog.Error("failed to parse control command", "error", err)
		h.Respond(Response{CommandAck: "unknown", Status: "error", Error: "invalid JSON"})
		return
	}
	if cmd.ID == "" {
		cmd.ID = uuid.New().String()
	}

	slog.Info("control command received", "command", cmd.Name, "id", cmd.ID)

	select {
	case h.commands <- cmd:
	default:
		slog.Warn("command queue full, dropping command", "command", cmd.Name)
	}
}
