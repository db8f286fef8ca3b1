package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visiona/smartpole/internal/config"
)

type fakeMessage struct {
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return "smartpole/control/test" }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func testHandler() *Handler {
	return NewHandler(&config.Config{InstanceID: "test"}, nil)
}

func TestMessageHandlerEnqueuesCommand(t *testing.T) {
	h := testHandler()

	h.messageHandler(nil, &fakeMessage{payload: []byte(`{"id":"cmd-1","command":"pause"}`)})

	select {
	case cmd := <-h.Commands():
		assert.Equal(t, "cmd-1", cmd.ID)
		assert.Equal(t, "pause", cmd.Name)
	default:
		t.Fatal("command was not enqueued")
	}
}

func TestMessageHandlerAssignsID(t *testing.T) {
	h := testHandler()

	h.messageHandler(nil, &fakeMessage{payload: []byte(`{"command":"play"}`)})

	cmd := <-h.Commands()
	assert.NotEmpty(t, cmd.ID)
}

func TestMessageHandlerParsesParams(t *testing.T) {
	h := testHandler()

	h.messageHandler(nil, &fakeMessage{payload: []byte(
		`{"command":"seek","params":{"position_ns":1500000}}`)})

	cmd := <-h.Commands()
	require.Equal(t, "seek", cmd.Name)
	assert.Equal(t, float64(1_500_000), cmd.Params["position_ns"])
}

func TestMessageHandlerDropsWhenQueueFull(t *testing.T) {
	h := testHandler()

	// Fill the queue past its buffer; the overflow is dropped, never
	// blocking the paho worker.
	for i := 0; i < 20; i++ {
		h.messageHandler(nil, &fakeMessage{payload: []byte(`{"command":"play"}`)})
	}

	drained := 0
	for {
		select {
		case <-h.Commands():
			drained++
			continue
		default:
		}
		break
	}
	assert.Equal(t, 10, drained)
}
