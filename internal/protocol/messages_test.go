package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	msg, err := NewMessage(TypeFocusStep, FocusStepPayload{Direction: "tele", Speed: "fast"})
	require.NoError(t, err)
	msg.ID = "7"

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"focus_step","id":"7","payload":{"direction":"tele","speed":"fast"}}`, string(data))
}

func TestParsePayload(t *testing.T) {
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{"type":"rack_focus","payload":{"end":"300","max_steps":50}}`), &msg))

	var rack RackFocusPayload
	require.NoError(t, msg.ParsePayload(&rack))
	assert.Equal(t, "300", rack.End)
	assert.Empty(t, rack.Start)
	assert.Equal(t, 50, rack.MaxSteps)
}

func TestParsePayloadEmpty(t *testing.T) {
	msg := Message{Type: TypeCapture}
	var payload struct{}
	assert.NoError(t, msg.ParsePayload(&payload))

	msg = Message{Type: TypeRackFocus}
	var rack RackFocusPayload
	require.NoError(t, msg.ParsePayload(&rack))
	assert.Zero(t, rack)
}

func TestResultPositionOmitted(t *testing.T) {
	data, err := json.Marshal(ResultPayload{Request: TypeCapture})
	require.NoError(t, err)
	assert.JSONEq(t, `{"request":"capture"}`, string(data))

	pos := 0
	data, err = json.Marshal(ResultPayload{Request: TypeFocusStep, Position: &pos})
	require.NoError(t, err)
	assert.JSONEq(t, `{"request":"focus_step","position":0}`, string(data))
}
