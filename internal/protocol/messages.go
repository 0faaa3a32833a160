package protocol

import "encoding/json"

// Message types
const (
	TypePing       = "ping"
	TypePong       = "pong"
	TypeStatus     = "status"
	TypeCapture    = "capture"
	TypeVideoStart = "video_start"
	TypeVideoStop  = "video_stop"
	TypeSetSetting = "set_setting"
	TypeFocusStep  = "focus_step"
	TypeRackFocus  = "rack_focus"
	TypeRackCancel = "rack_cancel"
	TypeQuery      = "query"
	TypeResult     = "result"
	TypeError      = "error"
)

// Error codes
const (
	ErrCameraRejected = "CAMERA_REJECTED"
	ErrCamera         = "CAMERA_ERROR"
	ErrUnknownLabel   = "UNKNOWN_LABEL"
	ErrNotConverged   = "NOT_CONVERGED"
	ErrBusy           = "BUSY"
	ErrInvalidMessage = "INVALID_MESSAGE"
)

// Settings understood by set_setting. Anything else is sent as a raw
// cam.cgi setting type.
const (
	SettingISO          = "iso"
	SettingAperture     = "aperture"
	SettingShutter      = "shutter"
	SettingVideoQuality = "video_quality"
	SettingClock        = "clock"
)

// Query kinds
const (
	QueryInfo    = "info"
	QuerySetting = "setting"
	QueryState   = "state"
)

// Message is the base envelope for all WebSocket messages
type Message struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"` // Echoed back in result and error
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PingPayload for ping messages
type PingPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// PongPayload for pong messages
type PongPayload struct {
	ClientTimestamp int64 `json:"client_timestamp"`
	ServerTimestamp int64 `json:"server_timestamp"`
}

// StatusPayload for status messages
type StatusPayload struct {
	Camera       string `json:"camera"`
	Liveview     bool   `json:"liveview"`
	LiveviewPort int    `json:"liveview_port,omitempty"`
	RackActive   bool   `json:"rack_active"`
}

// SetSettingPayload for set_setting messages
type SetSettingPayload struct {
	Setting string `json:"setting"`
	Value   string `json:"value"`
}

// FocusStepPayload for focus_step messages
type FocusStepPayload struct {
	Direction string `json:"direction"` // tele or wide
	Speed     string `json:"speed"`     // normal or fast
}

// RackFocusPayload for rack_focus messages; start and end are "current"
// or a lens position
type RackFocusPayload struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Speed    string `json:"speed"`
	MaxSteps int    `json:"max_steps,omitempty"`
}

// QueryPayload for query messages
type QueryPayload struct {
	Kind string `json:"kind"`           // info, setting or state
	Type string `json:"type,omitempty"` // e.g. lens, focusmode
}

// ResultPayload answers a command
type ResultPayload struct {
	Request  string `json:"request"`
	Body     string `json:"body,omitempty"`
	Position *int   `json:"position,omitempty"`
}

// ErrorPayload for error messages
type ErrorPayload struct {
	Request string `json:"request,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewMessage creates a new message with the given type and payload
func NewMessage(msgType string, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:    msgType,
		Payload: data,
	}, nil
}

// ParsePayload unmarshals the payload into the given struct
func (m *Message) ParsePayload(v any) error {
	if len(m.Payload) == 0 {
		return json.Unmarshal([]byte("{}"), v)
	}
	return json.Unmarshal(m.Payload, v)
}
