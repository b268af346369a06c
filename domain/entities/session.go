package entities

// SessionPhase is the lifecycle phase of the duplex voice session.
type SessionPhase string

const (
	PhaseIdle       SessionPhase = "idle"
	PhaseConnecting SessionPhase = "connecting"
	PhaseConnected  SessionPhase = "connected"
	PhaseClosed     SessionPhase = "closed"
)

// ToolCall is a device mutation requested by the remote model. The CallID is
// opaque and must be echoed back verbatim in the matching ToolResult.
type ToolCall struct {
	CallID string
	Name   string
	Args   map[string]any
}

// Tool function names the session declares to the remote model.
const (
	ToolControlDevice  = "controlDevice"
	ToolSetDeviceValue = "setDeviceValue"
)

// Actions accepted by the controlDevice function.
const (
	ActionTurnOn  = "turnOn"
	ActionTurnOff = "turnOff"
)

// Tool result statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ToolResult is the mandatory response to a ToolCall. Every received call
// produces exactly one result, sent back before the session is caught up.
type ToolResult struct {
	CallID  string
	Name    string
	Status  string
	Message string
}

// ServerMessage is one decoded inbound message from the remote peer. Audio and
// ToolCalls may both be present in a single message.
type ServerMessage struct {
	// Audio is raw 16-bit little-endian mono PCM at the playback rate, already
	// decoded from its transport framing. Nil when the message carries none.
	Audio []byte
	// ToolCalls are the function calls this message carries, in wire order.
	ToolCalls []ToolCall
	// TurnComplete marks the end of a model turn.
	TurnComplete bool
}
