package websocket

import (
	"encoding/json"
	"time"

	"github.com/vozcasa/vozcasa/domain/entities"
)

// Event types pushed to UI clients.
const (
	EventDeviceState  = "device_state"
	EventSessionPhase = "session_phase"
	EventTurnComplete = "turn_complete"
)

// Event is one state change pushed to every UI client.
type Event struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`

	// Device is set for device_state events.
	Device *entities.Device `json:"device,omitempty"`

	// Phase is set for session_phase events.
	Phase entities.SessionPhase `json:"phase,omitempty"`
}

// DeviceStateEvent announces a device's new state after a mutation.
func DeviceStateEvent(device entities.Device) Event {
	return Event{
		Type:      EventDeviceState,
		Timestamp: time.Now().Unix(),
		Device:    &device,
	}
}

// SessionPhaseEvent announces a voice session phase change.
func SessionPhaseEvent(phase entities.SessionPhase) Event {
	return Event{
		Type:      EventSessionPhase,
		Timestamp: time.Now().Unix(),
		Phase:     phase,
	}
}

// TurnCompleteEvent announces that the model finished a speaking turn, so
// the UI can drop its "assistant is speaking" indicator.
func TurnCompleteEvent() Event {
	return Event{
		Type:      EventTurnComplete,
		Timestamp: time.Now().Unix(),
	}
}

func (e Event) marshal() ([]byte, error) {
	return json.Marshal(e)
}
