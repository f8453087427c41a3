package chat

import (
	"fmt"

	"rag-doc-assistant/internal/models"
)

// State is derived from the loading flag and the error text; it is never
// stored on its own.
type State int

const (
	Idle State = iota
	AwaitingResponse
	IdleWithError
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingResponse:
		return "awaiting_response"
	case IdleWithError:
		return "idle_with_error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state by name in JSON bodies.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func deriveState(loading bool, errMsg string) State {
	switch {
	case loading:
		return AwaitingResponse
	case errMsg != "":
		return IdleWithError
	default:
		return Idle
	}
}

// Snapshot is a copy of the controller state at one point in time. Changing
// it has no effect on the controller.
type Snapshot struct {
	State    State            `json:"state"`
	Messages []models.Message `json:"messages"`
	Loading  bool             `json:"loading"`
	Error    string           `json:"error,omitempty"`
}

// LastMessage returns the newest message, if any.
func (s Snapshot) LastMessage() (models.Message, bool) {
	if len(s.Messages) == 0 {
		return models.Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}
