package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// RoomEvent is a timeline event fetched from the event service. OccurredAt is
// nanoseconds relative to the event room's opening; events must be consumed in
// occurrence order.
type RoomEvent struct {
	ID         uuid.UUID       `json:"id"`
	RoomID     uuid.UUID       `json:"room_id"`
	Kind       string          `json:"kind"`
	OccurredAt int64           `json:"occurred_at"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// AgentID extracts the participant identity from a pin event's data, or ""
// when absent.
func (e RoomEvent) AgentID() string {
	var data struct {
		AgentID string `json:"agent_id"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return ""
	}
	return data.AgentID
}
