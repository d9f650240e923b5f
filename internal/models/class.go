package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ClassKind discriminates the class variants.
type ClassKind string

const (
	ClassKindWebinar   ClassKind = "webinar"
	ClassKindP2P       ClassKind = "p2p"
	ClassKindMinigroup ClassKind = "minigroup"
)

// ParseClassKind validates a wire kind value.
func ParseClassKind(s string) (ClassKind, bool) {
	switch ClassKind(s) {
	case ClassKindWebinar, ClassKindP2P, ClassKindMinigroup:
		return ClassKind(s), true
	}
	return "", false
}

// TimeRange is a possibly open time interval. A nil bound means unbounded on
// that side; the lower bound, when set, is inclusive.
type TimeRange struct {
	StartsAt *time.Time `json:"starts_at,omitempty"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`
}

// Class is a schedulable session (webinar, p2p or minigroup) backed by one
// conference room and one event room. (Audience, Scope) is unique per kind.
type Class struct {
	ID                  uuid.UUID       `json:"id"`
	Kind                ClassKind       `json:"kind"`
	Scope               string          `json:"scope"`
	Audience            string          `json:"audience"`
	Time                TimeRange       `json:"time"`
	Tags                json.RawMessage `json:"tags,omitempty"`
	Host                *string         `json:"host,omitempty"`
	ConferenceRoomID    uuid.UUID       `json:"conference_room_id"`
	EventRoomID         uuid.UUID       `json:"event_room_id"`
	OriginalEventRoomID *uuid.UUID      `json:"original_event_room_id,omitempty"`
	ModifiedEventRoomID *uuid.UUID      `json:"modified_event_room_id,omitempty"`
	PreserveHistory     bool            `json:"preserve_history"`
	Reserve             *int            `json:"reserve,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}
