package models

import (
	"time"

	"github.com/google/uuid"
)

// Recording is one uploaded media track of a class session. Segments use the
// track's own offset coordinate: offset 0 is the recording start.
// AdjustedAt/ModifiedSegments are stamped by the room adjustment stage and
// TranscodedAt by the transcoding completion stage.
type Recording struct {
	ID               uuid.UUID  `json:"id"`
	ClassID          uuid.UUID  `json:"class_id"`
	RtcID            uuid.UUID  `json:"rtc_id"`
	URI              string     `json:"uri"`
	StartedAt        time.Time  `json:"started_at"`
	Segments         Segments   `json:"segments"`
	CreatedBy        string     `json:"created_by"`
	AdjustedAt       *time.Time `json:"adjusted_at,omitempty"`
	ModifiedSegments Segments   `json:"modified_segments,omitempty"`
	TranscodedAt     *time.Time `json:"transcoded_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}
