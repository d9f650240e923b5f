// Package postprocessing drives a class session from uploaded raw tracks to a
// published ready stream: upload -> room adjustment -> transcoding -> ready.
// Each stage persists its durable state before issuing the next external
// call, so redelivered notices resume the pipeline at stage boundaries.
package postprocessing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/dispatcher/internal/clients"
	"github.com/aura-webinar/dispatcher/internal/events"
	"github.com/aura-webinar/dispatcher/internal/models"
)

var (
	ErrNoTracks      = errors.New("no ready tracks in upload")
	ErrNoSegments    = errors.New("no track has any recorded segment")
	ErrNoOpenTime    = errors.New("event room has no opening time")
	ErrNoRecordings  = errors.New("class has no recordings")
	ErrAdjustFailed  = errors.New("room adjustment failed")
	ErrTranscodeFail = errors.New("transcoding failed")
)

// RecordingStore is the persistence surface the pipeline depends on.
type RecordingStore interface {
	InsertBatch(ctx context.Context, classID uuid.UUID, recs []models.Recording) ([]models.Recording, error)
	ListByClass(ctx context.Context, classID uuid.UUID) ([]models.Recording, error)
	ApplyMinigroupAdjust(ctx context.Context, classID, originalRoomID, modifiedRoomID uuid.UUID) ([]models.Recording, error)
	ApplyStreamAdjust(ctx context.Context, classID, originalRoomID, modifiedRoomID, rtcID uuid.UUID, modified models.Segments) (*models.Recording, error)
	MarkTranscoded(ctx context.Context, classID uuid.UUID) (time.Time, error)
}

// Deps bundles the pipeline's collaborators.
type Deps struct {
	Store           RecordingStore
	Event           clients.EventClient
	Tq              clients.TqClient
	Publisher       events.Publisher
	Logger          *zap.Logger
	PrerollOffsetMs int64
}

// Strategy is the per-kind post-processing behavior. Each method corresponds
// to one pipeline trigger; failures surface to the caller, which relies on
// queue redelivery rather than retrying in place.
type Strategy interface {
	HandleUpload(ctx context.Context, tracks []UploadedTrack) error
	HandleAdjust(ctx context.Context, result AdjustResult) error
	HandleTranscodingCompletion(ctx context.Context, result TranscodeResult) error
}

// New selects the strategy for a class kind.
func New(class *models.Class, deps Deps) Strategy {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	switch class.Kind {
	case models.ClassKindMinigroup:
		return &MinigroupStrategy{class: class, deps: deps}
	default:
		return &StreamStrategy{class: class, deps: deps}
	}
}

// UploadedTrack is one ready track from a room.upload notice.
type UploadedTrack struct {
	RtcID     uuid.UUID
	URI       string
	StartedAt time.Time
	Segments  models.Segments
	CreatedBy string
}

// UploadNotice is the wire form of a room.upload notice.
type UploadNotice struct {
	RoomID uuid.UUID `json:"room_id"`
	Rtcs   []struct {
		ID        uuid.UUID       `json:"id"`
		URI       string          `json:"uri"`
		StartedAt int64           `json:"started_at"` // unix ms
		Segments  models.Segments `json:"segments"`
		CreatedBy string          `json:"created_by"`
		Status    string          `json:"status"`
	} `json:"rtcs"`
}

// ReadyTracks returns the notice's ready tracks in upload order.
func (n UploadNotice) ReadyTracks() []UploadedTrack {
	var tracks []UploadedTrack
	for _, rtc := range n.Rtcs {
		if rtc.Status != "" && rtc.Status != "ready" {
			continue
		}
		tracks = append(tracks, UploadedTrack{
			RtcID:     rtc.ID,
			URI:       rtc.URI,
			StartedAt: time.UnixMilli(rtc.StartedAt).UTC(),
			Segments:  rtc.Segments,
			CreatedBy: rtc.CreatedBy,
		})
	}
	return tracks
}

// AdjustResult is the tagged form of a room.adjust notice. Exactly one of
// Success or Error is set.
type AdjustResult struct {
	Success *AdjustSuccess
	Error   json.RawMessage
}

// AdjustSuccess carries the adjusted room pair and, for the per-stream flow,
// the rebuilt segments.
type AdjustSuccess struct {
	OriginalRoomID   uuid.UUID       `json:"original_room_id"`
	ModifiedRoomID   uuid.UUID       `json:"modified_room_id"`
	ModifiedSegments models.Segments `json:"modified_segments"`
}

// ParseAdjustResult decodes the service's untagged success-or-error payload
// into a tagged result, once, at the wire boundary.
func ParseAdjustResult(raw json.RawMessage) (AdjustResult, error) {
	var probe struct {
		Error          json.RawMessage `json:"error"`
		OriginalRoomID *uuid.UUID      `json:"original_room_id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return AdjustResult{}, fmt.Errorf("adjust result: %w", err)
	}
	if len(probe.Error) > 0 {
		return AdjustResult{Error: probe.Error}, nil
	}
	if probe.OriginalRoomID == nil {
		return AdjustResult{}, fmt.Errorf("adjust result: neither success nor error fields present")
	}
	var success AdjustSuccess
	if err := json.Unmarshal(raw, &success); err != nil {
		return AdjustResult{}, fmt.Errorf("adjust result: %w", err)
	}
	return AdjustResult{Success: &success}, nil
}

// TranscodeResult is the tagged form of a task.complete notice. Exactly one
// of Success or Error is set.
type TranscodeResult struct {
	Success *TranscodeSuccess
	Error   json.RawMessage
}

// TranscodeSuccess carries the finished task's outputs. Durations arrive as
// decimal-second strings. The stream fields are only present on the
// per-stream flow.
type TranscodeSuccess struct {
	RecordingDuration string     `json:"recording_duration"`
	StreamDuration    string     `json:"stream_duration"`
	StreamID          *uuid.UUID `json:"stream_id"`
	StreamURI         string     `json:"stream_uri"`
	EventRoomID       *uuid.UUID `json:"event_room_id"`
}

// ParseTranscodeResult decodes the untagged task.complete payload into a
// tagged result.
func ParseTranscodeResult(raw json.RawMessage) (TranscodeResult, error) {
	var probe struct {
		Error             json.RawMessage `json:"error"`
		RecordingDuration *string         `json:"recording_duration"`
		StreamDuration    *string         `json:"stream_duration"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return TranscodeResult{}, fmt.Errorf("transcode result: %w", err)
	}
	if len(probe.Error) > 0 {
		return TranscodeResult{Error: probe.Error}, nil
	}
	if probe.RecordingDuration == nil && probe.StreamDuration == nil {
		return TranscodeResult{}, fmt.Errorf("transcode result: neither success nor error fields present")
	}
	var success TranscodeSuccess
	if err := json.Unmarshal(raw, &success); err != nil {
		return TranscodeResult{}, fmt.Errorf("transcode result: %w", err)
	}
	return TranscodeResult{Success: &success}, nil
}

// parseDuration parses a decimal-second duration string ("3000.0") and
// rounds it to whole seconds.
func parseDuration(s string) (int64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("duration %q: %w", s, err)
	}
	return int64(math.Round(f)), nil
}

// earliestRecording picks the session anchor for inter-track offsets.
func earliestRecording(recs []models.Recording) models.Recording {
	earliest := recs[0]
	for _, rec := range recs[1:] {
		if rec.StartedAt.Before(earliest.StartedAt) {
			earliest = rec
		}
	}
	return earliest
}

func tracksToRecordings(classID uuid.UUID, tracks []UploadedTrack) []models.Recording {
	recs := make([]models.Recording, 0, len(tracks))
	for _, tr := range tracks {
		recs = append(recs, models.Recording{
			ClassID:   classID,
			RtcID:     tr.RtcID,
			URI:       tr.URI,
			StartedAt: tr.StartedAt,
			Segments:  tr.Segments,
			CreatedBy: tr.CreatedBy,
		})
	}
	return recs
}
