package postprocessing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/dispatcher/internal/clients"
	"github.com/aura-webinar/dispatcher/internal/models"
)

// StreamStrategy is the per-track flow used by webinars and p2p sessions:
// the session has one shared stream, the adjust result carries the rebuilt
// segments for it, and transcoding runs one task per stream. It predates the
// minigroup multi-stream flow and persists slightly different fields; both
// flows are kept deliberately.
type StreamStrategy struct {
	class *models.Class
	deps  Deps
}

// StreamReady is the payload of the terminal <kind>.ready broadcast.
type StreamReady struct {
	ID                uuid.UUID       `json:"id"`
	Scope             string          `json:"scope"`
	Tags              json.RawMessage `json:"tags,omitempty"`
	Status            string          `json:"status"`
	StreamID          *uuid.UUID      `json:"stream_id,omitempty"`
	StreamURI         string          `json:"stream_uri,omitempty"`
	RecordingDuration int64           `json:"recording_duration"`
}

// HandleUpload persists the uploaded tracks and adjusts the room around the
// first track's own segments.
func (s *StreamStrategy) HandleUpload(ctx context.Context, tracks []UploadedTrack) error {
	if len(tracks) == 0 {
		return ErrNoTracks
	}

	if _, err := s.deps.Store.InsertBatch(ctx, s.class.ID, tracksToRecordings(s.class.ID, tracks)); err != nil {
		return fmt.Errorf("insert recordings: %w", err)
	}

	track := tracks[0]
	if len(track.Segments) == 0 {
		return ErrNoSegments
	}

	s.deps.Logger.Info("requesting room adjustment",
		zap.String("class_id", s.class.ID.String()),
		zap.String("rtc_id", track.RtcID.String()),
		zap.Int("segments", len(track.Segments)))

	if err := s.deps.Event.AdjustRoom(ctx, s.class.EventRoomID, track.StartedAt, track.Segments, 0); err != nil {
		return fmt.Errorf("adjust room: %w", err)
	}
	return nil
}

// HandleAdjust stores the rebuilt segments on the recording and submits a
// single-stream transcoding task.
func (s *StreamStrategy) HandleAdjust(ctx context.Context, result AdjustResult) error {
	if result.Success == nil {
		return fmt.Errorf("%w: %s", ErrAdjustFailed, string(result.Error))
	}

	recs, err := s.deps.Store.ListByClass(ctx, s.class.ID)
	if err != nil {
		return fmt.Errorf("list recordings: %w", err)
	}
	if len(recs) == 0 {
		return ErrNoRecordings
	}
	rec := recs[0]

	updated, err := s.deps.Store.ApplyStreamAdjust(ctx, s.class.ID,
		result.Success.OriginalRoomID, result.Success.ModifiedRoomID,
		rec.RtcID, result.Success.ModifiedSegments)
	if err != nil {
		return fmt.Errorf("apply adjust: %w", err)
	}

	s.deps.Logger.Info("submitting stream transcoding task",
		zap.String("class_id", s.class.ID.String()),
		zap.String("rtc_id", updated.RtcID.String()))

	err = s.deps.Tq.CreateTask(ctx, s.class, clients.StreamTask{
		StreamID:    updated.RtcID,
		StreamURI:   updated.URI,
		EventRoomID: result.Success.ModifiedRoomID,
		Segments:    updated.ModifiedSegments,
	})
	if err != nil {
		return fmt.Errorf("create transcoding task: %w", err)
	}
	return nil
}

// HandleTranscodingCompletion stamps the recordings transcoded and broadcasts
// the terminal ready event for the class kind.
func (s *StreamStrategy) HandleTranscodingCompletion(ctx context.Context, result TranscodeResult) error {
	if result.Success == nil {
		return fmt.Errorf("%w: %s", ErrTranscodeFail, string(result.Error))
	}
	duration, err := parseDuration(result.Success.StreamDuration)
	if err != nil {
		return err
	}
	if _, err := s.deps.Store.MarkTranscoded(ctx, s.class.ID); err != nil {
		return fmt.Errorf("mark transcoded: %w", err)
	}

	payload := StreamReady{
		ID:                s.class.ID,
		Scope:             s.class.Scope,
		Tags:              s.class.Tags,
		Status:            "success",
		StreamID:          result.Success.StreamID,
		StreamURI:         result.Success.StreamURI,
		RecordingDuration: duration,
	}
	label := string(s.class.Kind) + ".ready"
	if err := s.deps.Publisher.Broadcast(ctx, s.class.Audience, label, payload); err != nil {
		return fmt.Errorf("broadcast ready: %w", err)
	}
	s.deps.Logger.Info("stream ready",
		zap.String("class_id", s.class.ID.String()),
		zap.String("label", label),
		zap.Int64("recording_duration", duration))
	return nil
}
