package postprocessing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/dispatcher/internal/clients"
	"github.com/aura-webinar/dispatcher/internal/models"
)

// MinigroupStrategy merges every participant's track into one pinned stream.
// All recordings of the session travel together through adjust and a single
// multi-stream transcoding task.
type MinigroupStrategy struct {
	class *models.Class
	deps  Deps
}

// MinigroupReady is the payload of the terminal minigroup.ready broadcast.
type MinigroupReady struct {
	ID                uuid.UUID       `json:"id"`
	Scope             string          `json:"scope"`
	Tags              json.RawMessage `json:"tags,omitempty"`
	Status            string          `json:"status"`
	RecordingDuration int64           `json:"recording_duration"`
}

// HandleUpload persists every ready track and asks the event service to
// adjust the room timeline around the tracks' combined envelope.
func (s *MinigroupStrategy) HandleUpload(ctx context.Context, tracks []UploadedTrack) error {
	if len(tracks) == 0 {
		return ErrNoTracks
	}

	stored, err := s.deps.Store.InsertBatch(ctx, s.class.ID, tracksToRecordings(s.class.ID, tracks))
	if err != nil {
		return fmt.Errorf("insert recordings: %w", err)
	}

	sets := make([]models.Segments, 0, len(tracks))
	starts := make([]time.Time, 0, len(tracks))
	for _, tr := range tracks {
		sets = append(sets, tr.Segments)
		starts = append(starts, tr.StartedAt)
	}
	envelope, err := Envelope(sets)
	if err != nil {
		return err
	}
	anchor, err := MinStartedAt(starts)
	if err != nil {
		return err
	}

	s.deps.Logger.Info("requesting room adjustment",
		zap.String("class_id", s.class.ID.String()),
		zap.Int("recordings", len(stored)),
		zap.Int64("envelope_start", envelope.Start),
		zap.Int64("envelope_stop", envelope.Stop))

	err = s.deps.Event.AdjustRoom(ctx, s.class.EventRoomID, anchor,
		models.Segments{envelope}, s.deps.PrerollOffsetMs)
	if err != nil {
		return fmt.Errorf("adjust room: %w", err)
	}
	return nil
}

// HandleAdjust commits the adjusted room pair, rebuilds every stream binding
// with its pin segments and submits one multi-stream transcoding task.
func (s *MinigroupStrategy) HandleAdjust(ctx context.Context, result AdjustResult) error {
	if result.Success == nil {
		return fmt.Errorf("%w: %s", ErrAdjustFailed, string(result.Error))
	}

	recs, err := s.deps.Store.ApplyMinigroupAdjust(ctx, s.class.ID,
		result.Success.OriginalRoomID, result.Success.ModifiedRoomID)
	if err != nil {
		return fmt.Errorf("apply adjust: %w", err)
	}
	if len(recs) == 0 {
		return ErrNoRecordings
	}
	earliest := earliestRecording(recs)

	room, err := s.deps.Event.ReadRoom(ctx, result.Success.ModifiedRoomID)
	if err != nil {
		return fmt.Errorf("read modified room: %w", err)
	}
	pinEvents, err := s.deps.Event.ListEvents(ctx, result.Success.ModifiedRoomID, PinEventKind)
	if err != nil {
		return fmt.Errorf("list pin events: %w", err)
	}

	streams := make([]clients.TranscodeStream, 0, len(recs))
	var hostStreamID *uuid.UUID
	for _, rec := range recs {
		offset, err := EventRoomOffset(room.Time, rec.StartedAt)
		if err != nil {
			return err
		}
		stream := clients.TranscodeStream{
			ID:          rec.RtcID,
			URI:         rec.URI,
			Offset:      rec.StartedAt.Sub(earliest.StartedAt).Milliseconds(),
			Segments:    rec.Segments,
			PinSegments: PinSegments(pinEvents, rec.CreatedBy, rec.Segments, offset),
		}
		if hostStreamID == nil && s.class.Host != nil && rec.CreatedBy == *s.class.Host {
			id := rec.RtcID
			hostStreamID = &id
		}
		streams = append(streams, stream)
	}

	s.deps.Logger.Info("submitting minigroup transcoding task",
		zap.String("class_id", s.class.ID.String()),
		zap.Int("streams", len(streams)),
		zap.Bool("host_stream", hostStreamID != nil))

	err = s.deps.Tq.CreateTask(ctx, s.class, clients.MinigroupTask{
		Streams:      streams,
		HostStreamID: hostStreamID,
	})
	if err != nil {
		return fmt.Errorf("create transcoding task: %w", err)
	}
	return nil
}

// HandleTranscodingCompletion stamps the recordings transcoded and broadcasts
// the terminal minigroup.ready event to the class's audience.
func (s *MinigroupStrategy) HandleTranscodingCompletion(ctx context.Context, result TranscodeResult) error {
	if result.Success == nil {
		return fmt.Errorf("%w: %s", ErrTranscodeFail, string(result.Error))
	}
	duration, err := parseDuration(result.Success.RecordingDuration)
	if err != nil {
		return err
	}
	if _, err := s.deps.Store.MarkTranscoded(ctx, s.class.ID); err != nil {
		return fmt.Errorf("mark transcoded: %w", err)
	}

	payload := MinigroupReady{
		ID:                s.class.ID,
		Scope:             s.class.Scope,
		Tags:              s.class.Tags,
		Status:            "success",
		RecordingDuration: duration,
	}
	if err := s.deps.Publisher.Broadcast(ctx, s.class.Audience, "minigroup.ready", payload); err != nil {
		return fmt.Errorf("broadcast ready: %w", err)
	}
	s.deps.Logger.Info("minigroup ready",
		zap.String("class_id", s.class.ID.String()),
		zap.Int64("recording_duration", duration))
	return nil
}
