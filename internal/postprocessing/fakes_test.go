package postprocessing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/aura-webinar/dispatcher/internal/clients"
	"github.com/aura-webinar/dispatcher/internal/models"
)

type fakeStore struct {
	recordings []models.Recording

	insertedClassID  uuid.UUID
	adjustApplied    bool
	adjustedOriginal uuid.UUID
	adjustedModified uuid.UUID
	streamAdjustRtc  uuid.UUID
	streamAdjustSegs models.Segments
	transcodedClass  uuid.UUID
}

func (f *fakeStore) InsertBatch(_ context.Context, classID uuid.UUID, recs []models.Recording) ([]models.Recording, error) {
	f.insertedClassID = classID
	for _, rec := range recs {
		rec.ID = uuid.New()
		f.recordings = append(f.recordings, rec)
	}
	return f.recordings, nil
}

func (f *fakeStore) ListByClass(_ context.Context, classID uuid.UUID) ([]models.Recording, error) {
	return f.recordings, nil
}

func (f *fakeStore) ApplyMinigroupAdjust(_ context.Context, classID, originalRoomID, modifiedRoomID uuid.UUID) ([]models.Recording, error) {
	f.adjustApplied = true
	f.adjustedOriginal = originalRoomID
	f.adjustedModified = modifiedRoomID
	now := time.Now()
	for i := range f.recordings {
		f.recordings[i].AdjustedAt = &now
		f.recordings[i].ModifiedSegments = f.recordings[i].Segments
	}
	return f.recordings, nil
}

func (f *fakeStore) ApplyStreamAdjust(_ context.Context, classID, originalRoomID, modifiedRoomID, rtcID uuid.UUID, modified models.Segments) (*models.Recording, error) {
	f.adjustApplied = true
	f.adjustedOriginal = originalRoomID
	f.adjustedModified = modifiedRoomID
	f.streamAdjustRtc = rtcID
	f.streamAdjustSegs = modified
	for i := range f.recordings {
		if f.recordings[i].RtcID == rtcID {
			now := time.Now()
			f.recordings[i].AdjustedAt = &now
			f.recordings[i].ModifiedSegments = modified
			return &f.recordings[i], nil
		}
	}
	return nil, errors.New("recording not found")
}

func (f *fakeStore) MarkTranscoded(_ context.Context, classID uuid.UUID) (time.Time, error) {
	f.transcodedClass = classID
	now := time.Now()
	for i := range f.recordings {
		f.recordings[i].TranscodedAt = &now
	}
	return now, nil
}

type adjustCall struct {
	RoomID    uuid.UUID
	StartedAt time.Time
	Segments  models.Segments
	Offset    int64
}

type fakeEventClient struct {
	room      *clients.RoomResponse
	pinEvents []models.RoomEvent

	adjustCalls []adjustCall
	readRooms   []uuid.UUID
	lockedChats []uuid.UUID
	readErr     error
}

func (f *fakeEventClient) CreateRoom(_ context.Context, _ models.TimeRange, _ string, _ bool, _ json.RawMessage) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (f *fakeEventClient) UpdateRoom(_ context.Context, _ uuid.UUID, _ models.TimeRange) error {
	return nil
}

func (f *fakeEventClient) ReadRoom(_ context.Context, id uuid.UUID) (*clients.RoomResponse, error) {
	f.readRooms = append(f.readRooms, id)
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.room, nil
}

func (f *fakeEventClient) AdjustRoom(_ context.Context, id uuid.UUID, startedAt time.Time, segments models.Segments, prerollOffsetMs int64) error {
	f.adjustCalls = append(f.adjustCalls, adjustCall{
		RoomID: id, StartedAt: startedAt, Segments: segments, Offset: prerollOffsetMs,
	})
	return nil
}

func (f *fakeEventClient) ListEvents(_ context.Context, _ uuid.UUID, _ string) ([]models.RoomEvent, error) {
	return f.pinEvents, nil
}

func (f *fakeEventClient) LockChat(_ context.Context, roomID uuid.UUID) error {
	f.lockedChats = append(f.lockedChats, roomID)
	return nil
}

func (f *fakeEventClient) CreateEvent(_ context.Context, _ uuid.UUID, _ json.RawMessage) error {
	return nil
}

type createdTask struct {
	Class *models.Class
	Task  clients.Task
}

type fakeTqClient struct {
	tasks []createdTask
}

func (f *fakeTqClient) CreateTask(_ context.Context, class *models.Class, task clients.Task) error {
	f.tasks = append(f.tasks, createdTask{Class: class, Task: task})
	return nil
}

type broadcast struct {
	Audience string
	Label    string
	Payload  interface{}
}

type fakePublisher struct {
	broadcasts []broadcast
}

func (f *fakePublisher) Broadcast(_ context.Context, audience, label string, payload interface{}) error {
	f.broadcasts = append(f.broadcasts, broadcast{Audience: audience, Label: label, Payload: payload})
	return nil
}
