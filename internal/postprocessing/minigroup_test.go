package postprocessing

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aura-webinar/dispatcher/internal/clients"
	"github.com/aura-webinar/dispatcher/internal/models"
)

type minigroupFixture struct {
	class *models.Class
	store *fakeStore
	event *fakeEventClient
	tq    *fakeTqClient
	pub   *fakePublisher
}

func newMinigroupFixture(host string) (*minigroupFixture, Strategy) {
	f := &minigroupFixture{
		class: &models.Class{
			ID:          uuid.New(),
			Kind:        models.ClassKindMinigroup,
			Scope:       "algebra-101",
			Audience:    "example.org",
			Tags:        json.RawMessage(`{"priority":"high"}`),
			EventRoomID: uuid.New(),
		},
		store: &fakeStore{},
		event: &fakeEventClient{},
		tq:    &fakeTqClient{},
		pub:   &fakePublisher{},
	}
	if host != "" {
		f.class.Host = &host
	}
	strategy := New(f.class, Deps{
		Store:           f.store,
		Event:           f.event,
		Tq:              f.tq,
		Publisher:       f.pub,
		Logger:          zap.NewNop(),
		PrerollOffsetMs: 4018,
	})
	return f, strategy
}

func TestMinigroupHandleUpload(t *testing.T) {
	f, strategy := newMinigroupFixture("web.host")
	roomOpened := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tracks := []UploadedTrack{
		{
			RtcID:     uuid.New(),
			URI:       "s3://recordings/rtc1.webm",
			StartedAt: roomOpened,
			Segments:  models.Segments{seg(0, 1_500_000), seg(1_800_000, 3_000_000)},
			CreatedBy: "web.host",
		},
		{
			RtcID:     uuid.New(),
			URI:       "s3://recordings/rtc2.webm",
			StartedAt: roomOpened.Add(10 * time.Minute),
			Segments:  models.Segments{seg(0, 2_700_000)},
			CreatedBy: "web.agent2",
		},
	}

	require.NoError(t, strategy.HandleUpload(context.Background(), tracks))

	assert.Equal(t, f.class.ID, f.store.insertedClassID)
	assert.Len(t, f.store.recordings, 2)

	require.Len(t, f.event.adjustCalls, 1)
	call := f.event.adjustCalls[0]
	assert.Equal(t, f.class.EventRoomID, call.RoomID)
	assert.Equal(t, roomOpened, call.StartedAt)
	assert.Equal(t, models.Segments{seg(0, 3_000_000)}, call.Segments)
	assert.Equal(t, int64(4018), call.Offset)
}

func TestMinigroupHandleUploadNoTracks(t *testing.T) {
	f, strategy := newMinigroupFixture("web.host")
	err := strategy.HandleUpload(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoTracks)
	assert.Empty(t, f.event.adjustCalls)
}

func TestMinigroupHandleAdjust(t *testing.T) {
	f, strategy := newMinigroupFixture("web.host")
	roomOpened := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	rtc1, rtc2 := uuid.New(), uuid.New()
	f.store.recordings = []models.Recording{
		{
			ID: uuid.New(), ClassID: f.class.ID, RtcID: rtc1,
			URI: "s3://recordings/rtc1.webm", StartedAt: roomOpened,
			Segments:  models.Segments{seg(0, 1_500_000), seg(1_800_000, 3_000_000)},
			CreatedBy: "web.host",
		},
		{
			ID: uuid.New(), ClassID: f.class.ID, RtcID: rtc2,
			URI: "s3://recordings/rtc2.webm", StartedAt: roomOpened.Add(10 * time.Minute),
			Segments:  models.Segments{seg(0, 2_700_000)},
			CreatedBy: "web.agent2",
		},
	}
	modifiedRoomID := uuid.New()
	f.event.room = &clients.RoomResponse{
		ID:   modifiedRoomID,
		Time: models.TimeRange{StartsAt: &roomOpened},
	}
	f.event.pinEvents = []models.RoomEvent{
		pinEvent(t, 0, "web.host"),
		pinEvent(t, 1_200_000_000_000, "web.agent2"),
		pinEvent(t, 1_500_000_000_000, "web.host"),
	}

	result := AdjustResult{Success: &AdjustSuccess{
		OriginalRoomID: uuid.New(),
		ModifiedRoomID: modifiedRoomID,
	}}
	require.NoError(t, strategy.HandleAdjust(context.Background(), result))

	assert.True(t, f.store.adjustApplied)
	assert.Equal(t, result.Success.OriginalRoomID, f.store.adjustedOriginal)
	assert.Equal(t, modifiedRoomID, f.store.adjustedModified)
	assert.Equal(t, []uuid.UUID{modifiedRoomID}, f.event.readRooms)

	require.Len(t, f.tq.tasks, 1)
	task, ok := f.tq.tasks[0].Task.(clients.MinigroupTask)
	require.True(t, ok)
	require.Len(t, task.Streams, 2)

	host := task.Streams[0]
	assert.Equal(t, rtc1, host.ID)
	assert.Equal(t, int64(0), host.Offset)
	assert.Equal(t, models.Segments{seg(0, 1_200_000), seg(1_500_000, 3_000_000)}, host.PinSegments)

	other := task.Streams[1]
	assert.Equal(t, rtc2, other.ID)
	assert.Equal(t, int64(600_000), other.Offset)
	assert.Equal(t, models.Segments{seg(600_000, 900_000)}, other.PinSegments)

	require.NotNil(t, task.HostStreamID)
	assert.Equal(t, rtc1, *task.HostStreamID)
}

func TestMinigroupHandleAdjustHostStreamIsFirstMatch(t *testing.T) {
	f, strategy := newMinigroupFixture("web.host")
	roomOpened := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	rtc1, rtc2 := uuid.New(), uuid.New()
	f.store.recordings = []models.Recording{
		{
			ID: uuid.New(), ClassID: f.class.ID, RtcID: rtc1,
			URI: "s3://recordings/rtc1.webm", StartedAt: roomOpened,
			Segments: models.Segments{seg(0, 1_000_000)}, CreatedBy: "web.host",
		},
		{
			ID: uuid.New(), ClassID: f.class.ID, RtcID: rtc2,
			URI: "s3://recordings/rtc1-reconnect.webm", StartedAt: roomOpened.Add(time.Minute),
			Segments: models.Segments{seg(0, 500_000)}, CreatedBy: "web.host",
		},
	}
	f.event.room = &clients.RoomResponse{Time: models.TimeRange{StartsAt: &roomOpened}}

	result := AdjustResult{Success: &AdjustSuccess{OriginalRoomID: uuid.New(), ModifiedRoomID: uuid.New()}}
	require.NoError(t, strategy.HandleAdjust(context.Background(), result))

	require.Len(t, f.tq.tasks, 1)
	task := f.tq.tasks[0].Task.(clients.MinigroupTask)
	require.NotNil(t, task.HostStreamID)
	assert.Equal(t, rtc1, *task.HostStreamID)
}

func TestMinigroupHandleAdjustWithoutHostMatch(t *testing.T) {
	f, strategy := newMinigroupFixture("web.absent-host")
	roomOpened := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	f.store.recordings = []models.Recording{{
		ID: uuid.New(), ClassID: f.class.ID, RtcID: uuid.New(),
		URI: "s3://recordings/rtc1.webm", StartedAt: roomOpened,
		Segments: models.Segments{seg(0, 1_000_000)}, CreatedBy: "web.agent1",
	}}
	f.event.room = &clients.RoomResponse{Time: models.TimeRange{StartsAt: &roomOpened}}

	result := AdjustResult{Success: &AdjustSuccess{OriginalRoomID: uuid.New(), ModifiedRoomID: uuid.New()}}
	require.NoError(t, strategy.HandleAdjust(context.Background(), result))

	require.Len(t, f.tq.tasks, 1)
	task := f.tq.tasks[0].Task.(clients.MinigroupTask)
	assert.Nil(t, task.HostStreamID)
}

func TestMinigroupHandleAdjustError(t *testing.T) {
	f, strategy := newMinigroupFixture("web.host")
	err := strategy.HandleAdjust(context.Background(), AdjustResult{Error: json.RawMessage(`{"kind":"internal"}`)})
	assert.ErrorIs(t, err, ErrAdjustFailed)
	assert.False(t, f.store.adjustApplied)
	assert.Empty(t, f.tq.tasks)
}

func TestMinigroupHandleAdjustUnboundedRoomTime(t *testing.T) {
	f, strategy := newMinigroupFixture("web.host")
	f.store.recordings = []models.Recording{{
		ID: uuid.New(), ClassID: f.class.ID, RtcID: uuid.New(),
		StartedAt: time.Now(), Segments: models.Segments{seg(0, 1_000)}, CreatedBy: "web.agent1",
	}}
	f.event.room = &clients.RoomResponse{Time: models.TimeRange{}}

	result := AdjustResult{Success: &AdjustSuccess{OriginalRoomID: uuid.New(), ModifiedRoomID: uuid.New()}}
	err := strategy.HandleAdjust(context.Background(), result)
	assert.ErrorIs(t, err, ErrNoOpenTime)
	assert.Empty(t, f.tq.tasks)
}

func TestMinigroupHandleTranscodingCompletion(t *testing.T) {
	f, strategy := newMinigroupFixture("web.host")
	f.store.recordings = []models.Recording{{
		ID: uuid.New(), ClassID: f.class.ID, RtcID: uuid.New(),
		StartedAt: time.Now(), Segments: models.Segments{seg(0, 1_000)}, CreatedBy: "web.agent1",
	}}

	result := TranscodeResult{Success: &TranscodeSuccess{RecordingDuration: "3000.0"}}
	require.NoError(t, strategy.HandleTranscodingCompletion(context.Background(), result))

	assert.Equal(t, f.class.ID, f.store.transcodedClass)
	require.NotNil(t, f.store.recordings[0].TranscodedAt)

	require.Len(t, f.pub.broadcasts, 1)
	b := f.pub.broadcasts[0]
	assert.Equal(t, "example.org", b.Audience)
	assert.Equal(t, "minigroup.ready", b.Label)
	payload, ok := b.Payload.(MinigroupReady)
	require.True(t, ok)
	assert.Equal(t, f.class.ID, payload.ID)
	assert.Equal(t, "algebra-101", payload.Scope)
	assert.Equal(t, "success", payload.Status)
	assert.Equal(t, int64(3000), payload.RecordingDuration)
}

func TestMinigroupHandleTranscodingCompletionFailure(t *testing.T) {
	f, strategy := newMinigroupFixture("web.host")
	err := strategy.HandleTranscodingCompletion(context.Background(), TranscodeResult{Error: json.RawMessage(`"boom"`)})
	assert.ErrorIs(t, err, ErrTranscodeFail)
	assert.Empty(t, f.pub.broadcasts)
	assert.Equal(t, uuid.Nil, f.store.transcodedClass)
}
