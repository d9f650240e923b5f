package classes

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aura-webinar/dispatcher/internal/clients"
	"github.com/aura-webinar/dispatcher/internal/models"
)

type fakeConference struct {
	roomID    uuid.UUID
	createErr error

	policies []string
	reserves []*int
}

func (f *fakeConference) CreateRoom(_ context.Context, _ models.TimeRange, _ string, policy string, reserve *int, _ json.RawMessage) (uuid.UUID, error) {
	if f.createErr != nil {
		return uuid.Nil, f.createErr
	}
	f.policies = append(f.policies, policy)
	f.reserves = append(f.reserves, reserve)
	return f.roomID, nil
}

func (f *fakeConference) UpdateRoom(_ context.Context, _ uuid.UUID, _ models.TimeRange) error {
	return nil
}

type fakeEvent struct {
	roomID    uuid.UUID
	createErr error
	lockErr   error

	lockedChats []uuid.UUID
}

func (f *fakeEvent) CreateRoom(_ context.Context, _ models.TimeRange, _ string, _ bool, _ json.RawMessage) (uuid.UUID, error) {
	if f.createErr != nil {
		return uuid.Nil, f.createErr
	}
	return f.roomID, nil
}

func (f *fakeEvent) UpdateRoom(_ context.Context, _ uuid.UUID, _ models.TimeRange) error { return nil }

func (f *fakeEvent) ReadRoom(_ context.Context, _ uuid.UUID) (*clients.RoomResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeEvent) AdjustRoom(_ context.Context, _ uuid.UUID, _ time.Time, _ models.Segments, _ int64) error {
	return nil
}

func (f *fakeEvent) ListEvents(_ context.Context, _ uuid.UUID, _ string) ([]models.RoomEvent, error) {
	return nil, nil
}

func (f *fakeEvent) LockChat(_ context.Context, roomID uuid.UUID) error {
	if f.lockErr != nil {
		return f.lockErr
	}
	f.lockedChats = append(f.lockedChats, roomID)
	return nil
}

func (f *fakeEvent) CreateEvent(_ context.Context, _ uuid.UUID, _ json.RawMessage) error { return nil }

type fakeStore struct {
	created   *models.Class
	recreated bool
}

func (f *fakeStore) Create(_ context.Context, cl *models.Class) error {
	cl.ID = uuid.New()
	cl.CreatedAt = time.Now()
	f.created = cl
	return nil
}

func (f *fakeStore) UpdateTime(_ context.Context, id uuid.UUID, t models.TimeRange) (*models.Class, error) {
	return &models.Class{ID: id, Time: t}, nil
}

func (f *fakeStore) Recreate(_ context.Context, id, conferenceRoomID, eventRoomID uuid.UUID, t models.TimeRange) (*models.Class, error) {
	f.recreated = true
	return &models.Class{ID: id, ConferenceRoomID: conferenceRoomID, EventRoomID: eventRoomID, Time: t}, nil
}

func TestRtcSharingPolicy(t *testing.T) {
	assert.Equal(t, "owned", rtcSharingPolicy(models.ClassKindMinigroup))
	assert.Equal(t, "shared", rtcSharingPolicy(models.ClassKindWebinar))
	assert.Equal(t, "shared", rtcSharingPolicy(models.ClassKindP2P))
}

func TestServiceCreate(t *testing.T) {
	conference := &fakeConference{roomID: uuid.New()}
	event := &fakeEvent{roomID: uuid.New()}
	store := &fakeStore{}
	svc := NewService(store, conference, event, zap.NewNop())

	reserve := 12
	host := "web.host"
	cl, err := svc.Create(context.Background(), CreateParams{
		Kind:            models.ClassKindMinigroup,
		Audience:        "example.org",
		Scope:           "algebra-101",
		Host:            &host,
		Reserve:         &reserve,
		PreserveHistory: true,
	})
	require.NoError(t, err)
	assert.Equal(t, conference.roomID, cl.ConferenceRoomID)
	assert.Equal(t, event.roomID, cl.EventRoomID)
	require.Len(t, conference.policies, 1)
	assert.Equal(t, "owned", conference.policies[0])
	assert.Empty(t, event.lockedChats)
	assert.Same(t, cl, store.created)
}

func TestServiceCreateRoomsFailureAborts(t *testing.T) {
	conference := &fakeConference{createErr: errors.New("conference unavailable")}
	event := &fakeEvent{roomID: uuid.New()}
	store := &fakeStore{}
	svc := NewService(store, conference, event, zap.NewNop())

	_, err := svc.Create(context.Background(), CreateParams{
		Kind:     models.ClassKindWebinar,
		Audience: "example.org",
		Scope:    "intro",
	})
	assert.Error(t, err)
	assert.Nil(t, store.created)
}

func TestServiceCreateLockChatFailureIsNonFatal(t *testing.T) {
	conference := &fakeConference{roomID: uuid.New()}
	event := &fakeEvent{roomID: uuid.New(), lockErr: errors.New("event service flake")}
	store := &fakeStore{}
	svc := NewService(store, conference, event, zap.NewNop())

	cl, err := svc.Create(context.Background(), CreateParams{
		Kind:       models.ClassKindWebinar,
		Audience:   "example.org",
		Scope:      "intro",
		LockedChat: true,
	})
	require.NoError(t, err)
	assert.NotNil(t, cl)
}

func TestServiceRecreate(t *testing.T) {
	conference := &fakeConference{roomID: uuid.New()}
	event := &fakeEvent{roomID: uuid.New()}
	store := &fakeStore{}
	svc := NewService(store, conference, event, zap.NewNop())

	existing := &models.Class{
		ID:       uuid.New(),
		Kind:     models.ClassKindWebinar,
		Audience: "example.org",
		Scope:    "intro",
	}
	starts := time.Now().Add(time.Hour)
	cl, err := svc.Recreate(context.Background(), existing, models.TimeRange{StartsAt: &starts})
	require.NoError(t, err)
	assert.True(t, store.recreated)
	assert.Equal(t, conference.roomID, cl.ConferenceRoomID)
	assert.Equal(t, event.roomID, cl.EventRoomID)
}
