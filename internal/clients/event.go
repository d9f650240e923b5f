package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/dispatcher/internal/models"
)

// RoomResponse is the event service's view of a room.
type RoomResponse struct {
	ID   uuid.UUID        `json:"id"`
	Time models.TimeRange `json:"time"`
	Tags json.RawMessage  `json:"tags,omitempty"`
}

// EventClient talks to the event room service.
type EventClient interface {
	CreateRoom(ctx context.Context, timeRange models.TimeRange, audience string, preserveHistory bool, tags json.RawMessage) (uuid.UUID, error)
	UpdateRoom(ctx context.Context, id uuid.UUID, timeRange models.TimeRange) error
	ReadRoom(ctx context.Context, id uuid.UUID) (*RoomResponse, error)
	// AdjustRoom asks the event service to rebuild the room timeline around the
	// recorded spans. The service reports the result later via a room.adjust
	// notice; a successful call only means the adjustment was accepted.
	AdjustRoom(ctx context.Context, id uuid.UUID, startedAt time.Time, segments models.Segments, prerollOffsetMs int64) error
	ListEvents(ctx context.Context, roomID uuid.UUID, kind string) ([]models.RoomEvent, error)
	LockChat(ctx context.Context, roomID uuid.UUID) error
	CreateEvent(ctx context.Context, roomID uuid.UUID, payload json.RawMessage) error
}

// HTTPEventClient is the HTTP implementation of EventClient.
type HTTPEventClient struct {
	client
}

// NewEventClient creates an event service client.
func NewEventClient(opts Options, logger *zap.Logger) *HTTPEventClient {
	return &HTTPEventClient{client: newClient("event", opts, logger)}
}

type eventRoomCreateRequest struct {
	Audience        string           `json:"audience"`
	Time            models.TimeRange `json:"time"`
	PreserveHistory bool             `json:"preserve_history"`
	Tags            json.RawMessage  `json:"tags,omitempty"`
}

type eventRoomUpdateRequest struct {
	Time models.TimeRange `json:"time"`
}

type eventRoomAdjustRequest struct {
	StartedAt int64           `json:"started_at"` // unix ms
	Segments  models.Segments `json:"segments"`
	Offset    int64           `json:"offset"`
}

type roomCreatedResponse struct {
	ID uuid.UUID `json:"id"`
}

func (c *HTTPEventClient) CreateRoom(ctx context.Context, timeRange models.TimeRange, audience string, preserveHistory bool, tags json.RawMessage) (uuid.UUID, error) {
	req := eventRoomCreateRequest{
		Audience:        audience,
		Time:            timeRange,
		PreserveHistory: preserveHistory,
		Tags:            tags,
	}
	var resp roomCreatedResponse
	if err := c.call(ctx, http.MethodPost, "/rooms", req, &resp, http.StatusCreated); err != nil {
		return uuid.Nil, err
	}
	return resp.ID, nil
}

func (c *HTTPEventClient) UpdateRoom(ctx context.Context, id uuid.UUID, timeRange models.TimeRange) error {
	return c.call(ctx, http.MethodPatch, "/rooms/"+id.String(), eventRoomUpdateRequest{Time: timeRange}, nil, http.StatusOK)
}

func (c *HTTPEventClient) ReadRoom(ctx context.Context, id uuid.UUID) (*RoomResponse, error) {
	var resp RoomResponse
	if err := c.call(ctx, http.MethodGet, "/rooms/"+id.String(), nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPEventClient) AdjustRoom(ctx context.Context, id uuid.UUID, startedAt time.Time, segments models.Segments, prerollOffsetMs int64) error {
	req := eventRoomAdjustRequest{
		StartedAt: startedAt.UnixMilli(),
		Segments:  segments,
		Offset:    prerollOffsetMs,
	}
	return c.call(ctx, http.MethodPost, "/rooms/"+id.String()+"/adjust", req, nil, http.StatusAccepted)
}

func (c *HTTPEventClient) ListEvents(ctx context.Context, roomID uuid.UUID, kind string) ([]models.RoomEvent, error) {
	var events []models.RoomEvent
	path := "/rooms/" + roomID.String() + "/events?kind=" + kind
	if err := c.call(ctx, http.MethodGet, path, nil, &events, http.StatusOK); err != nil {
		return nil, err
	}
	return events, nil
}

type chatLockRequest struct {
	Kind string          `json:"type"`
	Set  string          `json:"set"`
	Data json.RawMessage `json:"data"`
}

func (c *HTTPEventClient) LockChat(ctx context.Context, roomID uuid.UUID) error {
	req := chatLockRequest{
		Kind: "chat_disabled",
		Set:  "chat_disabled",
		Data: json.RawMessage(`{"value":"true"}`),
	}
	return c.call(ctx, http.MethodPost, "/rooms/"+roomID.String()+"/events", req, nil, http.StatusCreated)
}

func (c *HTTPEventClient) CreateEvent(ctx context.Context, roomID uuid.UUID, payload json.RawMessage) error {
	return c.call(ctx, http.MethodPost, "/rooms/"+roomID.String()+"/events", payload, nil, http.StatusCreated)
}
