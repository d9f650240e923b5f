package clients

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/dispatcher/internal/models"
)

// ConferenceClient talks to the conference (media) service.
type ConferenceClient interface {
	// CreateRoom creates a conference room. Policy is the room's rtc sharing
	// policy ("shared" or "owned"); reserve is an optional capacity hint.
	CreateRoom(ctx context.Context, timeRange models.TimeRange, audience, policy string, reserve *int, tags json.RawMessage) (uuid.UUID, error)
	UpdateRoom(ctx context.Context, id uuid.UUID, timeRange models.TimeRange) error
}

// HTTPConferenceClient is the HTTP implementation of ConferenceClient.
type HTTPConferenceClient struct {
	client
}

// NewConferenceClient creates a conference service client.
func NewConferenceClient(opts Options, logger *zap.Logger) *HTTPConferenceClient {
	return &HTTPConferenceClient{client: newClient("conference", opts, logger)}
}

type conferenceRoomCreateRequest struct {
	Audience string           `json:"audience"`
	Time     models.TimeRange `json:"time"`
	Policy   string           `json:"rtc_sharing_policy,omitempty"`
	Reserve  *int             `json:"reserve,omitempty"`
	Tags     json.RawMessage  `json:"tags,omitempty"`
}

func (c *HTTPConferenceClient) CreateRoom(ctx context.Context, timeRange models.TimeRange, audience, policy string, reserve *int, tags json.RawMessage) (uuid.UUID, error) {
	req := conferenceRoomCreateRequest{
		Audience: audience,
		Time:     timeRange,
		Policy:   policy,
		Reserve:  reserve,
		Tags:     tags,
	}
	var resp roomCreatedResponse
	if err := c.call(ctx, http.MethodPost, "/rooms", req, &resp, http.StatusCreated); err != nil {
		return uuid.Nil, err
	}
	return resp.ID, nil
}

func (c *HTTPConferenceClient) UpdateRoom(ctx context.Context, id uuid.UUID, timeRange models.TimeRange) error {
	req := struct {
		Time models.TimeRange `json:"time"`
	}{Time: timeRange}
	return c.call(ctx, http.MethodPatch, "/rooms/"+id.String(), req, nil, http.StatusOK)
}
