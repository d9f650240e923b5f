package clients

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/dispatcher/internal/models"
)

// Transcoding task templates.
const (
	TemplateTranscodeStreamToHLS    = "transcode-stream-to-hls"
	TemplateTranscodeMinigroupToHLS = "transcode-minigroup-to-hls"
)

// TranscodeStream binds one recording into a minigroup transcoding task.
// Offset is the recording's start relative to the session's earliest recording,
// in milliseconds.
type TranscodeStream struct {
	ID          uuid.UUID       `json:"id"`
	URI         string          `json:"uri"`
	Offset      int64           `json:"offset"`
	Segments    models.Segments `json:"segments"`
	PinSegments models.Segments `json:"pin_segments"`
}

// Task is a transcoding task descriptor.
type Task interface {
	Template() string
}

// MinigroupTask merges every stream of a minigroup session into one pinned HLS
// stream.
type MinigroupTask struct {
	Streams      []TranscodeStream `json:"streams"`
	HostStreamID *uuid.UUID        `json:"host_stream_id,omitempty"`
}

func (MinigroupTask) Template() string { return TemplateTranscodeMinigroupToHLS }

// StreamTask transcodes a single recording into an HLS stream (the webinar and
// p2p flow).
type StreamTask struct {
	StreamID    uuid.UUID       `json:"stream_id"`
	StreamURI   string          `json:"stream_uri"`
	EventRoomID uuid.UUID       `json:"event_room_id"`
	Segments    models.Segments `json:"segments"`
}

func (StreamTask) Template() string { return TemplateTranscodeStreamToHLS }

// TqClient talks to the transcoding service.
type TqClient interface {
	CreateTask(ctx context.Context, class *models.Class, task Task) error
}

// HTTPTqClient is the HTTP implementation of TqClient.
type HTTPTqClient struct {
	client
}

// NewTqClient creates a transcoding service client.
func NewTqClient(opts Options, logger *zap.Logger) *HTTPTqClient {
	return &HTTPTqClient{client: newClient("tq", opts, logger)}
}

// tqTaskRequest tags the task with the class identity so the completion
// notice can name the class it belongs to.
type tqTaskRequest struct {
	ClassID  uuid.UUID   `json:"class_id"`
	Audience string      `json:"audience"`
	Scope    string      `json:"scope"`
	Template string      `json:"template"`
	Bindings interface{} `json:"bindings"`
}

func (c *HTTPTqClient) CreateTask(ctx context.Context, class *models.Class, task Task) error {
	req := tqTaskRequest{
		ClassID:  class.ID,
		Audience: class.Audience,
		Scope:    class.Scope,
		Template: task.Template(),
		Bindings: task,
	}
	return c.call(ctx, http.MethodPost, "/tasks", req, nil, http.StatusCreated)
}
