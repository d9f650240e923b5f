// Package pipeline receives post-processing notices from the conference,
// event and transcoding services and hands them to the worker through the
// job queue. The webhook only resolves the class and enqueues; all pipeline
// logic runs in the worker.
package pipeline

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/dispatcher/internal/classes"
	"github.com/aura-webinar/dispatcher/internal/models"
	"github.com/aura-webinar/dispatcher/pkg/queue"
	"github.com/aura-webinar/dispatcher/pkg/response"
)

// Notice labels the services deliver.
const (
	LabelRoomUpload   = "room.upload"
	LabelRoomAdjust   = "room.adjust"
	LabelRoomClose    = "room.close"
	LabelTaskComplete = "task.complete"
)

// Notice is the wire envelope of a pipeline webhook delivery.
type Notice struct {
	Label   string          `json:"label" binding:"required"`
	Payload json.RawMessage `json:"payload" binding:"required"`
}

// AdjustNotice is a room.adjust payload: the adjusted room plus the untagged
// success-or-error result.
type AdjustNotice struct {
	RoomID uuid.UUID       `json:"room_id"`
	Result json.RawMessage `json:"result"`
}

// TaskCompleteNotice is a task.complete payload.
type TaskCompleteNotice struct {
	ClassID uuid.UUID       `json:"class_id"`
	Result  json.RawMessage `json:"result"`
}

// WebhookHandler handles POST /webhooks/pipeline.
type WebhookHandler struct {
	classRepo *classes.Repository
	queue     *queue.Queue
	logger    *zap.Logger
}

// NewWebhookHandler creates a pipeline webhook handler.
func NewWebhookHandler(classRepo *classes.Repository, q *queue.Queue, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{classRepo: classRepo, queue: q, logger: logger}
}

// Handle routes one notice by label, resolves the class it belongs to and
// enqueues the matching pipeline job.
func (h *WebhookHandler) Handle(c *gin.Context) {
	var notice Notice
	if err := c.ShouldBindJSON(&notice); err != nil {
		response.BadRequest(c, "invalid notice: "+err.Error())
		return
	}
	ctx := c.Request.Context()

	var (
		class   *models.Class
		jobType queue.JobType
	)
	switch notice.Label {
	case LabelRoomUpload:
		var payload struct {
			RoomID uuid.UUID `json:"room_id"`
		}
		if err := json.Unmarshal(notice.Payload, &payload); err != nil || payload.RoomID == uuid.Nil {
			response.BadRequest(c, "upload notice missing room_id")
			return
		}
		cl, err := h.classRepo.GetByConferenceRoom(ctx, payload.RoomID)
		if err != nil {
			response.NotFound(c, "no class for conference room")
			return
		}
		class, jobType = cl, queue.JobTypeUploadReady

	case LabelRoomAdjust:
		var payload AdjustNotice
		if err := json.Unmarshal(notice.Payload, &payload); err != nil || payload.RoomID == uuid.Nil {
			response.BadRequest(c, "adjust notice missing room_id")
			return
		}
		cl, err := h.classRepo.GetByEventRoom(ctx, payload.RoomID)
		if err != nil {
			response.NotFound(c, "no class for event room")
			return
		}
		class, jobType = cl, queue.JobTypeAdjustResult

	case LabelTaskComplete:
		var payload TaskCompleteNotice
		if err := json.Unmarshal(notice.Payload, &payload); err != nil || payload.ClassID == uuid.Nil {
			response.BadRequest(c, "task notice missing class_id")
			return
		}
		cl, err := h.classRepo.Get(ctx, payload.ClassID)
		if err != nil {
			response.NotFound(c, "no such class")
			return
		}
		class, jobType = cl, queue.JobTypeTaskComplete

	case LabelRoomClose:
		// Nothing to do on close; the pipeline starts at upload.
		h.logger.Debug("room close acknowledged")
		response.OK(c, gin.H{"accepted": false})
		return

	default:
		response.BadRequest(c, "unknown notice label: "+notice.Label)
		return
	}

	err := h.queue.EnqueuePipeline(ctx, jobType, queue.PipelinePayload{
		ClassID: class.ID,
		Notice:  notice.Payload,
	})
	if err != nil {
		h.logger.Error("enqueue pipeline job failed",
			zap.String("label", notice.Label),
			zap.String("class_id", class.ID.String()),
			zap.Error(err))
		response.Internal(c, "failed to enqueue")
		return
	}

	h.logger.Info("pipeline notice accepted",
		zap.String("label", notice.Label),
		zap.String("class_id", class.ID.String()),
		zap.String("kind", string(class.Kind)))
	response.OK(c, gin.H{"accepted": true, "class_id": class.ID})
}
