package classes

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/dispatcher/internal/clients"
	"github.com/aura-webinar/dispatcher/internal/models"
	"github.com/aura-webinar/dispatcher/internal/recordings"
	"github.com/aura-webinar/dispatcher/pkg/response"
	"github.com/aura-webinar/dispatcher/pkg/storage"
)

// CreateRequest is the body for POST /classes/:kind.
type CreateRequest struct {
	Audience        string           `json:"audience" binding:"required"`
	Scope           string           `json:"scope" binding:"required"`
	Time            models.TimeRange `json:"time"`
	Tags            json.RawMessage  `json:"tags"`
	Host            *string          `json:"host"`
	Reserve         *int             `json:"reserve"`
	PreserveHistory *bool            `json:"preserve_history"`
	LockedChat      bool             `json:"locked_chat"`
}

// UpdateRequest is the body for PATCH /classes/:kind/:id.
type UpdateRequest struct {
	Time    *models.TimeRange `json:"time"`
	Reserve *int              `json:"reserve"`
}

// RecreateRequest is the body for POST /classes/:kind/:id/recreate.
type RecreateRequest struct {
	Time models.TimeRange `json:"time"`
}

// Handler handles class HTTP endpoints.
type Handler struct {
	repo    *Repository
	service *Service
	recRepo *recordings.Repository
	event   clients.EventClient
	s3      *storage.S3
	logger  *zap.Logger
}

// NewHandler creates a class handler.
func NewHandler(repo *Repository, service *Service, recRepo *recordings.Repository, event clients.EventClient, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, service: service, recRepo: recRepo, event: event, s3: s3, logger: logger}
}

func (h *Handler) bindKind(c *gin.Context) (models.ClassKind, bool) {
	kind, ok := models.ParseClassKind(c.Param("kind"))
	if !ok {
		response.BadRequest(c, "unknown class kind")
		return "", false
	}
	return kind, true
}

func (h *Handler) loadClass(c *gin.Context) (*models.Class, bool) {
	kind, ok := h.bindKind(c)
	if !ok {
		return nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid class id")
		return nil, false
	}
	cl, err := h.repo.GetByID(c.Request.Context(), kind, id)
	if err != nil {
		response.NotFound(c, "class not found")
		return nil, false
	}
	return cl, true
}

// Create handles POST /classes/:kind.
func (h *Handler) Create(c *gin.Context) {
	kind, ok := h.bindKind(c)
	if !ok {
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if kind == models.ClassKindMinigroup && req.Host == nil {
		response.BadRequest(c, "minigroup requires a host")
		return
	}

	preserveHistory := true
	if req.PreserveHistory != nil {
		preserveHistory = *req.PreserveHistory
	}

	cl, err := h.service.Create(c.Request.Context(), CreateParams{
		Kind:            kind,
		Audience:        req.Audience,
		Scope:           req.Scope,
		Time:            req.Time,
		Tags:            req.Tags,
		Host:            req.Host,
		Reserve:         req.Reserve,
		PreserveHistory: preserveHistory,
		LockedChat:      req.LockedChat,
	})
	if err != nil {
		h.logger.Error("class create failed",
			zap.String("kind", string(kind)),
			zap.String("audience", req.Audience),
			zap.String("scope", req.Scope),
			zap.Error(err))
		response.Internal(c, "failed to create class")
		return
	}
	response.Created(c, cl)
}

// GetByID handles GET /classes/:kind/:id.
func (h *Handler) GetByID(c *gin.Context) {
	cl, ok := h.loadClass(c)
	if !ok {
		return
	}
	response.OK(c, cl)
}

// GetByScope handles GET /audiences/:audience/classes/:kind/:scope.
func (h *Handler) GetByScope(c *gin.Context) {
	kind, ok := h.bindKind(c)
	if !ok {
		return
	}
	cl, err := h.repo.GetByScope(c.Request.Context(), kind, c.Param("audience"), c.Param("scope"))
	if err != nil {
		response.NotFound(c, "class not found")
		return
	}
	response.OK(c, cl)
}

// Update handles PATCH /classes/:kind/:id.
func (h *Handler) Update(c *gin.Context) {
	cl, ok := h.loadClass(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	if req.Reserve != nil {
		if err := h.repo.UpdateReserve(ctx, cl.ID, req.Reserve); err != nil {
			response.Internal(c, "failed to update reserve")
			return
		}
		cl.Reserve = req.Reserve
	}
	if req.Time != nil {
		updated, err := h.service.UpdateTime(ctx, cl, *req.Time)
		if err != nil {
			h.logger.Error("class time update failed", zap.String("class_id", cl.ID.String()), zap.Error(err))
			response.Internal(c, "failed to update time")
			return
		}
		cl = updated
	}
	response.OK(c, cl)
}

// Recreate handles POST /classes/:kind/:id/recreate. The class gets fresh
// rooms and loses its recordings; use it to rerun a botched session.
func (h *Handler) Recreate(c *gin.Context) {
	cl, ok := h.loadClass(c)
	if !ok {
		return
	}
	var req RecreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	updated, err := h.service.Recreate(c.Request.Context(), cl, req.Time)
	if err != nil {
		h.logger.Error("class recreate failed", zap.String("class_id", cl.ID.String()), zap.Error(err))
		response.Internal(c, "failed to recreate class")
		return
	}
	response.OK(c, updated)
}

// ListRecordings handles GET /classes/:kind/:id/recordings.
func (h *Handler) ListRecordings(c *gin.Context) {
	cl, ok := h.loadClass(c)
	if !ok {
		return
	}
	recs, err := h.recRepo.ListByClass(c.Request.Context(), cl.ID)
	if err != nil {
		response.Internal(c, "failed to list recordings")
		return
	}
	response.OK(c, recs)
}

// DownloadURL handles GET /classes/:kind/:id/download: presigned GET URLs
// for the class's source recordings.
func (h *Handler) DownloadURL(c *gin.Context) {
	cl, ok := h.loadClass(c)
	if !ok {
		return
	}
	if h.s3 == nil {
		response.ServiceUnavailable(c, "recording storage not configured")
		return
	}
	recs, err := h.recRepo.ListByClass(c.Request.Context(), cl.ID)
	if err != nil {
		response.Internal(c, "failed to list recordings")
		return
	}
	if len(recs) == 0 {
		response.NotFound(c, "no recordings for class")
		return
	}
	type download struct {
		RtcID uuid.UUID `json:"rtc_id"`
		URL   string    `json:"url"`
	}
	urls := make([]download, 0, len(recs))
	for _, rec := range recs {
		url, err := h.s3.PresignDownloadURI(c.Request.Context(), rec.URI)
		if err != nil {
			h.logger.Warn("presign failed", zap.String("uri", rec.URI), zap.Error(err))
			continue
		}
		urls = append(urls, download{RtcID: rec.RtcID, URL: url})
	}
	response.OK(c, gin.H{"class_id": cl.ID, "downloads": urls})
}

// CreateEvent handles POST /classes/:kind/:id/events: forwards an arbitrary
// event payload into the class's event room.
func (h *Handler) CreateEvent(c *gin.Context) {
	cl, ok := h.loadClass(c)
	if !ok {
		return
	}
	var payload json.RawMessage
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.BadRequest(c, "invalid event payload")
		return
	}
	if err := h.event.CreateEvent(c.Request.Context(), cl.EventRoomID, payload); err != nil {
		h.logger.Error("event create failed", zap.String("class_id", cl.ID.String()), zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, gin.H{"class_id": cl.ID})
}
