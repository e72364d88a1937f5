package negotiation

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/opportunity"
)

// Handler exposes negotiation endpoints
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new negotiation handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers negotiation routes on the given group
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("", h.CreateSession)
	r.GET("", h.List)
	r.GET("/:id", h.Get)
	r.POST("/:id/advance", h.Advance)
	r.GET("/:id/transcript", h.Transcript)
}

func (h *Handler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.service.CreateSession(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, ErrPolicyViolation) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		if errors.Is(err, opportunity.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "opportunity not found"})
			return
		}
		h.logger.Error("Failed to create session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	c.JSON(http.StatusCreated, session)
}

func (h *Handler) List(c *gin.Context) {
	opportunityID, err := uuid.Parse(c.Query("opportunity_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "opportunity_id is required"})
		return
	}

	sessions, err := h.service.ListByOpportunity(c.Request.Context(), opportunityID)
	if err != nil {
		h.logger.Error("Failed to list sessions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	session, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		h.logger.Error("Failed to get session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get session"})
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *Handler) Advance(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	session, msg, err := h.service.Advance(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		case errors.Is(err, ErrStageOrderViolation):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Failed to advance session", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to advance session"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": session,
		"message": msg,
	})
}

func (h *Handler) Transcript(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	data, err := h.service.Transcript(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		h.logger.Error("Failed to render transcript", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render transcript"})
		return
	}

	c.Header("Content-Disposition", "attachment; filename=transcript-"+id.String()+".pdf")
	c.Data(http.StatusOK, "application/pdf", data)
}
