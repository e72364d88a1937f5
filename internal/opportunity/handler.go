package opportunity

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler exposes opportunity endpoints
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new opportunity handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers opportunity routes on the given group
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.List)
	r.GET("/:id", h.Get)
	r.POST("", h.Create)
	r.POST("/:id/status", h.Transition)
}

// IngestRequest is the payload for manually submitting an opportunity
type IngestRequest struct {
	Raw      RawOpportunity `json:"raw" binding:"required"`
	Analysis Analysis       `json:"analysis"`
}

func (h *Handler) Create(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	o, err := h.service.Ingest(c.Request.Context(), req.Raw, req.Analysis)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to ingest opportunity", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest opportunity"})
		return
	}

	c.JSON(http.StatusCreated, o)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid opportunity id"})
		return
	}

	o, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "opportunity not found"})
			return
		}
		h.logger.Error("Failed to get opportunity", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get opportunity"})
		return
	}

	c.JSON(http.StatusOK, o)
}

func (h *Handler) List(c *gin.Context) {
	filters := &Filters{Limit: 50}

	if s := c.Query("status"); s != "" {
		status := Status(s)
		filters.Status = &status
	}
	if src := c.Query("source"); src != "" {
		filters.Source = &src
	}
	if l := c.Query("limit"); l != "" {
		if limit, err := strconv.Atoi(l); err == nil {
			filters.Limit = limit
		}
	}
	if o := c.Query("offset"); o != "" {
		if offset, err := strconv.Atoi(o); err == nil {
			filters.Offset = offset
		}
	}

	opportunities, total, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		h.logger.Error("Failed to list opportunities", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list opportunities"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"opportunities": opportunities,
		"total":         total,
	})
}

// TransitionRequest names the target status for a manual transition
type TransitionRequest struct {
	Status Status `json:"status" binding:"required"`
}

func (h *Handler) Transition(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid opportunity id"})
		return
	}

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	o, err := h.service.Transition(c.Request.Context(), id, req.Status)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "opportunity not found"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, o)
}
