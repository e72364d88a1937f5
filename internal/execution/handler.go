package execution

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler exposes execution plan endpoints
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new execution handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers execution routes on the given group
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.GetByOpportunity)
	r.GET("/:id", h.Get)
	r.POST("/:id/simulate", h.Simulate)
	r.GET("/report", h.ExportReport)
}

func (h *Handler) GetByOpportunity(c *gin.Context) {
	opportunityID, err := uuid.Parse(c.Query("opportunity_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "opportunity_id is required"})
		return
	}

	plan, err := h.service.GetByOpportunity(c.Request.Context(), opportunityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no plan for opportunity"})
			return
		}
		h.logger.Error("Failed to get plan", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get plan"})
		return
	}

	c.JSON(http.StatusOK, plan)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return
	}

	plan, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
			return
		}
		h.logger.Error("Failed to get plan", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get plan"})
		return
	}

	c.JSON(http.StatusOK, plan)
}

func (h *Handler) Simulate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return
	}

	result, err := h.service.Simulate(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
		case errors.Is(err, ErrPlanFinalized):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Failed to simulate plan", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to simulate plan"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) ExportReport(c *gin.Context) {
	since := time.Now().AddDate(0, -1, 0)
	if v := c.Query("since"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		since = parsed
	}

	url, err := h.service.ExportReport(c.Request.Context(), since)
	if err != nil {
		h.logger.Error("Failed to export deal-flow report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export report"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"download_url": url})
}
