package pipeline

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler exposes a manual pipeline trigger for the dashboard. Each run
// gets a fresh orchestrator because sources hand over consumable batches.
type Handler struct {
	build  func() (*Orchestrator, error)
	logger *zap.Logger
}

// NewHandler creates a pipeline handler over an orchestrator factory
func NewHandler(build func() (*Orchestrator, error), logger *zap.Logger) *Handler {
	return &Handler{build: build, logger: logger}
}

// RegisterRoutes registers pipeline routes on the given group
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/run", h.Run)
}

func (h *Handler) Run(c *gin.Context) {
	orchestrator, err := h.build()
	if err != nil {
		h.logger.Error("Failed to assemble pipeline", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pipeline is not available"})
		return
	}

	report, err := orchestrator.RunCycle(c.Request.Context())
	if err != nil {
		h.logger.Error("Pipeline run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pipeline run failed"})
		return
	}

	c.JSON(http.StatusOK, report)
}
