package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shopline-platform/reconciliation-service/internal/application"
	"github.com/shopline-platform/reconciliation-service/internal/domain"
	"github.com/shopline-platform/reconciliation-service/pkg/logging"
)

// ReconciliationHandler handles batch reconciliation HTTP requests
type ReconciliationHandler struct {
	reconcile *application.ReconcileService
	inventory *application.InventoryService
	logger    *logging.Logger
}

// NewReconciliationHandler creates a new reconciliation handler
func NewReconciliationHandler(reconcile *application.ReconcileService, inventory *application.InventoryService, logger *logging.Logger) *ReconciliationHandler {
	return &ReconciliationHandler{
		reconcile: reconcile,
		inventory: inventory,
		logger:    logger,
	}
}

// RegisterRoutes registers the reconciliation routes
func (h *ReconciliationHandler) RegisterRoutes(r *gin.RouterGroup) {
	reconciliation := r.Group("/reconciliation")
	{
		reconciliation.POST("/runs", h.StartRun)
		reconciliation.GET("/removal-incomplete", h.ListRemovalIncomplete)
		reconciliation.GET("/transactions/:transactionId", h.GetTransactionSales)
	}
}

// StartRunRequest describes a reconciliation run over one channel's
// transaction window.
type StartRunRequest struct {
	Channel     string    `json:"channel" binding:"required"`
	WindowStart time.Time `json:"windowStart" binding:"required"`
	WindowEnd   time.Time `json:"windowEnd" binding:"required"`
}

// StartRun handles POST /reconciliation/runs. The run executes
// synchronously; replaying a window is safe because every sale
// application is idempotent.
func (h *ReconciliationHandler) StartRun(c *gin.Context) {
	var req StartRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	channel := domain.ChannelName(req.Channel)
	if !channel.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown channel: " + req.Channel})
		return
	}
	if !req.WindowEnd.After(req.WindowStart) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "windowEnd must be after windowStart"})
		return
	}

	result, err := h.reconcile.Reconcile(c.Request.Context(), channel, req.WindowStart, req.WindowEnd)
	if err != nil {
		h.logger.WithError(err).Error("reconciliation run failed", "channel", req.Channel)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "result": result})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListRemovalIncomplete handles GET /reconciliation/removal-incomplete.
// Items listed here sold out but could not be withdrawn from every
// channel; each can be retried via the item retry-removal endpoint.
func (h *ReconciliationHandler) ListRemovalIncomplete(c *gin.Context) {
	items, err := h.inventory.ListRemovalIncomplete(c.Request.Context(), paginationFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GetTransactionSales handles GET /reconciliation/transactions/:transactionId.
// It shows which sale records one external transaction produced, the audit
// view for a disputed webhook or window replay.
func (h *ReconciliationHandler) GetTransactionSales(c *gin.Context) {
	sales, err := h.inventory.GetTransactionSales(c.Request.Context(), c.Param("transactionId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": sales})
}
