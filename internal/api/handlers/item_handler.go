package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shopline-platform/reconciliation-service/internal/application"
	"github.com/shopline-platform/reconciliation-service/internal/domain"
	"github.com/shopline-platform/reconciliation-service/pkg/logging"
)

// ItemHandler handles inventory item HTTP requests
type ItemHandler struct {
	inventory    *application.InventoryService
	ledger       *application.LedgerService
	orchestrator *application.RemovalOrchestrator
	logger       *logging.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(
	inventory *application.InventoryService,
	ledger *application.LedgerService,
	orchestrator *application.RemovalOrchestrator,
	logger *logging.Logger,
) *ItemHandler {
	return &ItemHandler{
		inventory:    inventory,
		ledger:       ledger,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// RegisterRoutes registers the item routes
func (h *ItemHandler) RegisterRoutes(r *gin.RouterGroup) {
	items := r.Group("/items")
	{
		items.POST("", h.IntakeItem)
		items.GET("", h.ListItems)
		items.GET("/:id", h.GetItem)
		items.GET("/:id/sales", h.GetItemSales)
		items.POST("/:id/publish", h.PublishItem)
		items.POST("/:id/restock", h.RestockItem)
		items.POST("/:id/retry-removal", h.RetryRemoval)
	}
}

// IntakeItem handles POST /items
func (h *ItemHandler) IntakeItem(c *gin.Context) {
	var cmd application.IntakeItemCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.inventory.IntakeItem(c.Request.Context(), cmd)
	if err != nil {
		h.logger.WithError(err).Warn("item intake failed", "code", cmd.Code)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

// ListItems handles GET /items, optionally filtered by ?sellerId=
func (h *ItemHandler) ListItems(c *gin.Context) {
	items, err := h.inventory.ListItems(c.Request.Context(), c.Query("sellerId"), paginationFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GetItem handles GET /items/:id
func (h *ItemHandler) GetItem(c *gin.Context) {
	item, err := h.inventory.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// GetItemSales handles GET /items/:id/sales
func (h *ItemHandler) GetItemSales(c *gin.Context) {
	sales, err := h.inventory.GetItemSales(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": sales})
}

// PublishItem handles POST /items/:id/publish
func (h *ItemHandler) PublishItem(c *gin.Context) {
	var cmd application.PublishItemCommand
	if err := c.ShouldBindJSON(&cmd); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.inventory.PublishItem(c.Request.Context(), c.Param("id"), cmd)
	if err != nil {
		h.logger.WithError(err).Error("item publish failed", "item_id", c.Param("id"))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

// RestockItem handles POST /items/:id/restock
func (h *ItemHandler) RestockItem(c *gin.Context) {
	var cmd application.RestockItemCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.ledger.Restock(c.Request.Context(), c.Param("id"), cmd.Units)
	if err != nil {
		respondError(c, err)
		return
	}

	// Replenished stock must reach every channel still listing the item.
	h.orchestrator.SyncQuantity(c.Request.Context(), item, "")

	c.JSON(http.StatusOK, application.ToItemDTO(item))
}

// RetryRemoval handles POST /items/:id/retry-removal
func (h *ItemHandler) RetryRemoval(c *gin.Context) {
	result, err := h.orchestrator.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func paginationFromQuery(c *gin.Context) domain.Pagination {
	pagination := domain.DefaultPagination()
	if page, err := strconv.ParseInt(c.Query("page"), 10, 64); err == nil && page > 0 {
		pagination.Page = page
	}
	if pageSize, err := strconv.ParseInt(c.Query("pageSize"), 10, 64); err == nil && pageSize > 0 && pageSize <= 100 {
		pagination.PageSize = pageSize
	}
	return pagination
}
