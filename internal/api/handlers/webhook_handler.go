package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/shopline-platform/reconciliation-service/internal/application"
	"github.com/shopline-platform/reconciliation-service/internal/domain"
	"github.com/shopline-platform/reconciliation-service/internal/infrastructure/adapters"
	"github.com/shopline-platform/reconciliation-service/pkg/logging"
	"github.com/shopline-platform/reconciliation-service/pkg/metrics"
)

// posSignatureHeader carries the HMAC signature of the raw request body.
const posSignatureHeader = "X-Pos-Signature"

// posWebhookEvent is the notification envelope sent by the POS channel.
type posWebhookEvent struct {
	Type string `json:"type"`
	Data struct {
		Transaction posWebhookTransaction `json:"transaction"`
	} `json:"data"`
}

type posWebhookTransaction struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	CompletedAt time.Time `json:"completed_at"`
	LineItems   []struct {
		CatalogObjectID string `json:"catalog_object_id"`
		Name            string `json:"name"`
		Quantity        string `json:"quantity"`
		BasePriceMoney  struct {
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
		} `json:"base_price_money"`
	} `json:"line_items"`
}

// WebhookHandler handles channel webhook notifications
type WebhookHandler struct {
	pipeline     *application.SalePipeline
	signatureKey string
	logger       *logging.Logger
	metrics      *metrics.Metrics
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(pipeline *application.SalePipeline, signatureKey string, logger *logging.Logger, metrics *metrics.Metrics) *WebhookHandler {
	return &WebhookHandler{
		pipeline:     pipeline,
		signatureKey: signatureKey,
		logger:       logger.WithComponent("webhook"),
		metrics:      metrics,
	}
}

// RegisterRoutes registers the webhook routes
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/pos", h.HandlePOSWebhook)
	}
}

// HandlePOSWebhook handles POST /webhooks/pos. The signature is verified
// against the raw body before any parsing happens. Notifications that are
// not completed payments are acknowledged without side effects so the
// channel does not retry them. Only a ledger write failure produces a 5xx,
// which is the signal for the channel to redeliver.
func (h *WebhookHandler) HandlePOSWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.metrics.RecordWebhook("pos", "read_failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	if !adapters.VerifyPOSSignature(h.signatureKey, body, c.GetHeader(posSignatureHeader)) {
		h.metrics.RecordWebhook("pos", "bad_signature")
		h.logger.Warn("webhook signature verification failed", "remote", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var event posWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.metrics.RecordWebhook("pos", "malformed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}

	if event.Type != "payment.updated" || event.Data.Transaction.Status != "COMPLETED" {
		h.metrics.RecordWebhook("pos", "ignored")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	tx := normalizePOSTransaction(event.Data.Transaction)
	result, err := h.pipeline.Process(c.Request.Context(), tx)
	if err != nil {
		h.metrics.RecordWebhook("pos", "failed")
		h.logger.WithError(err).Error("webhook processing failed", "transaction_id", tx.TransactionID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	h.metrics.RecordWebhook("pos", "processed")
	c.JSON(http.StatusOK, gin.H{
		"status":     "processed",
		"applied":    result.Applied,
		"duplicates": result.Duplicates,
		"unmatched":  result.Unmatched,
	})
}

func normalizePOSTransaction(tx posWebhookTransaction) *domain.ExternalTransaction {
	lines := make([]domain.TransactionLineItem, 0, len(tx.LineItems))
	for _, li := range tx.LineItems {
		quantity, err := decimal.NewFromString(li.Quantity)
		if err != nil || !quantity.IsPositive() {
			quantity = decimal.NewFromInt(1)
		}
		lines = append(lines, domain.TransactionLineItem{
			POSVariationRef: li.CatalogObjectID,
			Name:            li.Name,
			Quantity:        int(quantity.IntPart()),
			UnitPrice:       decimal.New(li.BasePriceMoney.Amount, -2),
			Currency:        li.BasePriceMoney.Currency,
		})
	}
	return &domain.ExternalTransaction{
		TransactionID: "pos:" + tx.ID,
		Channel:       domain.ChannelPOS,
		CompletedAt:   tx.CompletedAt,
		LineItems:     lines,
	}
}
