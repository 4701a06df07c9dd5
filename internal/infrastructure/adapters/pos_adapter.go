package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopline-platform/reconciliation-service/internal/domain"
	"github.com/shopline-platform/reconciliation-service/pkg/metrics"
)

// POSConfig holds point-of-sale API configuration
type POSConfig struct {
	BaseURL     string
	AccessToken string
	LocationID  string
	APIVersion  string
}

// POSAdapter implements domain.ChannelAdapter for the point-of-sale system.
// The POS models an item as a catalog object holding one variation; order
// line items reference the variation.
type POSAdapter struct {
	httpClient *http.Client
	config     POSConfig
	metrics    *metrics.Metrics
}

// NewPOSAdapter creates a new POS adapter
func NewPOSAdapter(config POSConfig, m *metrics.Metrics) *POSAdapter {
	if config.APIVersion == "" {
		config.APIVersion = "2024-01-18"
	}
	return &POSAdapter{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		config:     config,
		metrics:    m,
	}
}

func (a *POSAdapter) Name() domain.ChannelName {
	return domain.ChannelPOS
}

type posMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type posCatalogObject struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	Version  int64  `json:"version,omitempty"`
	ItemData *struct {
		Name       string             `json:"name"`
		Variations []posCatalogObject `json:"variations,omitempty"`
		IsArchived bool               `json:"is_archived,omitempty"`
	} `json:"item_data,omitempty"`
	ItemVariationData *struct {
		ItemID         string    `json:"item_id,omitempty"`
		Name           string    `json:"name"`
		PricingType    string    `json:"pricing_type"`
		PriceMoney     *posMoney `json:"price_money,omitempty"`
		TrackInventory bool      `json:"track_inventory"`
	} `json:"item_variation_data,omitempty"`
}

// Publish upserts the item into the POS catalog. A fresh item gets temporary
// ids; an item that already carries POS references is updated in place using
// its stored catalog version.
func (a *POSAdapter) Publish(ctx context.Context, item *domain.InventoryItem) (domain.ChannelRefs, error) {
	itemID := "#item"
	variationID := "#variation"
	var version int64
	if item.ChannelRefs.POSItemRef != "" {
		itemID = item.ChannelRefs.POSItemRef
		variationID = item.ChannelRefs.POSVariationRef
		if item.ChannelRefs.POSCatalogRef != "" {
			version, _ = strconv.ParseInt(item.ChannelRefs.POSCatalogRef, 10, 64)
		}
	}

	priceCents := item.Price.Mul(decimal.NewFromInt(100)).IntPart()
	body := map[string]interface{}{
		"idempotency_key": uuid.New().String(),
		"object": map[string]interface{}{
			"type":    "ITEM",
			"id":      itemID,
			"version": version,
			"item_data": map[string]interface{}{
				"name": fmt.Sprintf("%s - %s", item.Code, item.Name),
				"variations": []map[string]interface{}{
					{
						"type":    "ITEM_VARIATION",
						"id":      variationID,
						"version": version,
						"item_variation_data": map[string]interface{}{
							"name":            "Regular",
							"pricing_type":    "FIXED_PRICING",
							"track_inventory": true,
							"price_money": posMoney{
								Amount:   priceCents,
								Currency: item.Currency,
							},
						},
					},
				},
			},
		},
	}

	respBody, status, err := a.do(ctx, "publish", "POST", "/v2/catalog/object", body)
	if err != nil {
		return domain.ChannelRefs{}, classifyTransport(domain.ChannelPOS, "publish", err)
	}
	if status != http.StatusOK {
		return domain.ChannelRefs{}, classifyStatus(domain.ChannelPOS, "publish", status, respBody)
	}

	var upsertResp struct {
		CatalogObject posCatalogObject `json:"catalog_object"`
	}
	if err := json.Unmarshal(respBody, &upsertResp); err != nil {
		return domain.ChannelRefs{}, domain.NewChannelError(domain.ChannelPOS, "publish", domain.FailurePermanent, err)
	}

	refs := domain.ChannelRefs{
		POSItemRef:    upsertResp.CatalogObject.ID,
		POSCatalogRef: strconv.FormatInt(upsertResp.CatalogObject.Version, 10),
	}
	if upsertResp.CatalogObject.ItemData != nil && len(upsertResp.CatalogObject.ItemData.Variations) > 0 {
		refs.POSVariationRef = upsertResp.CatalogObject.ItemData.Variations[0].ID
	}

	return refs, nil
}

// Withdraw deletes the item's catalog object. A listing the POS no longer
// knows counts as withdrawn. Deletion failures that a retry will not fix
// fall back to archiving the catalog object instead.
func (a *POSAdapter) Withdraw(ctx context.Context, item *domain.InventoryItem) error {
	ref := item.ChannelRefs.POSItemRef
	if ref == "" {
		return nil
	}

	respBody, status, err := a.do(ctx, "withdraw", "DELETE", "/v2/catalog/object/"+ref, nil)
	if err != nil {
		return classifyTransport(domain.ChannelPOS, "withdraw", err)
	}

	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusNotFound || status == http.StatusGone:
		return nil
	case status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= http.StatusInternalServerError:
		return classifyStatus(domain.ChannelPOS, "withdraw", status, respBody)
	}

	// Deletion refused; archive so the item disappears from sale
	return a.archive(ctx, item)
}

func (a *POSAdapter) archive(ctx context.Context, item *domain.InventoryItem) error {
	var version int64
	if item.ChannelRefs.POSCatalogRef != "" {
		version, _ = strconv.ParseInt(item.ChannelRefs.POSCatalogRef, 10, 64)
	}

	body := map[string]interface{}{
		"idempotency_key": uuid.New().String(),
		"object": map[string]interface{}{
			"type":    "ITEM",
			"id":      item.ChannelRefs.POSItemRef,
			"version": version,
			"item_data": map[string]interface{}{
				"name":        fmt.Sprintf("%s - %s", item.Code, item.Name),
				"is_archived": true,
			},
		},
	}

	respBody, status, err := a.do(ctx, "archive", "POST", "/v2/catalog/object", body)
	if err != nil {
		return classifyTransport(domain.ChannelPOS, "archive", err)
	}
	if status != http.StatusOK {
		return classifyStatus(domain.ChannelPOS, "archive", status, respBody)
	}
	return nil
}

// UpdateQuantity records a physical count for the item's variation
func (a *POSAdapter) UpdateQuantity(ctx context.Context, item *domain.InventoryItem, quantity int) error {
	if item.ChannelRefs.POSVariationRef == "" {
		return domain.NewChannelError(domain.ChannelPOS, "update_quantity", domain.FailurePermanent,
			fmt.Errorf("item %s has no POS variation reference", item.ItemID))
	}

	body := map[string]interface{}{
		"idempotency_key": uuid.New().String(),
		"changes": []map[string]interface{}{
			{
				"type": "PHYSICAL_COUNT",
				"physical_count": map[string]interface{}{
					"catalog_object_id": item.ChannelRefs.POSVariationRef,
					"state":             "IN_STOCK",
					"location_id":       a.config.LocationID,
					"quantity":          strconv.Itoa(quantity),
					"occurred_at":       time.Now().UTC().Format(time.RFC3339),
				},
			},
		},
	}

	respBody, status, err := a.do(ctx, "update_quantity", "POST", "/v2/inventory/changes/batch-create", body)
	if err != nil {
		return classifyTransport(domain.ChannelPOS, "update_quantity", err)
	}
	if status != http.StatusOK {
		return classifyStatus(domain.ChannelPOS, "update_quantity", status, respBody)
	}
	return nil
}

// FetchCompletedTransactions searches completed orders closed inside the
// window and normalizes them for the reconciliation pipeline.
func (a *POSAdapter) FetchCompletedTransactions(ctx context.Context, windowStart, windowEnd time.Time) ([]*domain.ExternalTransaction, error) {
	var transactions []*domain.ExternalTransaction
	cursor := ""

	for {
		query := map[string]interface{}{
			"location_ids": []string{a.config.LocationID},
			"query": map[string]interface{}{
				"filter": map[string]interface{}{
					"state_filter": map[string]interface{}{
						"states": []string{"COMPLETED"},
					},
					"date_time_filter": map[string]interface{}{
						"closed_at": map[string]string{
							"start_at": windowStart.UTC().Format(time.RFC3339),
							"end_at":   windowEnd.UTC().Format(time.RFC3339),
						},
					},
				},
				"sort": map[string]string{
					"sort_field": "CLOSED_AT",
					"sort_order": "ASC",
				},
			},
			"limit": 100,
		}
		if cursor != "" {
			query["cursor"] = cursor
		}

		respBody, status, err := a.do(ctx, "fetch_transactions", "POST", "/v2/orders/search", query)
		if err != nil {
			return nil, classifyTransport(domain.ChannelPOS, "fetch_transactions", err)
		}
		if status != http.StatusOK {
			return nil, classifyStatus(domain.ChannelPOS, "fetch_transactions", status, respBody)
		}

		var searchResp struct {
			Orders []struct {
				ID        string    `json:"id"`
				State     string    `json:"state"`
				ClosedAt  time.Time `json:"closed_at"`
				LineItems []struct {
					CatalogObjectID string   `json:"catalog_object_id"`
					Name            string   `json:"name"`
					Quantity        string   `json:"quantity"`
					BasePriceMoney  posMoney `json:"base_price_money"`
				} `json:"line_items"`
			} `json:"orders"`
			Cursor string `json:"cursor"`
		}
		if err := json.Unmarshal(respBody, &searchResp); err != nil {
			return nil, domain.NewChannelError(domain.ChannelPOS, "fetch_transactions", domain.FailurePermanent, err)
		}

		for _, order := range searchResp.Orders {
			tx := &domain.ExternalTransaction{
				TransactionID: "pos:" + order.ID,
				Channel:       domain.ChannelPOS,
				CompletedAt:   order.ClosedAt,
			}
			for _, line := range order.LineItems {
				qty, err := strconv.Atoi(line.Quantity)
				if err != nil || qty < 1 {
					qty = 1
				}
				tx.LineItems = append(tx.LineItems, domain.TransactionLineItem{
					POSVariationRef: line.CatalogObjectID,
					Name:            line.Name,
					Quantity:        qty,
					UnitPrice:       decimal.New(line.BasePriceMoney.Amount, -2),
					Currency:        line.BasePriceMoney.Currency,
				})
			}
			transactions = append(transactions, tx)
		}

		if searchResp.Cursor == "" {
			return transactions, nil
		}
		cursor = searchResp.Cursor
	}
}

func (a *POSAdapter) do(ctx context.Context, op, method, path string, body interface{}) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.BaseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+a.config.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Square-Version", a.config.APIVersion)

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if a.metrics != nil {
		a.metrics.RecordChannelAPICall(string(domain.ChannelPOS), op, time.Since(start))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}

	return respBody, resp.StatusCode, nil
}
