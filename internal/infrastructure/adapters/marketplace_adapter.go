package adapters

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopline-platform/reconciliation-service/internal/domain"
	"github.com/shopline-platform/reconciliation-service/pkg/metrics"
)

// MarketplaceConfig holds marketplace API configuration
type MarketplaceConfig struct {
	BaseURL             string
	AuthURL             string
	ClientID            string
	ClientSecret        string
	RefreshToken        string
	MarketplaceID       string
	MerchantLocationKey string
	FulfillmentPolicyID string
	PaymentPolicyID     string
	ReturnPolicyID      string
}

// MarketplaceAdapter implements domain.ChannelAdapter for the marketplace.
// A listing is a two-step structure: an inventory item keyed by SKU plus an
// offer binding it to a marketplace and price; publishing the offer yields
// the public listing.
type MarketplaceAdapter struct {
	httpClient *http.Client
	config     MarketplaceConfig
	metrics    *metrics.Metrics

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time

	locationMu      sync.Mutex
	locationEnsured bool
}

// NewMarketplaceAdapter creates a new marketplace adapter
func NewMarketplaceAdapter(config MarketplaceConfig, m *metrics.Metrics) *MarketplaceAdapter {
	if config.MarketplaceID == "" {
		config.MarketplaceID = "EBAY_DE"
	}
	if config.MerchantLocationKey == "" {
		config.MerchantLocationKey = "shop-main"
	}
	return &MarketplaceAdapter{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		config:     config,
		metrics:    m,
	}
}

func (a *MarketplaceAdapter) Name() domain.ChannelName {
	return domain.ChannelMarketplace
}

// getAccessToken exchanges the refresh token for an access token, caching it
// until shortly before expiry. The lock only guards the cached fields, never
// the token request itself; concurrent callers finding a stale token may each
// refresh, and the last response wins.
func (a *MarketplaceAdapter) getAccessToken(ctx context.Context) (string, error) {
	a.tokenMu.Lock()
	token, expiry := a.accessToken, a.tokenExpiry
	a.tokenMu.Unlock()

	if token != "" && time.Now().Before(expiry) {
		return token, nil
	}

	token, expiry, err := a.refreshAccessToken(ctx)
	if err != nil {
		return "", err
	}

	a.tokenMu.Lock()
	a.accessToken, a.tokenExpiry = token, expiry
	a.tokenMu.Unlock()

	return token, nil
}

func (a *MarketplaceAdapter) refreshAccessToken(ctx context.Context) (string, time.Time, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", a.config.RefreshToken)
	data.Set("scope", "https://api.ebay.com/oauth/api_scope https://api.ebay.com/oauth/api_scope/sell.inventory https://api.ebay.com/oauth/api_scope/sell.fulfillment")

	req, err := http.NewRequestWithContext(ctx, "POST", a.config.AuthURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", time.Time{}, err
	}

	auth := base64.StdEncoding.EncodeToString([]byte(a.config.ClientID + ":" + a.config.ClientSecret))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", time.Time{}, fmt.Errorf("token request failed: %s", string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", time.Time{}, err
	}

	expiry := time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)
	return tokenResp.AccessToken, expiry, nil
}

// ensureLocation creates the merchant location once. The marketplace rejects
// offers without one; a conflict response means it already exists, which also
// makes concurrent redundant creations harmless. The lock is never held
// across the request.
func (a *MarketplaceAdapter) ensureLocation(ctx context.Context) error {
	a.locationMu.Lock()
	ensured := a.locationEnsured
	a.locationMu.Unlock()
	if ensured {
		return nil
	}

	body := map[string]interface{}{
		"location": map[string]interface{}{
			"address": map[string]string{"country": "DE"},
		},
		"locationTypes": []string{"WAREHOUSE"},
		"name":          "Shop storefront",
	}

	respBody, status, err := a.do(ctx, "ensure_location", "POST", "/sell/inventory/v1/location/"+a.config.MerchantLocationKey, body)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK, http.StatusNoContent, http.StatusConflict:
		a.locationMu.Lock()
		a.locationEnsured = true
		a.locationMu.Unlock()
		return nil
	}
	return fmt.Errorf("ensure location failed: status %d: %s", status, string(respBody))
}

// Publish upserts the inventory item, obtains an offer for it and publishes
// the offer. Every step tolerates the previous attempt having half
// succeeded, so a replayed publish converges instead of erroring.
func (a *MarketplaceAdapter) Publish(ctx context.Context, item *domain.InventoryItem) (domain.ChannelRefs, error) {
	if err := a.ensureLocation(ctx); err != nil {
		return domain.ChannelRefs{}, classifyTransport(domain.ChannelMarketplace, "publish", err)
	}

	if err := a.putInventoryItem(ctx, item, item.Quantity); err != nil {
		return domain.ChannelRefs{}, err
	}

	offerID, err := a.ensureOffer(ctx, item)
	if err != nil {
		return domain.ChannelRefs{}, err
	}

	listingID, err := a.publishOffer(ctx, offerID)
	if err != nil {
		return domain.ChannelRefs{}, err
	}

	return domain.ChannelRefs{
		MarketOfferRef:   offerID,
		MarketListingRef: listingID,
	}, nil
}

func (a *MarketplaceAdapter) putInventoryItem(ctx context.Context, item *domain.InventoryItem, quantity int) error {
	mapped := mapCategory(item.Category)
	body := map[string]interface{}{
		"availability": map[string]interface{}{
			"shipToLocationAvailability": map[string]interface{}{
				"quantity": quantity,
			},
		},
		"condition": "USED_EXCELLENT",
		"product": map[string]interface{}{
			"title":       fmt.Sprintf("%s - %s", item.Code, item.Name),
			"description": item.Name,
		},
		"packageWeightAndSize": map[string]interface{}{
			"packageType": mapped.PackageType,
			"weight": map[string]interface{}{
				"value": mapped.WeightKg,
				"unit":  "KILOGRAM",
			},
		},
	}

	respBody, status, err := a.do(ctx, "put_inventory_item", "PUT", "/sell/inventory/v1/inventory_item/"+item.ItemID, body)
	if err != nil {
		return classifyTransport(domain.ChannelMarketplace, "publish", err)
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return classifyStatus(domain.ChannelMarketplace, "publish", status, respBody)
	}
	return nil
}

// ensureOffer creates an offer for the item's SKU, recovering the existing
// offer when one was already created by an earlier attempt.
func (a *MarketplaceAdapter) ensureOffer(ctx context.Context, item *domain.InventoryItem) (string, error) {
	if item.ChannelRefs.MarketOfferRef != "" {
		return item.ChannelRefs.MarketOfferRef, nil
	}

	mapped := mapCategory(item.Category)
	body := map[string]interface{}{
		"sku":                 item.ItemID,
		"marketplaceId":       a.config.MarketplaceID,
		"format":              "FIXED_PRICE",
		"availableQuantity":   item.Quantity,
		"categoryId":          mapped.CategoryID,
		"merchantLocationKey": a.config.MerchantLocationKey,
		"pricingSummary": map[string]interface{}{
			"price": map[string]string{
				"value":    item.Price.StringFixed(2),
				"currency": item.Currency,
			},
		},
		"listingPolicies": map[string]string{
			"fulfillmentPolicyId": a.config.FulfillmentPolicyID,
			"paymentPolicyId":     a.config.PaymentPolicyID,
			"returnPolicyId":      a.config.ReturnPolicyID,
		},
	}

	respBody, status, err := a.do(ctx, "create_offer", "POST", "/sell/inventory/v1/offer", body)
	if err != nil {
		return "", classifyTransport(domain.ChannelMarketplace, "publish", err)
	}

	switch status {
	case http.StatusCreated, http.StatusOK:
		var offerResp struct {
			OfferID string `json:"offerId"`
		}
		if err := json.Unmarshal(respBody, &offerResp); err != nil {
			return "", domain.NewChannelError(domain.ChannelMarketplace, "publish", domain.FailurePermanent, err)
		}
		return offerResp.OfferID, nil
	case http.StatusBadRequest, http.StatusConflict:
		// Offer may already exist for this SKU
		return a.findOfferBySKU(ctx, item.ItemID)
	}

	return "", classifyStatus(domain.ChannelMarketplace, "publish", status, respBody)
}

func (a *MarketplaceAdapter) findOfferBySKU(ctx context.Context, sku string) (string, error) {
	respBody, status, err := a.do(ctx, "find_offer", "GET", "/sell/inventory/v1/offer?sku="+url.QueryEscape(sku), nil)
	if err != nil {
		return "", classifyTransport(domain.ChannelMarketplace, "publish", err)
	}
	if status != http.StatusOK {
		return "", classifyStatus(domain.ChannelMarketplace, "publish", status, respBody)
	}

	var offersResp struct {
		Offers []struct {
			OfferID string `json:"offerId"`
		} `json:"offers"`
	}
	if err := json.Unmarshal(respBody, &offersResp); err != nil {
		return "", domain.NewChannelError(domain.ChannelMarketplace, "publish", domain.FailurePermanent, err)
	}
	if len(offersResp.Offers) == 0 {
		return "", domain.NewChannelError(domain.ChannelMarketplace, "publish", domain.FailurePermanent,
			fmt.Errorf("no offer found for sku %s", sku))
	}
	return offersResp.Offers[0].OfferID, nil
}

func (a *MarketplaceAdapter) publishOffer(ctx context.Context, offerID string) (string, error) {
	respBody, status, err := a.do(ctx, "publish_offer", "POST", "/sell/inventory/v1/offer/"+offerID+"/publish", nil)
	if err != nil {
		return "", classifyTransport(domain.ChannelMarketplace, "publish", err)
	}

	switch status {
	case http.StatusOK:
		var publishResp struct {
			ListingID string `json:"listingId"`
		}
		if err := json.Unmarshal(respBody, &publishResp); err != nil {
			return "", domain.NewChannelError(domain.ChannelMarketplace, "publish", domain.FailurePermanent, err)
		}
		return publishResp.ListingID, nil
	case http.StatusBadRequest:
		// The offer may already be published; read it back
		return a.listingIDFromOffer(ctx, offerID)
	}

	return "", classifyStatus(domain.ChannelMarketplace, "publish", status, respBody)
}

func (a *MarketplaceAdapter) listingIDFromOffer(ctx context.Context, offerID string) (string, error) {
	respBody, status, err := a.do(ctx, "get_offer", "GET", "/sell/inventory/v1/offer/"+offerID, nil)
	if err != nil {
		return "", classifyTransport(domain.ChannelMarketplace, "publish", err)
	}
	if status != http.StatusOK {
		return "", classifyStatus(domain.ChannelMarketplace, "publish", status, respBody)
	}

	var offerResp struct {
		Status  string `json:"status"`
		Listing struct {
			ListingID string `json:"listingId"`
		} `json:"listing"`
	}
	if err := json.Unmarshal(respBody, &offerResp); err != nil {
		return "", domain.NewChannelError(domain.ChannelMarketplace, "publish", domain.FailurePermanent, err)
	}
	if offerResp.Status != "PUBLISHED" || offerResp.Listing.ListingID == "" {
		return "", domain.NewChannelError(domain.ChannelMarketplace, "publish", domain.FailurePermanent,
			fmt.Errorf("offer %s not published, status %s", offerID, offerResp.Status))
	}
	return offerResp.Listing.ListingID, nil
}

// Withdraw ends the item's offer. An offer the marketplace no longer knows
// counts as withdrawn.
func (a *MarketplaceAdapter) Withdraw(ctx context.Context, item *domain.InventoryItem) error {
	offerID := item.ChannelRefs.MarketOfferRef
	if offerID == "" {
		return nil
	}

	respBody, status, err := a.do(ctx, "withdraw", "POST", "/sell/inventory/v1/offer/"+offerID+"/withdraw", nil)
	if err != nil {
		return classifyTransport(domain.ChannelMarketplace, "withdraw", err)
	}

	switch status {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound, http.StatusGone:
		return nil
	}

	return classifyStatus(domain.ChannelMarketplace, "withdraw", status, respBody)
}

// UpdateQuantity pushes the authoritative quantity to the listing
func (a *MarketplaceAdapter) UpdateQuantity(ctx context.Context, item *domain.InventoryItem, quantity int) error {
	if err := a.putInventoryItem(ctx, item, quantity); err != nil {
		var chErr *domain.ChannelError
		if errors.As(err, &chErr) {
			chErr.Op = "update_quantity"
		}
		return err
	}
	return nil
}

// FetchCompletedTransactions fetches paid orders created inside the window
func (a *MarketplaceAdapter) FetchCompletedTransactions(ctx context.Context, windowStart, windowEnd time.Time) ([]*domain.ExternalTransaction, error) {
	var transactions []*domain.ExternalTransaction
	offset := 0
	const pageSize = 50

	for {
		params := url.Values{}
		params.Set("filter", fmt.Sprintf("creationdate:[%s..%s]",
			windowStart.UTC().Format("2006-01-02T15:04:05.000Z"),
			windowEnd.UTC().Format("2006-01-02T15:04:05.000Z")))
		params.Set("limit", fmt.Sprintf("%d", pageSize))
		params.Set("offset", fmt.Sprintf("%d", offset))

		respBody, status, err := a.do(ctx, "fetch_transactions", "GET", "/sell/fulfillment/v1/order?"+params.Encode(), nil)
		if err != nil {
			return nil, classifyTransport(domain.ChannelMarketplace, "fetch_transactions", err)
		}
		if status != http.StatusOK {
			return nil, classifyStatus(domain.ChannelMarketplace, "fetch_transactions", status, respBody)
		}

		var ordersResp struct {
			Orders []struct {
				OrderID            string    `json:"orderId"`
				CreationDate       time.Time `json:"creationDate"`
				OrderPaymentStatus string    `json:"orderPaymentStatus"`
				LineItems          []struct {
					LegacyItemID string `json:"legacyItemId"`
					SKU          string `json:"sku"`
					Title        string `json:"title"`
					Quantity     int    `json:"quantity"`
					LineItemCost struct {
						Value    string `json:"value"`
						Currency string `json:"currency"`
					} `json:"lineItemCost"`
				} `json:"lineItems"`
			} `json:"orders"`
			Total int `json:"total"`
		}
		if err := json.Unmarshal(respBody, &ordersResp); err != nil {
			return nil, domain.NewChannelError(domain.ChannelMarketplace, "fetch_transactions", domain.FailurePermanent, err)
		}

		for _, order := range ordersResp.Orders {
			if order.OrderPaymentStatus != "PAID" {
				continue
			}

			tx := &domain.ExternalTransaction{
				TransactionID: "marketplace:" + order.OrderID,
				Channel:       domain.ChannelMarketplace,
				CompletedAt:   order.CreationDate,
			}
			for _, line := range order.LineItems {
				price, err := decimal.NewFromString(line.LineItemCost.Value)
				if err != nil {
					price = decimal.Zero
				}
				qty := line.Quantity
				if qty < 1 {
					qty = 1
				}
				unitPrice := price
				if qty > 1 {
					unitPrice = price.Div(decimal.NewFromInt(int64(qty)))
				}
				tx.LineItems = append(tx.LineItems, domain.TransactionLineItem{
					MarketListingRef: line.LegacyItemID,
					Name:             line.Title,
					Quantity:         qty,
					UnitPrice:        unitPrice,
					Currency:         line.LineItemCost.Currency,
				})
			}
			transactions = append(transactions, tx)
		}

		offset += len(ordersResp.Orders)
		if len(ordersResp.Orders) < pageSize || offset >= ordersResp.Total {
			return transactions, nil
		}
	}
}

func (a *MarketplaceAdapter) do(ctx context.Context, op, method, path string, body interface{}) ([]byte, int, error) {
	accessToken, err := a.getAccessToken(ctx)
	if err != nil {
		return nil, 0, err
	}

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
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Language", "de-DE")

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if a.metrics != nil {
		a.metrics.RecordChannelAPICall(string(domain.ChannelMarketplace), op, time.Since(start))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}

	return respBody, resp.StatusCode, nil
}
