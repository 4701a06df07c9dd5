package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/shopline-platform/reconciliation-service/internal/application"
	"github.com/shopline-platform/reconciliation-service/internal/domain"
)

func newItemRouter(env *testEnv) *gin.Engine {
	handler := NewItemHandler(env.inventory, env.ledger, env.orchestrator, testLogger())
	router := newTestRouter()
	handler.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestIntakeItem(t *testing.T) {
	var saved *domain.InventoryItem
	items := &fakeItemRepository{
		saveFn: func(_ context.Context, item *domain.InventoryItem) error {
			saved = item
			return nil
		},
	}
	env := newTestEnv(items, &fakeSaleRecordRepository{})
	router := newItemRouter(env)

	body := []byte(`{"code":"AB12","name":"Wool coat","category":"clothing","sellerId":"SLR-001","quantity":1,"price":"120.00","currency":"EUR"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, saved)
	require.Equal(t, "AB12", saved.Code)

	var dto application.ItemDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dto))
	require.Equal(t, saved.ItemID, dto.ItemID)
}

func TestIntakeItemValidation(t *testing.T) {
	env := newTestEnv(&fakeItemRepository{}, &fakeSaleRecordRepository{})
	router := newItemRouter(env)

	tests := []struct {
		name string
		body string
	}{
		{"missing code", `{"name":"Wool coat","category":"clothing","sellerId":"SLR-001","quantity":1}`},
		{"zero quantity", `{"code":"AB12","name":"Wool coat","category":"clothing","sellerId":"SLR-001","quantity":0}`},
		{"not json", `nope`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/items", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			require.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestGetItemNotFound(t *testing.T) {
	items := &fakeItemRepository{
		findByItemIDFn: func(context.Context, string) (*domain.InventoryItem, error) {
			return nil, domain.ErrItemNotFound
		},
	}
	env := newTestEnv(items, &fakeSaleRecordRepository{})
	router := newItemRouter(env)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items/ITM-missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublishItem(t *testing.T) {
	item := newTestItem(t, 1, false)
	items := &fakeItemRepository{
		findByItemIDFn: func(context.Context, string) (*domain.InventoryItem, error) {
			return item, nil
		},
		saveFn: func(context.Context, *domain.InventoryItem) error { return nil },
	}
	pos := &fakeAdapter{
		name: domain.ChannelPOS,
		publishFn: func(context.Context, *domain.InventoryItem) (domain.ChannelRefs, error) {
			return domain.ChannelRefs{POSItemRef: "sq-item-1", POSVariationRef: "sq-var-1"}, nil
		},
	}
	env := newTestEnv(items, &fakeSaleRecordRepository{}, pos)
	router := newItemRouter(env)

	body := []byte(`{"channels":["pos"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/"+item.ItemID+"/publish", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "sq-var-1", item.ChannelRefs.POSVariationRef)
	require.Equal(t, domain.ListingListed, item.ListingStates[string(domain.ChannelPOS)])
}

func TestRestockRejectsUniqueItem(t *testing.T) {
	item := newTestItem(t, 1, false)
	items := &fakeItemRepository{
		findByItemIDFn: func(context.Context, string) (*domain.InventoryItem, error) {
			return item, nil
		},
	}
	env := newTestEnv(items, &fakeSaleRecordRepository{})
	router := newItemRouter(env)

	body := []byte(`{"units":3}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/"+item.ItemID+"/restock", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRestockSyncsListedChannels(t *testing.T) {
	item := newTestItem(t, 2, true)
	item.ChannelRefs.MarketListingRef = "mk-listing-1"
	item.ListingStates[string(domain.ChannelMarketplace)] = domain.ListingListed
	require.NoError(t, item.ApplyDecrement(2, "pos:TXN-1", domain.ChannelPOS))
	item.ClearDomainEvents()

	items := &fakeItemRepository{
		findByItemIDFn: func(context.Context, string) (*domain.InventoryItem, error) {
			return item, nil
		},
	}
	var pushedQuantity int
	market := &fakeAdapter{
		name: domain.ChannelMarketplace,
		updateQuantityFn: func(_ context.Context, _ *domain.InventoryItem, quantity int) error {
			pushedQuantity = quantity
			return nil
		},
	}
	env := newTestEnv(items, &fakeSaleRecordRepository{}, market)
	router := newItemRouter(env)

	body := []byte(`{"units":3}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/"+item.ItemID+"/restock", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 3, item.Quantity)
	require.Equal(t, 3, pushedQuantity, "marketplace must receive the replenished quantity")
}

func TestListItemsSellerFilter(t *testing.T) {
	items := &fakeItemRepository{
		findBySellerIDFn: func(_ context.Context, sellerID string, _ domain.Pagination) ([]*domain.InventoryItem, error) {
			require.Equal(t, "SLR-001", sellerID)
			return []*domain.InventoryItem{newTestItem(t, 1, false)}, nil
		},
	}
	env := newTestEnv(items, &fakeSaleRecordRepository{})
	router := newItemRouter(env)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items?sellerId=SLR-001", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "SLR-001")
}

func TestRetryRemoval(t *testing.T) {
	item := newTestItem(t, 1, false)
	item.ChannelRefs.MarketListingRef = "mk-listing-1"
	item.ListingStates[string(domain.ChannelMarketplace)] = domain.ListingListed
	require.NoError(t, item.ApplyDecrement(1, "marketplace:ORD-1", domain.ChannelMarketplace))
	item.FlagRemovalIncomplete()
	item.ClearDomainEvents()

	items := &fakeItemRepository{
		findByItemIDFn: func(context.Context, string) (*domain.InventoryItem, error) {
			return item, nil
		},
		saveFn: func(context.Context, *domain.InventoryItem) error { return nil },
	}
	market := &fakeAdapter{
		name:       domain.ChannelMarketplace,
		withdrawFn: func(context.Context, *domain.InventoryItem) error { return nil },
	}
	env := newTestEnv(items, &fakeSaleRecordRepository{}, market)
	router := newItemRouter(env)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/"+item.ItemID+"/retry-removal", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.False(t, item.RemovalIncomplete)
	require.Equal(t, domain.ListingWithdrawn, item.ListingStates[string(domain.ChannelMarketplace)])
}

func TestGetItemSales(t *testing.T) {
	item := newTestItem(t, 1, false)
	items := &fakeItemRepository{
		findByItemIDFn: func(context.Context, string) (*domain.InventoryItem, error) {
			return item, nil
		},
	}
	sales := &fakeSaleRecordRepository{
		findByItemIDFn: func(_ context.Context, itemID string) ([]*domain.SaleRecord, error) {
			require.Equal(t, item.ItemID, itemID)
			return []*domain.SaleRecord{{ItemID: itemID, TransactionID: "pos:TXN-1", UnitIndex: 0}}, nil
		},
	}
	env := newTestEnv(items, sales)
	router := newItemRouter(env)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items/"+item.ItemID+"/sales", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "pos:TXN-1")
}
