package application

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopline-platform/reconciliation-service/internal/domain"
	apperrors "github.com/shopline-platform/reconciliation-service/pkg/errors"
)

func TestIntakeItem(t *testing.T) {
	t.Run("Creates item", func(t *testing.T) {
		var saved *domain.InventoryItem
		items := &fakeItemRepository{saveFn: func(ctx context.Context, item *domain.InventoryItem) error {
			saved = item
			return nil
		}}

		service := NewInventoryService(items, &fakeSaleRecordRepository{}, newFactory(), testLogger())
		dto, err := service.IntakeItem(context.Background(), IntakeItemCommand{
			Code:     "AB12",
			Name:     "Wool coat",
			Category: "clothing",
			SellerID: "SLR-001",
			Quantity: 1,
			Price:    decimal.NewFromFloat(48.50),
			Currency: "EUR",
		})
		require.NoError(t, err)

		assert.Equal(t, "AB12", dto.Code)
		assert.Equal(t, "active", dto.State)
		require.NotNil(t, saved)
		assert.Equal(t, dto.ItemID, saved.ItemID)
	})

	t.Run("Validation failure", func(t *testing.T) {
		service := NewInventoryService(&fakeItemRepository{}, &fakeSaleRecordRepository{}, newFactory(), testLogger())
		_, err := service.IntakeItem(context.Background(), IntakeItemCommand{Name: "No code", Quantity: 1})
		require.Error(t, err)

		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.CodeValidationError, appErr.Code)
	})
}

func TestPublishItem(t *testing.T) {
	t.Run("Publishes on all registered channels", func(t *testing.T) {
		item := newTestItem(t, 1, false)
		items := &fakeItemRepository{
			findByItemIDFn: func(ctx context.Context, itemID string) (*domain.InventoryItem, error) {
				return item, nil
			},
		}

		pos := &fakeAdapter{name: domain.ChannelPOS, publishFn: func(ctx context.Context, item *domain.InventoryItem) (domain.ChannelRefs, error) {
			return domain.ChannelRefs{POSItemRef: "OBJ-1", POSVariationRef: "VAR-1"}, nil
		}}
		market := &fakeAdapter{name: domain.ChannelMarketplace, publishFn: func(ctx context.Context, item *domain.InventoryItem) (domain.ChannelRefs, error) {
			return domain.ChannelRefs{MarketListingRef: "LST-1", MarketOfferRef: "OFF-1"}, nil
		}}

		service := NewInventoryService(items, &fakeSaleRecordRepository{}, newFactory(pos, market), testLogger())
		dto, err := service.PublishItem(context.Background(), item.ItemID, PublishItemCommand{})
		require.NoError(t, err)

		assert.Equal(t, "listed", dto.ListingStates["pos"])
		assert.Equal(t, "listed", dto.ListingStates["marketplace"])
		assert.Equal(t, "OBJ-1", item.ChannelRefs.POSItemRef)
		assert.Equal(t, "OFF-1", item.ChannelRefs.MarketOfferRef)
	})

	t.Run("Sold item cannot be published", func(t *testing.T) {
		item := newTestItem(t, 1, false)
		require.NoError(t, item.ApplyDecrement(1, "TXN-1", domain.ChannelPOS))

		items := &fakeItemRepository{
			findByItemIDFn: func(ctx context.Context, itemID string) (*domain.InventoryItem, error) {
				return item, nil
			},
		}

		service := NewInventoryService(items, &fakeSaleRecordRepository{}, newFactory(), testLogger())
		_, err := service.PublishItem(context.Background(), item.ItemID, PublishItemCommand{})
		require.Error(t, err)

		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.CodeConflict, appErr.Code)
	})

	t.Run("Unknown channel rejected", func(t *testing.T) {
		item := newTestItem(t, 1, false)
		items := &fakeItemRepository{
			findByItemIDFn: func(ctx context.Context, itemID string) (*domain.InventoryItem, error) {
				return item, nil
			},
		}

		service := NewInventoryService(items, &fakeSaleRecordRepository{}, newFactory(), testLogger())
		_, err := service.PublishItem(context.Background(), item.ItemID, PublishItemCommand{Channels: []string{"fax"}})
		require.Error(t, err)
	})

	t.Run("Adapter failure propagates", func(t *testing.T) {
		item := newTestItem(t, 1, false)
		items := &fakeItemRepository{
			findByItemIDFn: func(ctx context.Context, itemID string) (*domain.InventoryItem, error) {
				return item, nil
			},
		}

		pos := &fakeAdapter{name: domain.ChannelPOS, publishFn: func(ctx context.Context, item *domain.InventoryItem) (domain.ChannelRefs, error) {
			return domain.ChannelRefs{}, domain.NewChannelError(domain.ChannelPOS, "publish", domain.FailureRetryable, errUnexpected)
		}}

		service := NewInventoryService(items, &fakeSaleRecordRepository{}, newFactory(pos), testLogger())
		_, err := service.PublishItem(context.Background(), item.ItemID, PublishItemCommand{Channels: []string{"pos"}})
		assert.True(t, domain.IsRetryable(err))
	})
}

func TestGetItemSales(t *testing.T) {
	item := newTestItem(t, 1, false)
	tx := posTransaction(1)
	records := domain.NewSaleRecords(item, tx, tx.LineItems[0])

	items := &fakeItemRepository{
		findByItemIDFn: func(ctx context.Context, itemID string) (*domain.InventoryItem, error) {
			return item, nil
		},
	}
	sales := &fakeSaleRecordRepository{
		findByItemIDFn: func(ctx context.Context, itemID string) ([]*domain.SaleRecord, error) {
			return records, nil
		},
	}

	service := NewInventoryService(items, sales, newFactory(), testLogger())
	dtos, err := service.GetItemSales(context.Background(), item.ItemID)
	require.NoError(t, err)
	require.Len(t, dtos, 1)
	assert.Equal(t, "pos:TXN-1", dtos[0].TransactionID)
}

func TestListItems(t *testing.T) {
	t.Run("Lists all items", func(t *testing.T) {
		items := &fakeItemRepository{
			listFn: func(ctx context.Context, p domain.Pagination) ([]*domain.InventoryItem, error) {
				return []*domain.InventoryItem{newTestItem(t, 1, false)}, nil
			},
		}

		service := NewInventoryService(items, &fakeSaleRecordRepository{}, newFactory(), testLogger())
		dtos, err := service.ListItems(context.Background(), "", domain.DefaultPagination())
		require.NoError(t, err)
		require.Len(t, dtos, 1)
	})

	t.Run("Seller filter narrows the listing", func(t *testing.T) {
		items := &fakeItemRepository{
			findBySellerIDFn: func(ctx context.Context, sellerID string, p domain.Pagination) ([]*domain.InventoryItem, error) {
				assert.Equal(t, "SLR-001", sellerID)
				return []*domain.InventoryItem{newTestItem(t, 1, false)}, nil
			},
		}

		service := NewInventoryService(items, &fakeSaleRecordRepository{}, newFactory(), testLogger())
		dtos, err := service.ListItems(context.Background(), "SLR-001", domain.DefaultPagination())
		require.NoError(t, err)
		require.Len(t, dtos, 1)
		assert.Equal(t, "SLR-001", dtos[0].SellerID)
	})
}

func TestGetTransactionSales(t *testing.T) {
	item := newTestItem(t, 1, false)
	tx := posTransaction(1)
	records := domain.NewSaleRecords(item, tx, tx.LineItems[0])

	sales := &fakeSaleRecordRepository{
		findByTransactionIDFn: func(ctx context.Context, transactionID string) ([]*domain.SaleRecord, error) {
			assert.Equal(t, "pos:TXN-1", transactionID)
			return records, nil
		},
	}

	service := NewInventoryService(&fakeItemRepository{}, sales, newFactory(), testLogger())
	dtos, err := service.GetTransactionSales(context.Background(), "pos:TXN-1")
	require.NoError(t, err)
	require.Len(t, dtos, 1)
	assert.Equal(t, item.ItemID, dtos[0].ItemID)
}

func TestListRemovalIncomplete(t *testing.T) {
	flagged := newTestItem(t, 1, false)
	flagged.FlagRemovalIncomplete()

	items := &fakeItemRepository{
		findRemovalIncompleteFn: func(ctx context.Context, p domain.Pagination) ([]*domain.InventoryItem, error) {
			return []*domain.InventoryItem{flagged}, nil
		},
	}

	service := NewInventoryService(items, &fakeSaleRecordRepository{}, newFactory(), testLogger())
	dtos, err := service.ListRemovalIncomplete(context.Background(), domain.DefaultPagination())
	require.NoError(t, err)
	require.Len(t, dtos, 1)
	assert.True(t, dtos[0].RemovalIncomplete)
}
