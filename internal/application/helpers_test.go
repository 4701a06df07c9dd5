package application

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/shopline-platform/reconciliation-service/internal/domain"
	"github.com/shopline-platform/reconciliation-service/pkg/logging"
)

var errUnexpected = errors.New("unexpected call")

func testLogger() *logging.Logger {
	config := logging.DefaultConfig("application-test")
	config.Level = logging.LevelError
	config.Output = io.Discard
	return logging.New(config)
}

// fakeItemRepository is a function-field test double for domain.ItemRepository
type fakeItemRepository struct {
	saveFn                   func(ctx context.Context, item *domain.InventoryItem) error
	saveWithSaleRecordsFn    func(ctx context.Context, item *domain.InventoryItem, records []*domain.SaleRecord) (bool, error)
	findByItemIDFn           func(ctx context.Context, itemID string) (*domain.InventoryItem, error)
	findByPOSVariationRefFn  func(ctx context.Context, ref string) (*domain.InventoryItem, error)
	findByPOSItemRefFn       func(ctx context.Context, ref string) (*domain.InventoryItem, error)
	findByMarketListingRefFn func(ctx context.Context, ref string) (*domain.InventoryItem, error)
	findByCodeFn             func(ctx context.Context, code string) ([]*domain.InventoryItem, error)
	findRemovalIncompleteFn  func(ctx context.Context, p domain.Pagination) ([]*domain.InventoryItem, error)
	findBySellerIDFn         func(ctx context.Context, sellerID string, p domain.Pagination) ([]*domain.InventoryItem, error)
	listFn                   func(ctx context.Context, p domain.Pagination) ([]*domain.InventoryItem, error)
}

func (f *fakeItemRepository) Save(ctx context.Context, item *domain.InventoryItem) error {
	if f.saveFn == nil {
		return nil
	}
	return f.saveFn(ctx, item)
}

func (f *fakeItemRepository) SaveWithSaleRecords(ctx context.Context, item *domain.InventoryItem, records []*domain.SaleRecord) (bool, error) {
	if f.saveWithSaleRecordsFn == nil {
		return true, nil
	}
	return f.saveWithSaleRecordsFn(ctx, item, records)
}

func (f *fakeItemRepository) FindByItemID(ctx context.Context, itemID string) (*domain.InventoryItem, error) {
	if f.findByItemIDFn == nil {
		return nil, errUnexpected
	}
	return f.findByItemIDFn(ctx, itemID)
}

func (f *fakeItemRepository) FindByPOSVariationRef(ctx context.Context, ref string) (*domain.InventoryItem, error) {
	if f.findByPOSVariationRefFn == nil {
		return nil, domain.ErrItemNotFound
	}
	return f.findByPOSVariationRefFn(ctx, ref)
}

func (f *fakeItemRepository) FindByPOSItemRef(ctx context.Context, ref string) (*domain.InventoryItem, error) {
	if f.findByPOSItemRefFn == nil {
		return nil, domain.ErrItemNotFound
	}
	return f.findByPOSItemRefFn(ctx, ref)
}

func (f *fakeItemRepository) FindByMarketListingRef(ctx context.Context, ref string) (*domain.InventoryItem, error) {
	if f.findByMarketListingRefFn == nil {
		return nil, domain.ErrItemNotFound
	}
	return f.findByMarketListingRefFn(ctx, ref)
}

func (f *fakeItemRepository) FindByCode(ctx context.Context, code string) ([]*domain.InventoryItem, error) {
	if f.findByCodeFn == nil {
		return nil, nil
	}
	return f.findByCodeFn(ctx, code)
}

func (f *fakeItemRepository) FindRemovalIncomplete(ctx context.Context, p domain.Pagination) ([]*domain.InventoryItem, error) {
	if f.findRemovalIncompleteFn == nil {
		return nil, errUnexpected
	}
	return f.findRemovalIncompleteFn(ctx, p)
}

func (f *fakeItemRepository) FindBySellerID(ctx context.Context, sellerID string, p domain.Pagination) ([]*domain.InventoryItem, error) {
	if f.findBySellerIDFn == nil {
		return nil, errUnexpected
	}
	return f.findBySellerIDFn(ctx, sellerID, p)
}

func (f *fakeItemRepository) List(ctx context.Context, p domain.Pagination) ([]*domain.InventoryItem, error) {
	if f.listFn == nil {
		return nil, errUnexpected
	}
	return f.listFn(ctx, p)
}

func (f *fakeItemRepository) Count(ctx context.Context) (int64, error) {
	return 0, errUnexpected
}

// fakeSaleRecordRepository is a function-field test double for
// domain.SaleRecordRepository
type fakeSaleRecordRepository struct {
	findByItemIDFn        func(ctx context.Context, itemID string) ([]*domain.SaleRecord, error)
	findByTransactionIDFn func(ctx context.Context, transactionID string) ([]*domain.SaleRecord, error)
}

func (f *fakeSaleRecordRepository) FindByItemID(ctx context.Context, itemID string) ([]*domain.SaleRecord, error) {
	if f.findByItemIDFn == nil {
		return nil, errUnexpected
	}
	return f.findByItemIDFn(ctx, itemID)
}

func (f *fakeSaleRecordRepository) FindByTransactionID(ctx context.Context, transactionID string) ([]*domain.SaleRecord, error) {
	if f.findByTransactionIDFn == nil {
		return nil, errUnexpected
	}
	return f.findByTransactionIDFn(ctx, transactionID)
}

// fakeAdapter is a function-field test double for domain.ChannelAdapter
type fakeAdapter struct {
	name             domain.ChannelName
	publishFn        func(ctx context.Context, item *domain.InventoryItem) (domain.ChannelRefs, error)
	withdrawFn       func(ctx context.Context, item *domain.InventoryItem) error
	updateQuantityFn func(ctx context.Context, item *domain.InventoryItem, quantity int) error
	fetchFn          func(ctx context.Context, windowStart, windowEnd time.Time) ([]*domain.ExternalTransaction, error)
}

func (f *fakeAdapter) Name() domain.ChannelName {
	return f.name
}

func (f *fakeAdapter) Publish(ctx context.Context, item *domain.InventoryItem) (domain.ChannelRefs, error) {
	if f.publishFn == nil {
		return domain.ChannelRefs{}, errUnexpected
	}
	return f.publishFn(ctx, item)
}

func (f *fakeAdapter) Withdraw(ctx context.Context, item *domain.InventoryItem) error {
	if f.withdrawFn == nil {
		return errUnexpected
	}
	return f.withdrawFn(ctx, item)
}

func (f *fakeAdapter) UpdateQuantity(ctx context.Context, item *domain.InventoryItem, quantity int) error {
	if f.updateQuantityFn == nil {
		return errUnexpected
	}
	return f.updateQuantityFn(ctx, item, quantity)
}

func (f *fakeAdapter) FetchCompletedTransactions(ctx context.Context, windowStart, windowEnd time.Time) ([]*domain.ExternalTransaction, error) {
	if f.fetchFn == nil {
		return nil, errUnexpected
	}
	return f.fetchFn(ctx, windowStart, windowEnd)
}

func newFactory(adapters ...domain.ChannelAdapter) *domain.AdapterFactory {
	factory := domain.NewAdapterFactory()
	for _, adapter := range adapters {
		factory.Register(adapter)
	}
	return factory
}

func newTestItem(t *testing.T, quantity int, isSmallBatch bool) *domain.InventoryItem {
	t.Helper()
	item, err := domain.NewInventoryItem("AB12", "Wool coat", "clothing", "SLR-001", quantity, isSmallBatch)
	require.NoError(t, err)
	item.SetPrice(decimal.NewFromFloat(48.50), "EUR")
	item.ClearDomainEvents()
	return item
}

func posTransaction(quantity int) *domain.ExternalTransaction {
	return &domain.ExternalTransaction{
		TransactionID: "pos:TXN-1",
		Channel:       domain.ChannelPOS,
		CompletedAt:   time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		LineItems: []domain.TransactionLineItem{
			{
				Name:      "AB12 - Wool Coat",
				Quantity:  quantity,
				UnitPrice: decimal.NewFromFloat(48.50),
				Currency:  "EUR",
			},
		},
	}
}
