package handlers

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/shopline-platform/reconciliation-service/internal/application"
	"github.com/shopline-platform/reconciliation-service/internal/domain"
	"github.com/shopline-platform/reconciliation-service/internal/resolver"
	"github.com/shopline-platform/reconciliation-service/pkg/logging"
	"github.com/shopline-platform/reconciliation-service/pkg/metrics"
)

var errUnexpected = errors.New("unexpected call")

func testLogger() *logging.Logger {
	config := logging.DefaultConfig("handlers-test")
	config.Level = logging.LevelError
	config.Output = io.Discard
	return logging.New(config)
}

func testMetrics() *metrics.Metrics {
	return metrics.New(metrics.DefaultConfig("handlers-test"))
}

type fakeItemRepository struct {
	saveFn                  func(context.Context, *domain.InventoryItem) error
	saveWithSaleRecordsFn   func(context.Context, *domain.InventoryItem, []*domain.SaleRecord) (bool, error)
	findByItemIDFn          func(context.Context, string) (*domain.InventoryItem, error)
	findByPOSVariationRefFn func(context.Context, string) (*domain.InventoryItem, error)
	findByPOSItemRefFn      func(context.Context, string) (*domain.InventoryItem, error)
	findByMarketListingFn   func(context.Context, string) (*domain.InventoryItem, error)
	findByCodeFn            func(context.Context, string) ([]*domain.InventoryItem, error)
	findRemovalIncompleteFn func(context.Context, domain.Pagination) ([]*domain.InventoryItem, error)
	findBySellerIDFn        func(context.Context, string, domain.Pagination) ([]*domain.InventoryItem, error)
	listFn                  func(context.Context, domain.Pagination) ([]*domain.InventoryItem, error)
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
	if f.findByMarketListingFn == nil {
		return nil, domain.ErrItemNotFound
	}
	return f.findByMarketListingFn(ctx, ref)
}

func (f *fakeItemRepository) FindByCode(ctx context.Context, code string) ([]*domain.InventoryItem, error) {
	if f.findByCodeFn == nil {
		return nil, nil
	}
	return f.findByCodeFn(ctx, code)
}

func (f *fakeItemRepository) FindRemovalIncomplete(ctx context.Context, pagination domain.Pagination) ([]*domain.InventoryItem, error) {
	if f.findRemovalIncompleteFn == nil {
		return nil, errUnexpected
	}
	return f.findRemovalIncompleteFn(ctx, pagination)
}

func (f *fakeItemRepository) FindBySellerID(ctx context.Context, sellerID string, pagination domain.Pagination) ([]*domain.InventoryItem, error) {
	if f.findBySellerIDFn == nil {
		return nil, errUnexpected
	}
	return f.findBySellerIDFn(ctx, sellerID, pagination)
}

func (f *fakeItemRepository) List(ctx context.Context, pagination domain.Pagination) ([]*domain.InventoryItem, error) {
	if f.listFn == nil {
		return nil, errUnexpected
	}
	return f.listFn(ctx, pagination)
}

func (f *fakeItemRepository) Count(context.Context) (int64, error) {
	return 0, errUnexpected
}

type fakeSaleRecordRepository struct {
	findByItemIDFn        func(context.Context, string) ([]*domain.SaleRecord, error)
	findByTransactionIDFn func(context.Context, string) ([]*domain.SaleRecord, error)
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

type fakeAdapter struct {
	name             domain.ChannelName
	publishFn        func(context.Context, *domain.InventoryItem) (domain.ChannelRefs, error)
	withdrawFn       func(context.Context, *domain.InventoryItem) error
	updateQuantityFn func(context.Context, *domain.InventoryItem, int) error
	fetchFn          func(context.Context, time.Time, time.Time) ([]*domain.ExternalTransaction, error)
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

func (f *fakeAdapter) FetchCompletedTransactions(ctx context.Context, start, end time.Time) ([]*domain.ExternalTransaction, error) {
	if f.fetchFn == nil {
		return nil, errUnexpected
	}
	return f.fetchFn(ctx, start, end)
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
	item.SetPrice(decimal.NewFromInt(120), "EUR")
	item.ClearDomainEvents()
	return item
}

type testEnv struct {
	items        *fakeItemRepository
	sales        *fakeSaleRecordRepository
	factory      *domain.AdapterFactory
	inventory    *application.InventoryService
	ledger       *application.LedgerService
	orchestrator *application.RemovalOrchestrator
	pipeline     *application.SalePipeline
	reconcile    *application.ReconcileService
}

func newTestEnv(items *fakeItemRepository, sales *fakeSaleRecordRepository, adapters ...domain.ChannelAdapter) *testEnv {
	logger := testLogger()
	m := testMetrics()
	factory := newFactory(adapters...)
	ledger := application.NewLedgerService(items, logger, m)
	orchestrator := application.NewRemovalOrchestrator(items, factory, logger, m)
	res := resolver.New(items, resolver.SellerScopes{}, logger)
	pipeline := application.NewSalePipeline(res, ledger, orchestrator, logger, m)
	return &testEnv{
		items:        items,
		sales:        sales,
		factory:      factory,
		inventory:    application.NewInventoryService(items, sales, factory, logger),
		ledger:       ledger,
		orchestrator: orchestrator,
		pipeline:     pipeline,
		reconcile:    application.NewReconcileService(factory, pipeline, logger, m),
	}
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}
