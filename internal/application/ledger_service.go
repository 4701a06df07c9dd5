package application

import (
	"context"
	"time"

	"github.com/shopline-platform/reconciliation-service/internal/domain"
	"github.com/shopline-platform/reconciliation-service/pkg/logging"
	"github.com/shopline-platform/reconciliation-service/pkg/metrics"
)

// LedgerService owns the authoritative quantity and state of inventory
// items. Sale application is idempotent: the sale record storage enforces
// uniqueness over (itemId, transactionId, unitIndex), so replayed deliveries
// insert nothing and decrement nothing.
type LedgerService struct {
	items   domain.ItemRepository
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	items domain.ItemRepository,
	logger *logging.Logger,
	m *metrics.Metrics,
) *LedgerService {
	return &LedgerService{
		items:   items,
		logger:  logger.WithComponent("ledger"),
		metrics: m,
	}
}

// ApplySale applies one transaction line to an item. The decremented item,
// its events and the per-unit sale records go through one storage
// transaction, so a crash can never leave records inserted with the
// decrement lost. A duplicate delivery aborts the transaction, writes
// nothing and reports Duplicate=true with the item as currently stored.
func (s *LedgerService) ApplySale(ctx context.Context, item *domain.InventoryItem, tx *domain.ExternalTransaction, line domain.TransactionLineItem) (*SaleApplication, error) {
	records := domain.NewSaleRecords(item, tx, line)

	before := item.Quantity
	if err := item.ApplyDecrement(line.Quantity, tx.TransactionID, tx.Channel); err != nil {
		return nil, err
	}
	unitsSold := before - item.Quantity

	item.AddDomainEvent(&domain.SaleAppliedEvent{
		ItemID:        item.ItemID,
		Code:          item.Code,
		TransactionID: tx.TransactionID,
		Channel:       tx.Channel,
		UnitsSold:     unitsSold,
		Remaining:     item.Quantity,
		AppliedAt:     time.Now().UTC(),
	})

	inserted, err := s.items.SaveWithSaleRecords(ctx, item, records)
	if err != nil {
		return nil, err
	}
	if !inserted {
		if s.metrics != nil {
			s.metrics.RecordSaleApplied(string(tx.Channel), "duplicate")
		}
		s.logger.WithFields(map[string]any{
			"itemId":        item.ItemID,
			"transactionId": tx.TransactionID,
		}).Info("transaction already applied, skipping")

		// The aborted transaction discarded the in-memory decrement;
		// report the stored state instead.
		stored, err := s.items.FindByItemID(ctx, item.ItemID)
		if err != nil {
			return nil, err
		}
		return &SaleApplication{Duplicate: true, Item: stored}, nil
	}

	if s.metrics != nil {
		s.metrics.RecordSaleApplied(string(tx.Channel), "applied")
	}
	s.logger.WithFields(map[string]any{
		"itemId":        item.ItemID,
		"code":          item.Code,
		"transactionId": tx.TransactionID,
		"channel":       string(tx.Channel),
		"unitsSold":     unitsSold,
		"remaining":     item.Quantity,
		"state":         string(item.State),
	}).Info("sale applied")

	return &SaleApplication{
		Applied:   true,
		Item:      item,
		UnitsSold: unitsSold,
	}, nil
}

// Restock replenishes a small-batch item that reached zero
func (s *LedgerService) Restock(ctx context.Context, itemID string, units int) (*domain.InventoryItem, error) {
	item, err := s.items.FindByItemID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if err := item.Restock(units); err != nil {
		return nil, err
	}

	if err := s.items.Save(ctx, item); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]any{
		"itemId":   item.ItemID,
		"units":    units,
		"quantity": item.Quantity,
	}).Info("item restocked")

	return item, nil
}
