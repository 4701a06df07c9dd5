package domain

import (
	"context"
)

// ItemRepository defines the interface for inventory item persistence
type ItemRepository interface {
	// Save persists an item and its pending domain events atomically
	Save(ctx context.Context, item *InventoryItem) error

	// SaveWithSaleRecords persists the item, its pending domain events and
	// the per-unit sale records in one transaction. A duplicate key on the
	// (itemId, transactionId, unitIndex) index means the transaction was
	// already applied; SaveWithSaleRecords reports that as (false, nil) and
	// writes nothing.
	SaveWithSaleRecords(ctx context.Context, item *InventoryItem, records []*SaleRecord) (bool, error)

	// FindByItemID retrieves an item by its internal identifier
	FindByItemID(ctx context.Context, itemID string) (*InventoryItem, error)

	// FindByPOSVariationRef retrieves the item holding a POS variation reference
	FindByPOSVariationRef(ctx context.Context, ref string) (*InventoryItem, error)

	// FindByPOSItemRef retrieves the item holding a POS item reference
	FindByPOSItemRef(ctx context.Context, ref string) (*InventoryItem, error)

	// FindByMarketListingRef retrieves the item holding a marketplace listing reference
	FindByMarketListingRef(ctx context.Context, ref string) (*InventoryItem, error)

	// FindByCode retrieves all items sharing a code, most recent first.
	// Codes are not guaranteed unique across intake batches.
	FindByCode(ctx context.Context, code string) ([]*InventoryItem, error)

	// FindRemovalIncomplete retrieves items flagged for manual reconciliation
	FindRemovalIncomplete(ctx context.Context, pagination Pagination) ([]*InventoryItem, error)

	// FindBySellerID retrieves a seller's items
	FindBySellerID(ctx context.Context, sellerID string, pagination Pagination) ([]*InventoryItem, error)

	// List retrieves items, most recent first
	List(ctx context.Context, pagination Pagination) ([]*InventoryItem, error)

	// Count returns the number of items
	Count(ctx context.Context) (int64, error)
}

// SaleRecordRepository defines the interface for the append-only sale log
type SaleRecordRepository interface {
	// FindByItemID retrieves an item's sale history, most recent first
	FindByItemID(ctx context.Context, itemID string) ([]*SaleRecord, error)

	// FindByTransactionID retrieves all records of one transaction
	FindByTransactionID(ctx context.Context, transactionID string) ([]*SaleRecord, error)
}

// Pagination represents pagination options
type Pagination struct {
	Page     int64
	PageSize int64
}

// DefaultPagination returns default pagination options
func DefaultPagination() Pagination {
	return Pagination{
		Page:     1,
		PageSize: 20,
	}
}

// Skip returns the number of documents to skip
func (p Pagination) Skip() int64 {
	return (p.Page - 1) * p.PageSize
}

// Limit returns the maximum number of documents to return
func (p Pagination) Limit() int64 {
	return p.PageSize
}
