package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SaleRecord is one unit of an item sold in one external transaction. It is
// append-only; the storage layer enforces a unique index over
// (itemId, transactionId, unitIndex), which is what makes sale application
// idempotent under at-least-once delivery.
type SaleRecord struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	ItemID        string             `bson:"itemId" json:"itemId"`
	Code          string             `bson:"code" json:"code"`
	TransactionID string             `bson:"transactionId" json:"transactionId"`
	// UnitIndex distinguishes records when a single transaction sells
	// several units of the same small-batch item.
	UnitIndex     int             `bson:"unitIndex" json:"unitIndex"`
	Channel       ChannelName     `bson:"channel" json:"channel"`
	RealizedPrice decimal.Decimal `bson:"realizedPrice" json:"realizedPrice"`
	Currency      string          `bson:"currency" json:"currency"`
	SoldAt        time.Time       `bson:"soldAt" json:"soldAt"`
	RecordedAt    time.Time       `bson:"recordedAt" json:"recordedAt"`
}

// NewSaleRecords builds one SaleRecord per unit sold, sharing the item,
// transaction and realized unit price.
func NewSaleRecords(item *InventoryItem, tx *ExternalTransaction, line TransactionLineItem) []*SaleRecord {
	records := make([]*SaleRecord, 0, line.Quantity)
	for unit := 0; unit < line.Quantity; unit++ {
		records = append(records, &SaleRecord{
			ID:            primitive.NewObjectID(),
			ItemID:        item.ItemID,
			Code:          item.Code,
			TransactionID: tx.TransactionID,
			UnitIndex:     unit,
			Channel:       tx.Channel,
			RealizedPrice: line.UnitPrice,
			Currency:      line.Currency,
			SoldAt:        tx.CompletedAt,
			RecordedAt:    time.Now().UTC(),
		})
	}
	return records
}
