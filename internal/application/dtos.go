package application

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopline-platform/reconciliation-service/internal/domain"
)

// IntakeItemCommand creates a new inventory item
type IntakeItemCommand struct {
	Code         string          `json:"code" binding:"required"`
	Name         string          `json:"name" binding:"required"`
	Category     string          `json:"category" binding:"required"`
	SellerID     string          `json:"sellerId" binding:"required"`
	Quantity     int             `json:"quantity" binding:"required,min=1"`
	IsSmallBatch bool            `json:"isSmallBatch"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
}

// RestockItemCommand replenishes a small-batch item
type RestockItemCommand struct {
	Units int `json:"units" binding:"required,min=1"`
}

// PublishItemCommand lists an item on channels
type PublishItemCommand struct {
	// Channels defaults to every registered channel when empty
	Channels []string `json:"channels"`
}

// SaleApplication is the outcome of applying one transaction line to one item
type SaleApplication struct {
	Applied   bool
	Duplicate bool
	Item      *domain.InventoryItem
	UnitsSold int
}

// SoldOut reports whether this application exhausted the item
func (a *SaleApplication) SoldOut() bool {
	return a.Applied && a.Item != nil && a.Item.Quantity == 0
}

// ChannelFailure records one failed withdrawal during removal
type ChannelFailure struct {
	Channel   domain.ChannelName `json:"channel"`
	Retryable bool               `json:"retryable"`
	Error     string             `json:"error"`
}

// RemovalResult summarizes one cross-channel removal attempt
type RemovalResult struct {
	Attempted []domain.ChannelName `json:"attempted"`
	Withdrawn []domain.ChannelName `json:"withdrawn"`
	Failures  []ChannelFailure     `json:"failures"`
	Removed   bool                 `json:"removed"`
}

// Complete reports whether every attempted withdrawal succeeded
func (r *RemovalResult) Complete() bool {
	return len(r.Failures) == 0
}

// PipelineResult aggregates outcomes over one transaction's line items
type PipelineResult struct {
	Lines              int
	Applied            int
	Duplicates         int
	Unmatched          int
	CategoryMismatched int
}

// Add merges counts from another result
func (r *PipelineResult) Add(other PipelineResult) {
	r.Lines += other.Lines
	r.Applied += other.Applied
	r.Duplicates += other.Duplicates
	r.Unmatched += other.Unmatched
	r.CategoryMismatched += other.CategoryMismatched
}

// ReconcileResult summarizes one batch reconciliation run
type ReconcileResult struct {
	Channel            domain.ChannelName `json:"channel"`
	WindowStart        time.Time          `json:"windowStart"`
	WindowEnd          time.Time          `json:"windowEnd"`
	Transactions       int                `json:"transactions"`
	Lines              int                `json:"lines"`
	Applied            int                `json:"applied"`
	Duplicates         int                `json:"duplicates"`
	Unmatched          int                `json:"unmatched"`
	CategoryMismatched int                `json:"categoryMismatched"`
	Failures           int                `json:"failures"`
	StartedAt          time.Time          `json:"startedAt"`
	FinishedAt         time.Time          `json:"finishedAt"`
}

// ItemDTO is the API representation of an inventory item
type ItemDTO struct {
	ItemID            string             `json:"itemId"`
	Code              string             `json:"code"`
	Name              string             `json:"name"`
	Category          string             `json:"category"`
	SellerID          string             `json:"sellerId"`
	Quantity          int                `json:"quantity"`
	IsSmallBatch      bool               `json:"isSmallBatch"`
	State             string             `json:"state"`
	Price             decimal.Decimal    `json:"price"`
	Currency          string             `json:"currency"`
	ChannelRefs       domain.ChannelRefs `json:"channelRefs"`
	ListingStates     map[string]string  `json:"listingStates"`
	RemovalIncomplete bool               `json:"removalIncomplete"`
	SoldAt            *time.Time         `json:"soldAt,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// ToItemDTO converts an item aggregate to its API representation
func ToItemDTO(item *domain.InventoryItem) *ItemDTO {
	listingStates := make(map[string]string, len(item.ListingStates))
	for channel, state := range item.ListingStates {
		listingStates[channel] = string(state)
	}

	return &ItemDTO{
		ItemID:            item.ItemID,
		Code:              item.Code,
		Name:              item.Name,
		Category:          item.Category,
		SellerID:          item.SellerID,
		Quantity:          item.Quantity,
		IsSmallBatch:      item.IsSmallBatch,
		State:             string(item.State),
		Price:             item.Price,
		Currency:          item.Currency,
		ChannelRefs:       item.ChannelRefs,
		ListingStates:     listingStates,
		RemovalIncomplete: item.RemovalIncomplete,
		SoldAt:            item.SoldAt,
		CreatedAt:         item.CreatedAt,
		UpdatedAt:         item.UpdatedAt,
	}
}

// SaleRecordDTO is the API representation of a sale record
type SaleRecordDTO struct {
	ItemID        string          `json:"itemId"`
	Code          string          `json:"code"`
	TransactionID string          `json:"transactionId"`
	UnitIndex     int             `json:"unitIndex"`
	Channel       string          `json:"channel"`
	RealizedPrice decimal.Decimal `json:"realizedPrice"`
	Currency      string          `json:"currency"`
	SoldAt        time.Time       `json:"soldAt"`
}

// ToSaleRecordDTO converts a sale record to its API representation
func ToSaleRecordDTO(record *domain.SaleRecord) *SaleRecordDTO {
	return &SaleRecordDTO{
		ItemID:        record.ItemID,
		Code:          record.Code,
		TransactionID: record.TransactionID,
		UnitIndex:     record.UnitIndex,
		Channel:       string(record.Channel),
		RealizedPrice: record.RealizedPrice,
		Currency:      record.Currency,
		SoldAt:        record.SoldAt,
	}
}
