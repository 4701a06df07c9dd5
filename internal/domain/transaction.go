package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExternalTransaction is a completed sale reported by a channel, either via
// webhook or via batch polling. Both paths normalize into this shape before
// entering the reconciliation pipeline.
type ExternalTransaction struct {
	// TransactionID is the channel's own identifier for the transaction,
	// namespaced by channel so identifiers cannot collide across channels.
	TransactionID string                `json:"transactionId"`
	Channel       ChannelName           `json:"channel"`
	CompletedAt   time.Time             `json:"completedAt"`
	LineItems     []TransactionLineItem `json:"lineItems"`
}

// TransactionLineItem is one line of an external transaction. The channel
// references and the free-text name are the raw material for identifier
// resolution.
type TransactionLineItem struct {
	// POSVariationRef and POSItemRef are set by the point-of-sale channel
	POSVariationRef string `json:"posVariationRef,omitempty"`
	POSItemRef      string `json:"posItemRef,omitempty"`
	// MarketListingRef is set by the marketplace channel
	MarketListingRef string `json:"marketListingRef,omitempty"`

	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Currency  string          `json:"currency"`
}
