package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Errors for the inventory domain
var (
	ErrItemNotFound        = errors.New("inventory item not found")
	ErrInvalidQuantity     = errors.New("quantity must be positive")
	ErrInvalidCode         = errors.New("item code is required")
	ErrNotSmallBatch       = errors.New("only small-batch items can be restocked")
	ErrNotListed           = errors.New("item is not listed on this channel")
	ErrListingsOutstanding = errors.New("item still has listings pending withdrawal")
	ErrInvalidChannel      = errors.New("invalid channel name")
)

// ChannelName identifies one of the external sales channels
type ChannelName string

const (
	// ChannelPOS is the point-of-sale system's catalog
	ChannelPOS ChannelName = "pos"
	// ChannelMarketplace is the third-party marketplace listing service
	ChannelMarketplace ChannelName = "marketplace"
)

// AllChannels lists every external channel an item can be listed on
var AllChannels = []ChannelName{ChannelPOS, ChannelMarketplace}

// IsValid checks if the channel name is known
func (c ChannelName) IsValid() bool {
	switch c {
	case ChannelPOS, ChannelMarketplace:
		return true
	}
	return false
}

// LifecycleState represents the life stage of an inventory item
type LifecycleState string

const (
	LifecycleActive     LifecycleState = "active"
	LifecycleOutOfStock LifecycleState = "out_of_stock"
	LifecycleSold       LifecycleState = "sold"
	LifecycleRemoved    LifecycleState = "removed"
)

// ListingState represents the per-channel listing state machine:
// NotListed -> Listed -> Withdrawn, with Withdrawn terminal.
type ListingState string

const (
	ListingNotListed ListingState = "not_listed"
	ListingListed    ListingState = "listed"
	ListingWithdrawn ListingState = "withdrawn"
)

// ChannelRefs holds the opaque per-channel references linking an item to
// its external representations. Every field is optional.
type ChannelRefs struct {
	POSItemRef       string `bson:"posItemRef,omitempty" json:"posItemRef,omitempty"`
	POSVariationRef  string `bson:"posVariationRef,omitempty" json:"posVariationRef,omitempty"`
	POSCatalogRef    string `bson:"posCatalogRef,omitempty" json:"posCatalogRef,omitempty"`
	MarketListingRef string `bson:"marketListingRef,omitempty" json:"marketListingRef,omitempty"`
	MarketOfferRef   string `bson:"marketOfferRef,omitempty" json:"marketOfferRef,omitempty"`
}

// HasChannel reports whether any reference exists for the given channel
func (r ChannelRefs) HasChannel(channel ChannelName) bool {
	switch channel {
	case ChannelPOS:
		return r.POSItemRef != "" || r.POSVariationRef != "" || r.POSCatalogRef != ""
	case ChannelMarketplace:
		return r.MarketListingRef != "" || r.MarketOfferRef != ""
	}
	return false
}

// Merge overlays non-empty fields of other onto r
func (r ChannelRefs) Merge(other ChannelRefs) ChannelRefs {
	if other.POSItemRef != "" {
		r.POSItemRef = other.POSItemRef
	}
	if other.POSVariationRef != "" {
		r.POSVariationRef = other.POSVariationRef
	}
	if other.POSCatalogRef != "" {
		r.POSCatalogRef = other.POSCatalogRef
	}
	if other.MarketListingRef != "" {
		r.MarketListingRef = other.MarketListingRef
	}
	if other.MarketOfferRef != "" {
		r.MarketOfferRef = other.MarketOfferRef
	}
	return r
}

// InventoryItem is the aggregate root for one physical unique piece, or one
// logical record for a small fixed batch. It owns the authoritative quantity
// and lifecycle state across all channels.
type InventoryItem struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	ItemID string             `bson:"itemId" json:"itemId"`

	Code     string `bson:"code" json:"code"`
	Name     string `bson:"name" json:"name"`
	Category string `bson:"category" json:"category"`
	SellerID string `bson:"sellerId" json:"sellerId"`

	// Price is the asking price used when listing on channels
	Price    decimal.Decimal `bson:"price" json:"price"`
	Currency string          `bson:"currency" json:"currency"`

	Quantity     int            `bson:"quantity" json:"quantity"`
	IsSmallBatch bool           `bson:"isSmallBatch" json:"isSmallBatch"`
	State        LifecycleState `bson:"state" json:"state"`

	ChannelRefs   ChannelRefs             `bson:"channelRefs" json:"channelRefs"`
	ListingStates map[string]ListingState `bson:"listingStates" json:"listingStates"`

	// RemovalIncomplete marks an item whose cross-channel withdrawal
	// partially failed and needs operational follow-up.
	RemovalIncomplete bool `bson:"removalIncomplete" json:"removalIncomplete"`

	// LastAppliedTransactionID is the idempotency marker: the most recent
	// external transaction applied to this item.
	LastAppliedTransactionID string `bson:"lastAppliedTransactionId,omitempty" json:"lastAppliedTransactionId,omitempty"`

	SoldAt    *time.Time `bson:"soldAt,omitempty" json:"soldAt,omitempty"`
	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time  `bson:"updatedAt" json:"updatedAt"`

	domainEvents []DomainEvent `bson:"-" json:"-"`
}

// NewInventoryItem creates a new InventoryItem at intake time. The
// small-batch classification is captured once here, never re-derived.
func NewInventoryItem(code, name, category, sellerID string, quantity int, isSmallBatch bool) (*InventoryItem, error) {
	if code == "" {
		return nil, ErrInvalidCode
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	now := time.Now().UTC()
	item := &InventoryItem{
		ID:            primitive.NewObjectID(),
		ItemID:        fmt.Sprintf("ITM-%s", uuid.New().String()[:8]),
		Code:          code,
		Name:          name,
		Category:      category,
		SellerID:      sellerID,
		Quantity:      quantity,
		IsSmallBatch:  isSmallBatch,
		State:         LifecycleActive,
		ListingStates: make(map[string]ListingState),
		CreatedAt:     now,
		UpdatedAt:     now,
		domainEvents:  make([]DomainEvent, 0),
	}

	item.addDomainEvent(&ItemIntakenEvent{
		ItemID:    item.ItemID,
		Code:      code,
		SellerID:  sellerID,
		Quantity:  quantity,
		IntakenAt: now,
	})

	return item, nil
}

// ApplyDecrement decrements quantity by unitsSold, floored at zero, and
// advances the lifecycle state when the item reaches zero: unique pieces
// become Sold forever, small-batch items become OutOfStock and may later be
// restocked by intake.
func (i *InventoryItem) ApplyDecrement(unitsSold int, transactionID string, channel ChannelName) error {
	if unitsSold < 1 {
		return ErrInvalidQuantity
	}

	now := time.Now().UTC()
	if unitsSold > i.Quantity {
		unitsSold = i.Quantity
	}
	i.Quantity -= unitsSold
	i.LastAppliedTransactionID = transactionID
	i.UpdatedAt = now

	if i.Quantity == 0 && (i.State == LifecycleActive || i.State == LifecycleOutOfStock) {
		if i.IsSmallBatch {
			i.State = LifecycleOutOfStock
		} else {
			i.State = LifecycleSold
			i.SoldAt = &now
		}

		i.addDomainEvent(&ItemSoldOutEvent{
			ItemID:        i.ItemID,
			Code:          i.Code,
			State:         i.State,
			Channel:       channel,
			TransactionID: transactionID,
			SoldOutAt:     now,
		})
	}

	return nil
}

// SetPrice sets the asking price used when publishing listings
func (i *InventoryItem) SetPrice(price decimal.Decimal, currency string) {
	i.Price = price
	i.Currency = currency
	i.UpdatedAt = time.Now().UTC()
}

// Restock adds units back to a small-batch item that reached zero
func (i *InventoryItem) Restock(units int) error {
	if units < 1 {
		return ErrInvalidQuantity
	}
	if !i.IsSmallBatch {
		return ErrNotSmallBatch
	}

	i.Quantity += units
	if i.State == LifecycleOutOfStock {
		i.State = LifecycleActive
	}
	i.UpdatedAt = time.Now().UTC()
	return nil
}

// ListingStateFor returns the listing state for a channel
func (i *InventoryItem) ListingStateFor(channel ChannelName) ListingState {
	if state, ok := i.ListingStates[string(channel)]; ok {
		return state
	}
	return ListingNotListed
}

// MarkListed records a successful publication on a channel and merges the
// returned channel references into the item.
func (i *InventoryItem) MarkListed(channel ChannelName, refs ChannelRefs) error {
	if !channel.IsValid() {
		return ErrInvalidChannel
	}

	if i.ListingStates == nil {
		i.ListingStates = make(map[string]ListingState)
	}
	i.ListingStates[string(channel)] = ListingListed
	i.ChannelRefs = i.ChannelRefs.Merge(refs)
	i.UpdatedAt = time.Now().UTC()

	i.addDomainEvent(&ListingPublishedEvent{
		ItemID:      i.ItemID,
		Channel:     channel,
		PublishedAt: i.UpdatedAt,
	})

	return nil
}

// MarkWithdrawn records a withdrawal on a channel. Withdrawing an already
// withdrawn listing succeeds; Withdrawn is terminal.
func (i *InventoryItem) MarkWithdrawn(channel ChannelName) error {
	if !channel.IsValid() {
		return ErrInvalidChannel
	}

	switch i.ListingStateFor(channel) {
	case ListingWithdrawn:
		return nil
	case ListingNotListed:
		return ErrNotListed
	}

	if i.ListingStates == nil {
		i.ListingStates = make(map[string]ListingState)
	}
	i.ListingStates[string(channel)] = ListingWithdrawn
	i.UpdatedAt = time.Now().UTC()

	i.addDomainEvent(&ListingWithdrawnEvent{
		ItemID:      i.ItemID,
		Channel:     channel,
		WithdrawnAt: i.UpdatedAt,
	})

	return nil
}

// AllListingsWithdrawn reports whether every channel holding a reference has
// reached the Withdrawn state.
func (i *InventoryItem) AllListingsWithdrawn() bool {
	for _, channel := range AllChannels {
		if !i.ChannelRefs.HasChannel(channel) {
			continue
		}
		if i.ListingStateFor(channel) != ListingWithdrawn {
			return false
		}
	}
	return true
}

// MarkRemoved advances the item to Removed. Allowed only once quantity is
// zero and every referenced channel listing is Withdrawn. Items are never
// physically deleted; Removed is kept for audit and reporting.
func (i *InventoryItem) MarkRemoved() error {
	if i.Quantity != 0 {
		return ErrInvalidQuantity
	}
	if !i.AllListingsWithdrawn() {
		return ErrListingsOutstanding
	}

	i.State = LifecycleRemoved
	i.RemovalIncomplete = false
	i.UpdatedAt = time.Now().UTC()

	i.addDomainEvent(&ItemRemovedEvent{
		ItemID:    i.ItemID,
		RemovedAt: i.UpdatedAt,
	})

	return nil
}

// FlagRemovalIncomplete marks the item for manual reconciliation after a
// partial cross-channel removal.
func (i *InventoryItem) FlagRemovalIncomplete() {
	i.RemovalIncomplete = true
	i.UpdatedAt = time.Now().UTC()

	i.addDomainEvent(&RemovalIncompleteEvent{
		ItemID:    i.ItemID,
		FlaggedAt: i.UpdatedAt,
	})
}

func (i *InventoryItem) addDomainEvent(event DomainEvent) {
	i.domainEvents = append(i.domainEvents, event)
}

// DomainEvents returns the accumulated domain events
func (i *InventoryItem) DomainEvents() []DomainEvent {
	return i.domainEvents
}

// AddDomainEvent appends a domain event to the aggregate
func (i *InventoryItem) AddDomainEvent(event DomainEvent) {
	i.addDomainEvent(event)
}

// ClearDomainEvents resets the accumulated domain events
func (i *InventoryItem) ClearDomainEvents() {
	i.domainEvents = make([]DomainEvent, 0)
}
