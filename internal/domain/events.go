package domain

import "time"

// DomainEvent is the base interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// ItemIntakenEvent is emitted when a new item enters inventory
type ItemIntakenEvent struct {
	ItemID    string    `json:"itemId"`
	Code      string    `json:"code"`
	SellerID  string    `json:"sellerId"`
	Quantity  int       `json:"quantity"`
	IntakenAt time.Time `json:"intakenAt"`
}

func (e *ItemIntakenEvent) EventType() string     { return "inventory.item.intaken" }
func (e *ItemIntakenEvent) OccurredAt() time.Time { return e.IntakenAt }

// SaleAppliedEvent is emitted when an external transaction decrements an item
type SaleAppliedEvent struct {
	ItemID        string      `json:"itemId"`
	Code          string      `json:"code"`
	TransactionID string      `json:"transactionId"`
	Channel       ChannelName `json:"channel"`
	UnitsSold     int         `json:"unitsSold"`
	Remaining     int         `json:"remaining"`
	AppliedAt     time.Time   `json:"appliedAt"`
}

func (e *SaleAppliedEvent) EventType() string     { return "inventory.sale.applied" }
func (e *SaleAppliedEvent) OccurredAt() time.Time { return e.AppliedAt }

// ItemSoldOutEvent is emitted when an item's quantity reaches zero
type ItemSoldOutEvent struct {
	ItemID        string         `json:"itemId"`
	Code          string         `json:"code"`
	State         LifecycleState `json:"state"`
	Channel       ChannelName    `json:"channel"`
	TransactionID string         `json:"transactionId"`
	SoldOutAt     time.Time      `json:"soldOutAt"`
}

func (e *ItemSoldOutEvent) EventType() string     { return "inventory.item.sold_out" }
func (e *ItemSoldOutEvent) OccurredAt() time.Time { return e.SoldOutAt }

// ListingPublishedEvent is emitted when an item is listed on a channel
type ListingPublishedEvent struct {
	ItemID      string      `json:"itemId"`
	Channel     ChannelName `json:"channel"`
	PublishedAt time.Time   `json:"publishedAt"`
}

func (e *ListingPublishedEvent) EventType() string     { return "inventory.listing.published" }
func (e *ListingPublishedEvent) OccurredAt() time.Time { return e.PublishedAt }

// ListingWithdrawnEvent is emitted when a channel listing is withdrawn
type ListingWithdrawnEvent struct {
	ItemID      string      `json:"itemId"`
	Channel     ChannelName `json:"channel"`
	WithdrawnAt time.Time   `json:"withdrawnAt"`
}

func (e *ListingWithdrawnEvent) EventType() string     { return "inventory.listing.withdrawn" }
func (e *ListingWithdrawnEvent) OccurredAt() time.Time { return e.WithdrawnAt }

// ItemRemovedEvent is emitted when an item completes cross-channel removal
type ItemRemovedEvent struct {
	ItemID    string    `json:"itemId"`
	RemovedAt time.Time `json:"removedAt"`
}

func (e *ItemRemovedEvent) EventType() string     { return "inventory.item.removed" }
func (e *ItemRemovedEvent) OccurredAt() time.Time { return e.RemovedAt }

// RemovalIncompleteEvent is emitted when cross-channel removal partially fails
type RemovalIncompleteEvent struct {
	ItemID    string    `json:"itemId"`
	FlaggedAt time.Time `json:"flaggedAt"`
}

func (e *RemovalIncompleteEvent) EventType() string     { return "inventory.removal.incomplete" }
func (e *RemovalIncompleteEvent) OccurredAt() time.Time { return e.FlaggedAt }
