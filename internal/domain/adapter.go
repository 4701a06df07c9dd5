package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// FailureKind classifies adapter failures for the removal orchestrator and
// the reconciliation job.
type FailureKind string

const (
	// FailureRetryable covers transient faults: timeouts, 429s, 5xx
	FailureRetryable FailureKind = "retryable"
	// FailurePermanent covers faults a retry will not fix: auth, validation
	FailurePermanent FailureKind = "permanent"
)

// ChannelError wraps a failure from a channel adapter with its channel,
// operation and failure classification.
type ChannelError struct {
	Channel ChannelName
	Op      string
	Kind    FailureKind
	Err     error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Channel, e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// NewChannelError creates a classified channel error
func NewChannelError(channel ChannelName, op string, kind FailureKind, err error) *ChannelError {
	return &ChannelError{Channel: channel, Op: op, Kind: kind, Err: err}
}

// IsRetryable reports whether err is a channel failure worth retrying
func IsRetryable(err error) bool {
	var chErr *ChannelError
	if errors.As(err, &chErr) {
		return chErr.Kind == FailureRetryable
	}
	return false
}

// ChannelAdapter abstracts one external sales channel. Implementations
// translate between the item aggregate and the channel's own API shapes.
type ChannelAdapter interface {
	// Name returns the channel this adapter serves
	Name() ChannelName

	// Publish creates or updates the channel listing for the item and
	// returns the channel references to merge back into the aggregate.
	// Publishing an item that already has a listing updates it in place.
	Publish(ctx context.Context, item *InventoryItem) (ChannelRefs, error)

	// Withdraw removes the item's listing from the channel. Withdrawing a
	// listing that no longer exists on the channel is a success.
	Withdraw(ctx context.Context, item *InventoryItem) error

	// UpdateQuantity pushes the authoritative quantity to the channel
	UpdateQuantity(ctx context.Context, item *InventoryItem, quantity int) error

	// FetchCompletedTransactions returns all transactions the channel
	// completed inside the window, normalized for the pipeline.
	FetchCompletedTransactions(ctx context.Context, windowStart, windowEnd time.Time) ([]*ExternalTransaction, error)
}

// AdapterFactory resolves channel adapters by name
type AdapterFactory struct {
	adapters map[ChannelName]ChannelAdapter
}

// NewAdapterFactory creates an empty adapter factory
func NewAdapterFactory() *AdapterFactory {
	return &AdapterFactory{
		adapters: make(map[ChannelName]ChannelAdapter),
	}
}

// Register registers an adapter under its channel name
func (f *AdapterFactory) Register(adapter ChannelAdapter) {
	f.adapters[adapter.Name()] = adapter
}

// GetAdapter returns the adapter for a channel name
func (f *AdapterFactory) GetAdapter(channel ChannelName) (ChannelAdapter, error) {
	adapter, ok := f.adapters[channel]
	if !ok {
		return nil, ErrInvalidChannel
	}
	return adapter, nil
}

// RegisteredChannels lists every channel with a registered adapter
func (f *AdapterFactory) RegisteredChannels() []ChannelName {
	channels := make([]ChannelName, 0, len(f.adapters))
	for name := range f.adapters {
		channels = append(channels, name)
	}
	return channels
}
