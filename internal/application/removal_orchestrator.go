package application

import (
	"context"

	"github.com/shopline-platform/reconciliation-service/internal/domain"
	"github.com/shopline-platform/reconciliation-service/pkg/logging"
	"github.com/shopline-platform/reconciliation-service/pkg/metrics"
)

// RemovalOrchestrator withdraws a sold-out item's listings from the channels
// that did not report the sale. Withdrawal failures are independent per
// channel and never roll back the ledger; partial removal flags the item for
// manual follow-up.
type RemovalOrchestrator struct {
	items    domain.ItemRepository
	adapters *domain.AdapterFactory
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// NewRemovalOrchestrator creates a new removal orchestrator
func NewRemovalOrchestrator(
	items domain.ItemRepository,
	adapters *domain.AdapterFactory,
	logger *logging.Logger,
	m *metrics.Metrics,
) *RemovalOrchestrator {
	return &RemovalOrchestrator{
		items:    items,
		adapters: adapters,
		logger:   logger.WithComponent("removal"),
		metrics:  m,
	}
}

// RemoveFromOtherChannels withdraws the item from every channel other than
// the one that reported the sale. The originating channel consumed its own
// listing at the point of sale and is skipped.
func (o *RemovalOrchestrator) RemoveFromOtherChannels(ctx context.Context, item *domain.InventoryItem, originating domain.ChannelName) *RemovalResult {
	result := &RemovalResult{}

	for _, channel := range domain.AllChannels {
		if channel == originating {
			continue
		}
		if !item.ChannelRefs.HasChannel(channel) {
			continue
		}
		if item.ListingStateFor(channel) == domain.ListingWithdrawn {
			continue
		}

		result.Attempted = append(result.Attempted, channel)
		o.withdraw(ctx, item, channel, result)
	}

	o.finish(ctx, item, result)
	return result
}

// Retry re-attempts withdrawal on every channel still holding a live
// listing, including the originating one. Used by the manual follow-up path
// for items flagged removal incomplete.
func (o *RemovalOrchestrator) Retry(ctx context.Context, itemID string) (*RemovalResult, error) {
	item, err := o.items.FindByItemID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	result := &RemovalResult{}
	for _, channel := range domain.AllChannels {
		if !item.ChannelRefs.HasChannel(channel) {
			continue
		}
		if item.ListingStateFor(channel) == domain.ListingWithdrawn {
			continue
		}

		result.Attempted = append(result.Attempted, channel)
		o.withdraw(ctx, item, channel, result)
	}

	o.finish(ctx, item, result)
	return result, nil
}

// SyncQuantity pushes the item's remaining quantity to every channel still
// listing it, skipping the one whose sale already consumed the units.
// Failures are logged, not propagated: a stale channel is repaired by the
// next reconciliation window.
func (o *RemovalOrchestrator) SyncQuantity(ctx context.Context, item *domain.InventoryItem, originating domain.ChannelName) {
	for _, channel := range domain.AllChannels {
		if channel == originating {
			continue
		}
		if item.ListingStateFor(channel) != domain.ListingListed {
			continue
		}

		logger := o.logger.WithChannel(string(channel)).WithFields(map[string]any{
			"itemId":   item.ItemID,
			"quantity": item.Quantity,
		})

		adapter, err := o.adapters.GetAdapter(channel)
		if err != nil {
			logger.WithError(err).Error("no adapter registered for channel")
			continue
		}
		if err := adapter.UpdateQuantity(ctx, item, item.Quantity); err != nil {
			logger.WithError(err).Warn("channel quantity update failed")
			continue
		}
		logger.Info("channel quantity updated")
	}
}

func (o *RemovalOrchestrator) withdraw(ctx context.Context, item *domain.InventoryItem, channel domain.ChannelName, result *RemovalResult) {
	logger := o.logger.WithChannel(string(channel)).WithFields(map[string]any{"itemId": item.ItemID})

	adapter, err := o.adapters.GetAdapter(channel)
	if err != nil {
		result.Failures = append(result.Failures, ChannelFailure{
			Channel: channel,
			Error:   err.Error(),
		})
		logger.WithError(err).Error("no adapter registered for channel")
		return
	}

	if err := adapter.Withdraw(ctx, item); err != nil {
		result.Failures = append(result.Failures, ChannelFailure{
			Channel:   channel,
			Retryable: domain.IsRetryable(err),
			Error:     err.Error(),
		})
		if o.metrics != nil {
			o.metrics.RecordWithdrawal(string(channel), "failure")
		}
		logger.WithError(err).Error("channel withdrawal failed")
		return
	}

	if err := item.MarkWithdrawn(channel); err != nil {
		result.Failures = append(result.Failures, ChannelFailure{
			Channel: channel,
			Error:   err.Error(),
		})
		logger.WithError(err).Error("cannot record withdrawal")
		return
	}

	result.Withdrawn = append(result.Withdrawn, channel)
	if o.metrics != nil {
		o.metrics.RecordWithdrawal(string(channel), "success")
	}
	logger.Info("channel listing withdrawn")
}

// finish records the outcome on the item: Removed when every referenced
// listing is withdrawn, flagged incomplete when any withdrawal failed.
func (o *RemovalOrchestrator) finish(ctx context.Context, item *domain.InventoryItem, result *RemovalResult) {
	if !result.Complete() {
		item.FlagRemovalIncomplete()
	} else if item.Quantity == 0 && item.AllListingsWithdrawn() {
		if err := item.MarkRemoved(); err == nil {
			result.Removed = true
		}
	}

	if err := o.items.Save(ctx, item); err != nil {
		// The withdrawals happened on the channels; losing the local
		// state update is recoverable via the retry path.
		o.logger.WithError(err).WithFields(map[string]any{"itemId": item.ItemID}).
			Error("failed to persist removal outcome")
	}
}
