package application

import (
	"context"

	"github.com/shopline-platform/reconciliation-service/internal/domain"
	apperrors "github.com/shopline-platform/reconciliation-service/pkg/errors"
	"github.com/shopline-platform/reconciliation-service/pkg/logging"
)

// InventoryService handles intake, publication and queries over items
type InventoryService struct {
	items    domain.ItemRepository
	sales    domain.SaleRecordRepository
	adapters *domain.AdapterFactory
	logger   *logging.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(
	items domain.ItemRepository,
	sales domain.SaleRecordRepository,
	adapters *domain.AdapterFactory,
	logger *logging.Logger,
) *InventoryService {
	return &InventoryService{
		items:    items,
		sales:    sales,
		adapters: adapters,
		logger:   logger.WithComponent("inventory"),
	}
}

// IntakeItem registers a new item in the shop catalog
func (s *InventoryService) IntakeItem(ctx context.Context, cmd IntakeItemCommand) (*ItemDTO, error) {
	item, err := domain.NewInventoryItem(cmd.Code, cmd.Name, cmd.Category, cmd.SellerID, cmd.Quantity, cmd.IsSmallBatch)
	if err != nil {
		return nil, apperrors.ErrValidation(err.Error())
	}
	currency := cmd.Currency
	if currency == "" {
		currency = "EUR"
	}
	item.SetPrice(cmd.Price, currency)

	if err := s.items.Save(ctx, item); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]any{
		"itemId":   item.ItemID,
		"code":     item.Code,
		"sellerId": item.SellerID,
	}).Info("item intaken")

	return ToItemDTO(item), nil
}

// PublishItem lists the item on the requested channels, or on every
// registered channel when none are named. Publishing is upsert-like per
// channel; republishing converges on the existing listing.
func (s *InventoryService) PublishItem(ctx context.Context, itemID string, cmd PublishItemCommand) (*ItemDTO, error) {
	item, err := s.items.FindByItemID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.State != domain.LifecycleActive {
		return nil, apperrors.ErrConflict("only active items can be published")
	}

	channels := make([]domain.ChannelName, 0, len(cmd.Channels))
	if len(cmd.Channels) == 0 {
		channels = s.adapters.RegisteredChannels()
	} else {
		for _, name := range cmd.Channels {
			channel := domain.ChannelName(name)
			if !channel.IsValid() {
				return nil, apperrors.ErrValidation("unknown channel: " + name)
			}
			channels = append(channels, channel)
		}
	}

	for _, channel := range channels {
		adapter, err := s.adapters.GetAdapter(channel)
		if err != nil {
			return nil, err
		}

		refs, err := adapter.Publish(ctx, item)
		if err != nil {
			s.logger.WithChannel(string(channel)).WithError(err).
				WithFields(map[string]any{"itemId": item.ItemID}).
				Error("channel publish failed")
			return nil, err
		}
		if err := item.MarkListed(channel, refs); err != nil {
			return nil, err
		}
	}

	if err := s.items.Save(ctx, item); err != nil {
		return nil, err
	}

	return ToItemDTO(item), nil
}

// GetItem retrieves one item
func (s *InventoryService) GetItem(ctx context.Context, itemID string) (*ItemDTO, error) {
	item, err := s.items.FindByItemID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return ToItemDTO(item), nil
}

// ListItems lists items, most recent first. A non-empty sellerID narrows
// the listing to one seller's items.
func (s *InventoryService) ListItems(ctx context.Context, sellerID string, pagination domain.Pagination) ([]*ItemDTO, error) {
	var items []*domain.InventoryItem
	var err error
	if sellerID != "" {
		items, err = s.items.FindBySellerID(ctx, sellerID, pagination)
	} else {
		items, err = s.items.List(ctx, pagination)
	}
	if err != nil {
		return nil, err
	}
	return toItemDTOs(items), nil
}

// ListRemovalIncomplete lists items whose cross-channel removal needs
// operational follow-up.
func (s *InventoryService) ListRemovalIncomplete(ctx context.Context, pagination domain.Pagination) ([]*ItemDTO, error) {
	items, err := s.items.FindRemovalIncomplete(ctx, pagination)
	if err != nil {
		return nil, err
	}
	return toItemDTOs(items), nil
}

// GetItemSales retrieves an item's sale history
func (s *InventoryService) GetItemSales(ctx context.Context, itemID string) ([]*SaleRecordDTO, error) {
	if _, err := s.items.FindByItemID(ctx, itemID); err != nil {
		return nil, err
	}

	records, err := s.sales.FindByItemID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	dtos := make([]*SaleRecordDTO, 0, len(records))
	for _, record := range records {
		dtos = append(dtos, ToSaleRecordDTO(record))
	}
	return dtos, nil
}

// GetTransactionSales retrieves every sale record one external transaction
// produced, across items. Used to audit what a webhook or reconciliation
// window actually applied.
func (s *InventoryService) GetTransactionSales(ctx context.Context, transactionID string) ([]*SaleRecordDTO, error) {
	records, err := s.sales.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	dtos := make([]*SaleRecordDTO, 0, len(records))
	for _, record := range records {
		dtos = append(dtos, ToSaleRecordDTO(record))
	}
	return dtos, nil
}

func toItemDTOs(items []*domain.InventoryItem) []*ItemDTO {
	dtos := make([]*ItemDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, ToItemDTO(item))
	}
	return dtos
}
