package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shopline-platform/reconciliation-service/internal/domain"
	pkgmongo "github.com/shopline-platform/reconciliation-service/pkg/mongodb"
	"github.com/shopline-platform/reconciliation-service/pkg/outbox"
)

const inventoryEventsTopic = "shop.inventory.events"

// ItemRepository implements domain.ItemRepository
type ItemRepository struct {
	collection       *mongo.Collection
	saleCollection   *mongo.Collection
	outboxCollection *mongo.Collection
}

// NewItemRepository creates a new inventory item repository
func NewItemRepository(db *mongo.Database) *ItemRepository {
	collection := db.Collection("inventory_items")

	// Create indexes
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sparse := func(key string) mongo.IndexModel {
		return mongo.IndexModel{
			Keys:    bson.D{{Key: key, Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		}
	}

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "itemId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		// Channel references are optional but must be unique when present
		sparse("channelRefs.posVariationRef"),
		sparse("channelRefs.posItemRef"),
		sparse("channelRefs.marketListingRef"),
		{
			// Codes repeat across intake batches; resolution sorts by recency
			Keys: bson.D{
				{Key: "code", Value: 1},
				{Key: "createdAt", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "sellerId", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "state", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "removalIncomplete", Value: 1}},
		},
	}

	collection.Indexes().CreateMany(ctx, indexes)

	return &ItemRepository{
		collection:       collection,
		saleCollection:   db.Collection("sale_records"),
		outboxCollection: db.Collection("outbox"),
	}
}

// Save upserts the item and stores its pending domain events in the outbox
// within one transaction, so state changes and their events cannot diverge.
func (r *ItemRepository) Save(ctx context.Context, item *domain.InventoryItem) error {
	session, err := r.collection.Database().Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, r.persistItem(sessCtx, item)
	})

	if err == nil {
		item.ClearDomainEvents()
	}

	return err
}

// errAlreadyApplied aborts the SaveWithSaleRecords transaction when the
// unique sale index reports a replayed delivery.
var errAlreadyApplied = errors.New("sale records already applied")

// SaveWithSaleRecords writes the per-unit sale records, the updated item and
// its pending outbox events in one transaction. When the unique
// (itemId, transactionId, unitIndex) index rejects the records the whole
// transaction aborts and nothing is written; that is reported as (false, nil)
// so callers can treat the delivery as a replay.
func (r *ItemRepository) SaveWithSaleRecords(ctx context.Context, item *domain.InventoryItem, records []*domain.SaleRecord) (bool, error) {
	if len(records) == 0 {
		return false, nil
	}

	docs := make([]interface{}, len(records))
	for i, record := range records {
		docs[i] = record
	}

	session, err := r.collection.Database().Client().StartSession()
	if err != nil {
		return false, err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		// Ordered insert stops at the first duplicate, so a replayed
		// transaction aborts before touching the item.
		if _, err := r.saleCollection.InsertMany(sessCtx, docs, options.InsertMany().SetOrdered(true)); err != nil {
			if pkgmongo.IsDuplicateKeyError(err) {
				return nil, errAlreadyApplied
			}
			return nil, err
		}
		return nil, r.persistItem(sessCtx, item)
	})

	if errors.Is(err, errAlreadyApplied) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	item.ClearDomainEvents()
	return true, nil
}

func (r *ItemRepository) persistItem(sessCtx mongo.SessionContext, item *domain.InventoryItem) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(sessCtx, bson.M{"itemId": item.ItemID}, item, opts); err != nil {
		return err
	}

	for _, event := range item.DomainEvents() {
		outboxEvent, err := outbox.NewEvent(item.ItemID, "InventoryItem", inventoryEventsTopic, event)
		if err != nil {
			return err
		}
		if _, err := r.outboxCollection.InsertOne(sessCtx, outboxEvent); err != nil {
			return err
		}
	}

	return nil
}

// FindByItemID retrieves an item by its internal identifier
func (r *ItemRepository) FindByItemID(ctx context.Context, itemID string) (*domain.InventoryItem, error) {
	return r.findOne(ctx, bson.M{"itemId": itemID})
}

// FindByPOSVariationRef retrieves the item holding a POS variation reference
func (r *ItemRepository) FindByPOSVariationRef(ctx context.Context, ref string) (*domain.InventoryItem, error) {
	return r.findOne(ctx, bson.M{"channelRefs.posVariationRef": ref})
}

// FindByPOSItemRef retrieves the item holding a POS item reference
func (r *ItemRepository) FindByPOSItemRef(ctx context.Context, ref string) (*domain.InventoryItem, error) {
	return r.findOne(ctx, bson.M{"channelRefs.posItemRef": ref})
}

// FindByMarketListingRef retrieves the item holding a marketplace listing reference
func (r *ItemRepository) FindByMarketListingRef(ctx context.Context, ref string) (*domain.InventoryItem, error) {
	return r.findOne(ctx, bson.M{"channelRefs.marketListingRef": ref})
}

// FindByCode retrieves all items sharing a code, most recent first
func (r *ItemRepository) FindByCode(ctx context.Context, code string) ([]*domain.InventoryItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.findMany(ctx, bson.M{"code": code}, opts)
}

// FindRemovalIncomplete retrieves items flagged for manual reconciliation
func (r *ItemRepository) FindRemovalIncomplete(ctx context.Context, pagination domain.Pagination) ([]*domain.InventoryItem, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}}).
		SetSkip(pagination.Skip()).
		SetLimit(pagination.Limit())
	return r.findMany(ctx, bson.M{"removalIncomplete": true}, opts)
}

// FindBySellerID retrieves a seller's items
func (r *ItemRepository) FindBySellerID(ctx context.Context, sellerID string, pagination domain.Pagination) ([]*domain.InventoryItem, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(pagination.Skip()).
		SetLimit(pagination.Limit())
	return r.findMany(ctx, bson.M{"sellerId": sellerID}, opts)
}

// List retrieves items, most recent first
func (r *ItemRepository) List(ctx context.Context, pagination domain.Pagination) ([]*domain.InventoryItem, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(pagination.Skip()).
		SetLimit(pagination.Limit())
	return r.findMany(ctx, bson.M{}, opts)
}

// Count returns the number of items
func (r *ItemRepository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

func (r *ItemRepository) findOne(ctx context.Context, filter bson.M) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := r.collection.FindOne(ctx, filter).Decode(&item)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *ItemRepository) findMany(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.InventoryItem, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var items []*domain.InventoryItem
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}
