package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shopline-platform/reconciliation-service/internal/domain"
)

// SaleRecordRepository implements domain.SaleRecordRepository. It owns the
// unique compound index over (itemId, transactionId, unitIndex) that
// ItemRepository.SaveWithSaleRecords relies on to make sale application
// idempotent under at-least-once delivery.
type SaleRecordRepository struct {
	collection *mongo.Collection
}

// NewSaleRecordRepository creates a new sale record repository
func NewSaleRecordRepository(db *mongo.Database) *SaleRecordRepository {
	collection := db.Collection("sale_records")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "itemId", Value: 1},
				{Key: "transactionId", Value: 1},
				{Key: "unitIndex", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "transactionId", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "itemId", Value: 1},
				{Key: "soldAt", Value: -1},
			},
		},
	}

	collection.Indexes().CreateMany(ctx, indexes)

	return &SaleRecordRepository{
		collection: collection,
	}
}

// FindByItemID retrieves an item's sale history, most recent first
func (r *SaleRecordRepository) FindByItemID(ctx context.Context, itemID string) ([]*domain.SaleRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "soldAt", Value: -1}})
	return r.findMany(ctx, bson.M{"itemId": itemID}, opts)
}

// FindByTransactionID retrieves all records of one transaction
func (r *SaleRecordRepository) FindByTransactionID(ctx context.Context, transactionID string) ([]*domain.SaleRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "unitIndex", Value: 1}})
	return r.findMany(ctx, bson.M{"transactionId": transactionID}, opts)
}

func (r *SaleRecordRepository) findMany(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.SaleRecord, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*domain.SaleRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
