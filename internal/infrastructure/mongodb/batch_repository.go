package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BatchRepository resolves batch master attributes: expiry dates for
// FEFO/LEFO ordering and quality grades.
type BatchRepository struct {
	collection *mongo.Collection
}

func NewBatchRepository(db *mongo.Database) *BatchRepository {
	collection := db.Collection("item_batches")

	repo := &BatchRepository{
		collection: collection,
	}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *BatchRepository) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "item", Value: 1}, {Key: "batch", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	r.collection.Indexes().CreateMany(ctx, indexes)
}

type batchDoc struct {
	Item         string     `bson:"item"`
	Batch        string     `bson:"batch"`
	Expiry       *time.Time `bson:"expiry,omitempty"`
	QualityGrade int        `bson:"qualityGrade,omitempty"`
}

func (r *BatchRepository) find(ctx context.Context, item, batch string) (*batchDoc, error) {
	var doc batchDoc
	err := r.collection.FindOne(ctx, bson.M{"item": item, "batch": batch}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Expiry returns nil for unknown or never-expiring batches
func (r *BatchRepository) Expiry(ctx context.Context, item, batch string) (*time.Time, error) {
	doc, err := r.find(ctx, item, batch)
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.Expiry, nil
}

// QualityGrade returns 0 for ungraded or unknown batches
func (r *BatchRepository) QualityGrade(ctx context.Context, item, batch string) (int, error) {
	doc, err := r.find(ctx, item, batch)
	if err != nil || doc == nil {
		return 0, err
	}
	return doc.QualityGrade, nil
}
