package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/agilasoft/logistics-sub000/internal/domain"
)

// BOMRepository resolves VAS bills of materials
type BOMRepository struct {
	collection *mongo.Collection
}

func NewBOMRepository(db *mongo.Database) *BOMRepository {
	collection := db.Collection("vas_boms")

	repo := &BOMRepository{
		collection: collection,
	}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *BOMRepository) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "parentItem", Value: 1}}},
	}
	r.collection.Indexes().CreateMany(ctx, indexes)
}

// FindForParent returns the BOM for a parent item usable under the job
// scope. A scoped BOM beats a shared (wildcard) one.
func (r *BOMRepository) FindForParent(ctx context.Context, parentItem string, scope domain.Scope) (*domain.BOM, error) {
	filter := bson.M{"parentItem": parentItem}
	addScopeFilter(filter, scope)

	opts := options.FindOne().SetSort(bson.D{{Key: "scope.company", Value: -1}})
	var bom domain.BOM
	err := r.collection.FindOne(ctx, filter, opts).Decode(&bom)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bom, nil
}
