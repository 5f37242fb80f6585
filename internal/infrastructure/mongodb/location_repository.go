package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/agilasoft/logistics-sub000/internal/domain"
)

// LocationRepository is the storage location master projection. The engine
// writes only the derived status and usage snapshot.
type LocationRepository struct {
	collection *mongo.Collection
}

func NewLocationRepository(db *mongo.Database) *LocationRepository {
	collection := db.Collection("storage_locations")

	repo := &LocationRepository{
		collection: collection,
	}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *LocationRepository) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "barcode", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "stagingArea", Value: 1}}},
		{Keys: bson.D{{Key: "scope.company", Value: 1}, {Key: "scope.branch", Value: 1}}},
		{Keys: bson.D{{Key: "path", Value: 1}}},
	}
	r.collection.Indexes().CreateMany(ctx, indexes)
}

func (r *LocationRepository) FindByCode(ctx context.Context, code string) (*domain.StorageLocation, error) {
	var loc domain.StorageLocation
	err := r.collection.FindOne(ctx, bson.M{"code": code}).Decode(&loc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (r *LocationRepository) FindByCodes(ctx context.Context, codes []string) ([]*domain.StorageLocation, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"code": bson.M{"$in": codes}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var locs []*domain.StorageLocation
	if err = cursor.All(ctx, &locs); err != nil {
		return nil, err
	}
	return locs, nil
}

// ListUsable returns non-staging locations whose status allows allocation,
// scoped with wildcard semantics: an empty company or branch on the entity
// matches any job scope.
func (r *LocationRepository) ListUsable(ctx context.Context, scope domain.Scope) ([]*domain.StorageLocation, error) {
	filter := bson.M{
		"stagingArea": bson.M{"$ne": true},
		"status": bson.M{"$nin": bson.A{
			string(domain.StatusUnderMaintenance),
			string(domain.StatusInactive),
		}},
	}
	addScopeFilter(filter, scope)

	opts := options.Find().SetSort(bson.D{{Key: "binPriority", Value: 1}, {Key: "code", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var locs []*domain.StorageLocation
	if err = cursor.All(ctx, &locs); err != nil {
		return nil, err
	}
	return locs, nil
}

func (r *LocationRepository) ListAll(ctx context.Context) ([]*domain.StorageLocation, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var locs []*domain.StorageLocation
	if err = cursor.All(ctx, &locs); err != nil {
		return nil, err
	}
	return locs, nil
}

// ResolveScanned tries the exact code first, then the barcode field
func (r *LocationRepository) ResolveScanned(ctx context.Context, code string) (*domain.StorageLocation, error) {
	loc, err := r.FindByCode(ctx, code)
	if err != nil || loc != nil {
		return loc, err
	}

	var byBarcode domain.StorageLocation
	err = r.collection.FindOne(ctx, bson.M{"barcode": code}).Decode(&byBarcode)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &byBarcode, nil
}

func (r *LocationRepository) UpdateDerived(ctx context.Context, code string, status domain.EntityStatus, usage domain.Usage) error {
	update := bson.M{"$set": bson.M{
		"status":        status,
		"usageSnapshot": usage,
	}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"code": code}, update)
	return err
}

// addScopeFilter narrows a filter to entities usable under the job scope.
// Absent or empty scope fields on an entity are wildcards.
func addScopeFilter(filter bson.M, scope domain.Scope) {
	filter["$and"] = bson.A{
		bson.M{"$or": bson.A{
			bson.M{"scope.company": scope.Company},
			bson.M{"scope.company": ""},
			bson.M{"scope.company": bson.M{"$exists": false}},
		}},
		bson.M{"$or": bson.A{
			bson.M{"scope.branch": scope.Branch},
			bson.M{"scope.branch": ""},
			bson.M{"scope.branch": bson.M{"$exists": false}},
		}},
	}
}
