package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/agilasoft/logistics-sub000/internal/domain"
)

// HandlingUnitRepository is the handling unit master projection
type HandlingUnitRepository struct {
	collection *mongo.Collection
}

func NewHandlingUnitRepository(db *mongo.Database) *HandlingUnitRepository {
	collection := db.Collection("handling_units")

	repo := &HandlingUnitRepository{
		collection: collection,
	}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *HandlingUnitRepository) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "barcode", Value: 1}}},
		{Keys: bson.D{{Key: "type", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "scope.company", Value: 1}, {Key: "scope.branch", Value: 1}}},
	}
	r.collection.Indexes().CreateMany(ctx, indexes)
}

func (r *HandlingUnitRepository) FindByCode(ctx context.Context, code string) (*domain.HandlingUnit, error) {
	var hu domain.HandlingUnit
	err := r.collection.FindOne(ctx, bson.M{"code": code}).Decode(&hu)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &hu, nil
}

func (r *HandlingUnitRepository) FindByCodes(ctx context.Context, codes []string) ([]*domain.HandlingUnit, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"code": bson.M{"$in": codes}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var hus []*domain.HandlingUnit
	if err = cursor.All(ctx, &hus); err != nil {
		return nil, err
	}
	return hus, nil
}

func (r *HandlingUnitRepository) CodesByType(ctx context.Context, huType string) ([]string, error) {
	values, err := r.collection.Distinct(ctx, "code", bson.M{"type": huType})
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(values))
	for _, v := range values {
		if code, ok := v.(string); ok {
			codes = append(codes, code)
		}
	}
	return codes, nil
}

func (r *HandlingUnitRepository) ListUsable(ctx context.Context, scope domain.Scope) ([]*domain.HandlingUnit, error) {
	filter := bson.M{
		"status": bson.M{"$nin": bson.A{
			string(domain.StatusUnderMaintenance),
			string(domain.StatusInactive),
		}},
	}
	addScopeFilter(filter, scope)

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "code", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var hus []*domain.HandlingUnit
	if err = cursor.All(ctx, &hus); err != nil {
		return nil, err
	}
	return hus, nil
}

// ResolveScanned tries the exact code first, then the barcode field
func (r *HandlingUnitRepository) ResolveScanned(ctx context.Context, code string) (*domain.HandlingUnit, error) {
	hu, err := r.FindByCode(ctx, code)
	if err != nil || hu != nil {
		return hu, err
	}

	var byBarcode domain.HandlingUnit
	err = r.collection.FindOne(ctx, bson.M{"barcode": code}).Decode(&byBarcode)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &byBarcode, nil
}

func (r *HandlingUnitRepository) UpdateDerived(ctx context.Context, code string, status domain.EntityStatus, usage domain.Usage) error {
	update := bson.M{"$set": bson.M{
		"status":        status,
		"usageSnapshot": usage,
	}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"code": code}, update)
	return err
}
