package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/agilasoft/logistics-sub000/internal/domain"
)

// LedgerRepository persists the append-only stock ledger. Entries are only
// ever inserted; balances are derived with aggregations over the chain.
type LedgerRepository struct {
	collection *mongo.Collection
}

func NewLedgerRepository(db *mongo.Database) *LedgerRepository {
	collection := db.Collection("stock_ledger")

	repo := &LedgerRepository{
		collection: collection,
	}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *LedgerRepository) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "entryId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{
			{Key: "key.item", Value: 1},
			{Key: "key.location", Value: 1},
			{Key: "key.handlingUnit", Value: 1},
			{Key: "key.batch", Value: 1},
			{Key: "key.serial", Value: 1},
			{Key: "postedAt", Value: -1},
		}},
		{Keys: bson.D{{Key: "key.item", Value: 1}}},
		{Keys: bson.D{{Key: "key.location", Value: 1}}},
		{Keys: bson.D{{Key: "key.handlingUnit", Value: 1}}},
		{Keys: bson.D{{Key: "jobId", Value: 1}}},
	}
	r.collection.Indexes().CreateMany(ctx, indexes)
}

func keyFilter(key domain.LedgerKey) bson.M {
	return bson.M{
		"key.item":         key.Item,
		"key.location":     key.Location,
		"key.handlingUnit": key.HandlingUnit,
		"key.batch":        key.Batch,
		"key.serial":       key.Serial,
	}
}

func (r *LedgerRepository) LastEntry(ctx context.Context, key domain.LedgerKey) (*domain.LedgerEntry, error) {
	// _id breaks ties within a batch posted at the same instant
	opts := options.FindOne().SetSort(bson.D{{Key: "postedAt", Value: -1}, {Key: "_id", Value: -1}})

	var entry domain.LedgerEntry
	err := r.collection.FindOne(ctx, keyFilter(key), opts).Decode(&entry)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *LedgerRepository) Append(ctx context.Context, entries []domain.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	docs := make([]interface{}, len(entries))
	for n := range entries {
		docs[n] = entries[n]
	}
	_, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	return err
}

func (r *LedgerRepository) EntriesForKey(ctx context.Context, key domain.LedgerKey) ([]domain.LedgerEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "postedAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, keyFilter(key), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []domain.LedgerEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *LedgerRepository) EntriesForJob(ctx context.Context, jobID string) ([]domain.LedgerEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "postedAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"jobId": jobID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []domain.LedgerEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *LedgerRepository) PositiveBalances(ctx context.Context, item string) ([]domain.BalanceRow, error) {
	return r.aggregateBalances(ctx, bson.M{"key.item": item})
}

func (r *LedgerRepository) BalancesAtLocation(ctx context.Context, location string) ([]domain.BalanceRow, error) {
	return r.aggregateBalances(ctx, bson.M{"key.location": location})
}

func (r *LedgerRepository) BalancesOnHandlingUnit(ctx context.Context, huCode string) ([]domain.BalanceRow, error) {
	return r.aggregateBalances(ctx, bson.M{"key.handlingUnit": huCode})
}

// aggregateBalances groups entries by key, sums the signed deltas and keeps
// only positive rows. Stocked-at bounds come from the inbound entries so
// picking-method ordering sees when stock actually arrived.
func (r *LedgerRepository) aggregateBalances(ctx context.Context, match bson.M) ([]domain.BalanceRow, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"item":         "$key.item",
				"location":     "$key.location",
				"handlingUnit": "$key.handlingUnit",
				"batch":        "$key.batch",
				"serial":       "$key.serial",
			},
			"quantity": bson.M{"$sum": "$quantity"},
			// $$REMOVE makes min/max skip outbound entries entirely
			"firstStockedAt": bson.M{"$min": bson.M{
				"$cond": bson.A{bson.M{"$gt": bson.A{"$quantity", 0}}, "$postedAt", "$$REMOVE"},
			}},
			"lastStockedAt": bson.M{"$max": bson.M{
				"$cond": bson.A{bson.M{"$gt": bson.A{"$quantity", 0}}, "$postedAt", "$$REMOVE"},
			}},
		}}},
		{{Key: "$match", Value: bson.M{"quantity": bson.M{"$gt": 0}}}},
		{{Key: "$sort", Value: bson.D{{Key: "firstStockedAt", Value: 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var raw []struct {
		Key            domain.LedgerKey `bson:"_id"`
		Quantity       float64          `bson:"quantity"`
		FirstStockedAt time.Time        `bson:"firstStockedAt"`
		LastStockedAt  time.Time        `bson:"lastStockedAt"`
	}
	if err = cursor.All(ctx, &raw); err != nil {
		return nil, err
	}

	rows := make([]domain.BalanceRow, 0, len(raw))
	for _, doc := range raw {
		rows = append(rows, domain.BalanceRow{
			Key:            doc.Key,
			Quantity:       doc.Quantity,
			FirstStockedAt: doc.FirstStockedAt,
			LastStockedAt:  doc.LastStockedAt,
		})
	}
	return rows, nil
}

func (r *LedgerRepository) LocationsOfHandlingUnits(ctx context.Context, huCodes []string) (map[string]bool, error) {
	set := map[string]bool{}
	if len(huCodes) == 0 {
		return set, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"key.handlingUnit": bson.M{"$in": huCodes}}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"handlingUnit": "$key.handlingUnit",
				"location":     "$key.location",
			},
			"quantity": bson.M{"$sum": "$quantity"},
		}}},
		{{Key: "$match", Value: bson.M{"quantity": bson.M{"$gt": 0}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var raw []struct {
		Key struct {
			Location string `bson:"location"`
		} `bson:"_id"`
	}
	if err = cursor.All(ctx, &raw); err != nil {
		return nil, err
	}

	for _, doc := range raw {
		set[doc.Key.Location] = true
	}
	return set, nil
}
