package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/agilasoft/logistics-sub000/internal/domain"
)

// JobRepository persists job aggregates whole: header, demand lines and
// planned items replace together on every save.
type JobRepository struct {
	collection *mongo.Collection
}

func NewJobRepository(db *mongo.Database) *JobRepository {
	collection := db.Collection("job_orders")

	repo := &JobRepository{
		collection: collection,
	}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *JobRepository) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "jobId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "type", Value: 1}}},
		{Keys: bson.D{{Key: "scope.company", Value: 1}, {Key: "scope.branch", Value: 1}}},
		{Keys: bson.D{{Key: "updatedAt", Value: -1}}},
	}
	r.collection.Indexes().CreateMany(ctx, indexes)
}

func (r *JobRepository) FindByID(ctx context.Context, jobID string) (*domain.JobOrder, error) {
	var job domain.JobOrder
	err := r.collection.FindOne(ctx, bson.M{"jobId": jobID}).Decode(&job)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobRepository) Save(ctx context.Context, job *domain.JobOrder) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"jobId": job.JobID}, job, opts)
	return err
}
