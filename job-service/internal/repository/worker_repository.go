package repository

import (
	"context"
	"errors"
	"time"

	"handyman-app/job-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type WorkerRepository interface {
	GetByID(ctx context.Context, id string) (*models.Worker, error)
	// ApplyReputationDelta adds change to the stored score and clamps the
	// result to [lo, hi] in a single server-side operation. A missing
	// worker document is created with a score of 0 before the change.
	ApplyReputationDelta(ctx context.Context, id string, change, lo, hi int) (before, after int, err error)
	SetReputation(ctx context.Context, id string, score int) error
	IncrementCompletedJobs(ctx context.Context, id string) error
	Search(ctx context.Context, filter models.WorkerFilter) ([]models.Worker, error)
}

type workerRepository struct {
	collection *mongo.Collection
}

func NewWorkerRepository(db *mongo.Database) WorkerRepository {
	return &workerRepository{collection: db.Collection("workers")}
}

func (r *workerRepository) GetByID(ctx context.Context, id string) (*models.Worker, error) {
	var w models.Worker
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&w)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *workerRepository) ApplyReputationDelta(ctx context.Context, id string, change, lo, hi int) (int, int, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.Before).
		SetProjection(bson.M{"reputation": 1})

	var prev struct {
		Reputation int `bson:"reputation"`
	}
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, reputationDeltaPipeline(change, lo, hi), opts).Decode(&prev)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, 0, err
	}
	// ErrNoDocuments means the document was just upserted from a score of 0.
	before := prev.Reputation
	return before, clamp(before+change, lo, hi), nil
}

// reputationDeltaPipeline clamps reputation+change into [lo, hi] on the
// server and fills defaults for a freshly upserted worker.
func reputationDeltaPipeline(change, lo, hi int) mongo.Pipeline {
	current := bson.M{"$ifNull": bson.A{"$reputation", 0}}
	clamped := bson.M{"$min": bson.A{hi, bson.M{"$max": bson.A{lo, bson.M{"$add": bson.A{current, change}}}}}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"reputation":     clamped,
			"completed_jobs": bson.M{"$ifNull": bson.A{"$completed_jobs", 0}},
			"created_at":     bson.M{"$ifNull": bson.A{"$created_at", "$$NOW"}},
			"updated_at":     "$$NOW",
		}}},
	}
}

func (r *workerRepository) SetReputation(ctx context.Context, id string, score int) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"reputation": score, "updated_at": time.Now().UTC()},
	}, options.Update().SetUpsert(true))
	return err
}

func (r *workerRepository) IncrementCompletedJobs(ctx context.Context, id string) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"completed_jobs": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}, options.Update().SetUpsert(true))
	return err
}

func (r *workerRepository) Search(ctx context.Context, filter models.WorkerFilter) ([]models.Worker, error) {
	q, sort := workerSearchQuery(filter)
	cursor, err := r.collection.Find(ctx, q, options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}
	var all []models.Worker
	if err := cursor.All(ctx, &all); err != nil {
		return nil, err
	}

	// category bands depend on two fields; finish them in memory
	out := make([]models.Worker, 0, len(all))
	for _, w := range all {
		if !filter.Matches(w) {
			continue
		}
		out = append(out, w)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// workerSearchQuery narrows the scan server-side; category bands are
// finished in memory by WorkerFilter.Matches.
func workerSearchQuery(filter models.WorkerFilter) (bson.M, bson.D) {
	q := bson.M{}
	rep := bson.M{}
	if filter.MinReputation != nil {
		rep["$gte"] = *filter.MinReputation
	}
	if filter.BookableOnly {
		if v, ok := rep["$gte"].(int); !ok || v < models.BookingThreshold {
			rep["$gte"] = models.BookingThreshold
		}
	}
	if len(rep) > 0 {
		q["reputation"] = rep
	}
	if filter.Skill != "" {
		q["skills"] = filter.Skill
	}
	switch filter.Category {
	case models.CategoryNew:
		q["completed_jobs"] = bson.M{"$lte": 0}
	case models.CategoryTopRated, models.CategoryReliable, models.CategoryNeedsImprovement:
		q["completed_jobs"] = bson.M{"$gt": 0}
	}

	var sort bson.D
	switch filter.Sort {
	case models.SortByCompletedJobs:
		sort = bson.D{{Key: "completed_jobs", Value: -1}, {Key: "reputation", Value: -1}}
	case models.SortByNewest:
		sort = bson.D{{Key: "created_at", Value: -1}}
	default:
		sort = bson.D{{Key: "reputation", Value: -1}, {Key: "completed_jobs", Value: -1}}
	}

	return q, sort
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
