package repository

import (
	"context"

	"handyman-app/job-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// JobLogRepository is append-only.
type JobLogRepository interface {
	Append(ctx context.Context, entry *models.JobLog) error
	ListByJob(ctx context.Context, jobID string) ([]models.JobLog, error)
}

type jobLogRepository struct {
	collection *mongo.Collection
}

func NewJobLogRepository(db *mongo.Database) JobLogRepository {
	return &jobLogRepository{collection: db.Collection("job_logs")}
}

func (r *jobLogRepository) Append(ctx context.Context, entry *models.JobLog) error {
	entry.ID = primitive.NewObjectID()
	_, err := r.collection.InsertOne(ctx, entry)
	return err
}

func (r *jobLogRepository) ListByJob(ctx context.Context, jobID string) ([]models.JobLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"job_id": jobID}, opts)
	if err != nil {
		return nil, err
	}
	logs := make([]models.JobLog, 0)
	err = cursor.All(ctx, &logs)
	return logs, err
}
