package repository

import (
	"context"
	"errors"

	"handyman-app/job-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ReputationLogRepository is the authoritative reputation ledger. Entries are
// never updated or deleted.
type ReputationLogRepository interface {
	// Append fails with models.ErrDuplicateReputationEvent when an entry with
	// the same job and cause already exists.
	Append(ctx context.Context, entry *models.ReputationLog) error
	ExistsForCause(ctx context.Context, jobID, causeKey string) (bool, error)
	// ListByWorker returns entries newest first.
	ListByWorker(ctx context.Context, workerID string, limit int) ([]models.ReputationLog, error)
	// Replay returns every entry for the worker oldest first.
	Replay(ctx context.Context, workerID string) ([]models.ReputationLog, error)
}

type reputationLogRepository struct {
	collection *mongo.Collection
}

func NewReputationLogRepository(db *mongo.Database) ReputationLogRepository {
	return &reputationLogRepository{collection: db.Collection("reputation_logs")}
}

func (r *reputationLogRepository) Append(ctx context.Context, entry *models.ReputationLog) error {
	entry.ID = primitive.NewObjectID()
	_, err := r.collection.InsertOne(ctx, entry)
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrDuplicateReputationEvent
	}
	return err
}

func (r *reputationLogRepository) ExistsForCause(ctx context.Context, jobID, causeKey string) (bool, error) {
	if jobID == "" || causeKey == "" {
		return false, nil
	}
	err := r.collection.FindOne(ctx, bson.M{"job_id": jobID, "cause_key": causeKey}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *reputationLogRepository) ListByWorker(ctx context.Context, workerID string, limit int) ([]models.ReputationLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, bson.M{"worker_id": workerID}, opts)
}

func (r *reputationLogRepository) Replay(ctx context.Context, workerID string) ([]models.ReputationLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	return r.find(ctx, bson.M{"worker_id": workerID}, opts)
}

func (r *reputationLogRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.ReputationLog, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	logs := make([]models.ReputationLog, 0)
	err = cursor.All(ctx, &logs)
	return logs, err
}
