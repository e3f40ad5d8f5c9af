package repository

import (
	"context"
	"errors"
	"time"

	"handyman-app/job-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type NoShowRepository interface {
	// Create fails with models.ErrAlreadyExists when the job already has a report.
	Create(ctx context.Context, report *models.NoShowReport) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.NoShowReport, error)
	GetByJobID(ctx context.Context, jobID string) (*models.NoShowReport, error)
	List(ctx context.Context, filter models.NoShowFilter) ([]models.NoShowReport, error)
	// UpdateIfStatus replaces the report only while its stored status is one
	// of expected. Returns models.ErrStaleWrite otherwise.
	UpdateIfStatus(ctx context.Context, report *models.NoShowReport, expected []models.ReportStatus) error
}

type noShowRepository struct {
	collection *mongo.Collection
}

func NewNoShowRepository(db *mongo.Database) NoShowRepository {
	return &noShowRepository{collection: db.Collection("no_show_reports")}
}

func (r *noShowRepository) Create(ctx context.Context, report *models.NoShowReport) error {
	now := time.Now().UTC()
	report.ID = primitive.NewObjectID()
	report.CreatedAt = now
	report.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, report)
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrAlreadyExists
	}
	return err
}

func (r *noShowRepository) findOne(ctx context.Context, filter bson.M) (*models.NoShowReport, error) {
	var report models.NoShowReport
	err := r.collection.FindOne(ctx, filter).Decode(&report)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *noShowRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.NoShowReport, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *noShowRepository) GetByJobID(ctx context.Context, jobID string) (*models.NoShowReport, error) {
	return r.findOne(ctx, bson.M{"job_id": jobID})
}

func (r *noShowRepository) List(ctx context.Context, filter models.NoShowFilter) ([]models.NoShowReport, error) {
	q := bson.M{}
	if filter.CustomerID != "" {
		q["customer_id"] = filter.CustomerID
	}
	if filter.WorkerID != "" {
		q["worker_id"] = filter.WorkerID
	}
	if filter.Status != "" {
		q["status"] = filter.Status
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	reports := make([]models.NoShowReport, 0)
	err = cursor.All(ctx, &reports)
	return reports, err
}

func (r *noShowRepository) UpdateIfStatus(ctx context.Context, report *models.NoShowReport, expected []models.ReportStatus) error {
	report.UpdatedAt = time.Now().UTC()
	filter := bson.M{"_id": report.ID, "status": bson.M{"$in": expected}}
	res, err := r.collection.ReplaceOne(ctx, filter, report)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrStaleWrite
	}
	return nil
}
