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

type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Job, error)
	ListByCustomer(ctx context.Context, customerID string) ([]models.Job, error)
	ListByWorker(ctx context.Context, workerID string) ([]models.Job, error)
	ListByStatus(ctx context.Context, status models.JobStatus) ([]models.Job, error)
	// ApplyChange writes only the fields change names, and only while its
	// preconditions hold on the stored job. Returns models.ErrStaleWrite
	// otherwise.
	ApplyChange(ctx context.Context, id primitive.ObjectID, change models.JobChange) error
	// SetPaymentOrder records the gateway order id once. The returned bool is
	// false when an order id was already present.
	SetPaymentOrder(ctx context.Context, id primitive.ObjectID, orderID string) (bool, error)
	// MarkReputationAssessed flips reputation_assessed from false to true.
	// The returned bool is false when the job was already assessed.
	MarkReputationAssessed(ctx context.Context, id primitive.ObjectID, assessment models.Assessment) (bool, error)
}

type jobRepository struct {
	collection *mongo.Collection
}

func NewJobRepository(db *mongo.Database) JobRepository {
	return &jobRepository{collection: db.Collection("jobs")}
}

func (r *jobRepository) Create(ctx context.Context, job *models.Job) error {
	now := time.Now().UTC()
	job.ID = primitive.NewObjectID()
	job.CreatedAt = now
	job.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, job)
	return err
}

func (r *jobRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Job, error) {
	var job models.Job
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) find(ctx context.Context, filter bson.M) ([]models.Job, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	jobs := make([]models.Job, 0)
	err = cursor.All(ctx, &jobs)
	return jobs, err
}

func (r *jobRepository) ListByCustomer(ctx context.Context, customerID string) ([]models.Job, error) {
	return r.find(ctx, bson.M{"customer_id": customerID})
}

func (r *jobRepository) ListByWorker(ctx context.Context, workerID string) ([]models.Job, error) {
	return r.find(ctx, bson.M{"worker_id": workerID})
}

func (r *jobRepository) ListByStatus(ctx context.Context, status models.JobStatus) ([]models.Job, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	return r.find(ctx, filter)
}

func (r *jobRepository) ApplyChange(ctx context.Context, id primitive.ObjectID, change models.JobChange) error {
	res, err := r.collection.UpdateOne(ctx, jobChangeFilter(id, change), jobChangeUpdate(change))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrStaleWrite
	}
	return nil
}

func jobChangeFilter(id primitive.ObjectID, c models.JobChange) bson.M {
	filter := bson.M{"_id": id, "status": c.From}
	if c.AssignWorker != "" {
		// a missing or null worker_id both match nil
		filter["worker_id"] = bson.M{"$in": bson.A{nil, c.AssignWorker}}
	}
	if c.MarkWorkerComplete {
		filter["worker_marked_complete"] = bson.M{"$ne": true}
	}
	if c.Payment != nil {
		filter["razorpay_order_id"] = c.Payment.OrderID
		filter["payment_status"] = bson.M{"$ne": models.PaymentSuccess}
	}
	return filter
}

func jobChangeUpdate(c models.JobChange) bson.M {
	set := bson.M{"updated_at": c.At}
	if c.To != "" {
		set["status"] = c.To
	}
	if c.AssignWorker != "" {
		set["worker_id"] = c.AssignWorker
	}
	if c.MarkWorkerComplete {
		set["worker_marked_complete"] = true
	}
	if p := c.Start; p != nil {
		set["started_at"] = c.At
		set["start_proof_photo"] = p.Photo
		set["start_proof_gps_lat"] = p.GpsLat
		set["start_proof_gps_lng"] = p.GpsLng
	}
	if cancel := c.Cancel; cancel != nil {
		set["cancelled_at"] = c.At
		set["cancelled_by"] = cancel.By
		set["cancel_reason"] = cancel.Reason
	}
	if p := c.Payment; p != nil {
		set["completed_at"] = c.At
		set["payment_status"] = models.PaymentSuccess
		set["razorpay_payment_id"] = p.PaymentID
		set["razorpay_signature"] = p.Signature
		set["platform_fee"] = p.PlatformFee
		set["worker_earnings"] = p.WorkerEarnings
	}
	return bson.M{"$set": set}
}

func (r *jobRepository) SetPaymentOrder(ctx context.Context, id primitive.ObjectID, orderID string) (bool, error) {
	res, err := r.collection.UpdateOne(ctx, paymentOrderFilter(id), bson.M{"$set": bson.M{
		"razorpay_order_id": orderID,
		"payment_status":    models.PaymentPending,
		"updated_at":        time.Now().UTC(),
	}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func paymentOrderFilter(id primitive.ObjectID) bson.M {
	return bson.M{
		"_id":    id,
		"status": models.StatusInProgress,
		"$or": bson.A{
			bson.M{"razorpay_order_id": bson.M{"$exists": false}},
			bson.M{"razorpay_order_id": ""},
		},
	}
}

func (r *jobRepository) MarkReputationAssessed(ctx context.Context, id primitive.ObjectID, assessment models.Assessment) (bool, error) {
	filter := bson.M{"_id": id, "reputation_assessed": bson.M{"$ne": true}}
	update := bson.M{"$set": bson.M{
		"reputation_assessed":        true,
		"reputation_assessment_type": assessment,
		"updated_at":                 time.Now().UTC(),
	}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}
