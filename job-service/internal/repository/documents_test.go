package repository

import (
	"reflect"
	"testing"
	"time"

	"handyman-app/job-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestJobChangeDocuments(t *testing.T) {
	id := primitive.NewObjectID()
	at := time.Date(2026, 11, 3, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		change     models.JobChange
		wantFilter bson.M
		wantSet    bson.M
	}{
		{
			name:       "accept claims unassigned or own job",
			change:     models.JobChange{From: models.StatusPending, To: models.StatusAccepted, AssignWorker: "w1", At: at},
			wantFilter: bson.M{"_id": id, "status": models.StatusPending, "worker_id": bson.M{"$in": bson.A{nil, "w1"}}},
			wantSet:    bson.M{"updated_at": at, "status": models.StatusAccepted, "worker_id": "w1"},
		},
		{
			name:   "start writes proof only",
			change: models.JobChange{From: models.StatusAccepted, To: models.StatusInProgress, Start: &models.StartProof{Photo: "p.jpg", GpsLat: 18.5, GpsLng: 73.8}, At: at},
			wantFilter: bson.M{"_id": id, "status": models.StatusAccepted},
			wantSet: bson.M{
				"updated_at":          at,
				"status":              models.StatusInProgress,
				"started_at":          at,
				"start_proof_photo":   "p.jpg",
				"start_proof_gps_lat": 18.5,
				"start_proof_gps_lng": 73.8,
			},
		},
		{
			name:       "worker complete requires unmarked job",
			change:     models.JobChange{From: models.StatusInProgress, MarkWorkerComplete: true, At: at},
			wantFilter: bson.M{"_id": id, "status": models.StatusInProgress, "worker_marked_complete": bson.M{"$ne": true}},
			wantSet:    bson.M{"updated_at": at, "worker_marked_complete": true},
		},
		{
			name:       "cancel",
			change:     models.JobChange{From: models.StatusPending, To: models.StatusCancelled, Cancel: &models.Cancellation{By: "c1", Reason: "changed plans"}, At: at},
			wantFilter: bson.M{"_id": id, "status": models.StatusPending},
			wantSet: bson.M{
				"updated_at":    at,
				"status":        models.StatusCancelled,
				"cancelled_at":  at,
				"cancelled_by":  "c1",
				"cancel_reason": "changed plans",
			},
		},
		{
			name: "settlement pins the stored order",
			change: models.JobChange{
				From:    models.StatusInProgress,
				To:      models.StatusCompleted,
				Payment: &models.PaymentSettlement{OrderID: "order_1", PaymentID: "pay_1", Signature: "sig", PlatformFee: 100, WorkerEarnings: 900},
				At:      at,
			},
			wantFilter: bson.M{
				"_id":               id,
				"status":            models.StatusInProgress,
				"razorpay_order_id": "order_1",
				"payment_status":    bson.M{"$ne": models.PaymentSuccess},
			},
			wantSet: bson.M{
				"updated_at":          at,
				"status":              models.StatusCompleted,
				"completed_at":        at,
				"payment_status":      models.PaymentSuccess,
				"razorpay_payment_id": "pay_1",
				"razorpay_signature":  "sig",
				"platform_fee":        100.0,
				"worker_earnings":     900.0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := jobChangeFilter(id, tt.change); !reflect.DeepEqual(got, tt.wantFilter) {
				t.Errorf("filter = %v, want %v", got, tt.wantFilter)
			}
			want := bson.M{"$set": tt.wantSet}
			if got := jobChangeUpdate(tt.change); !reflect.DeepEqual(got, want) {
				t.Errorf("update = %v, want %v", got, want)
			}
		})
	}
}

func TestJobChangeUpdateLeavesPaymentAndAssessmentAlone(t *testing.T) {
	guarded := []string{"razorpay_order_id", "payment_status", "reputation_assessed", "reputation_assessment_type"}
	for _, c := range []models.JobChange{
		{From: models.StatusPending, To: models.StatusAccepted, AssignWorker: "w1"},
		{From: models.StatusAccepted, To: models.StatusInProgress, Start: &models.StartProof{Photo: "p.jpg"}},
		{From: models.StatusInProgress, MarkWorkerComplete: true},
		{From: models.StatusAccepted, To: models.StatusCancelled, Cancel: &models.Cancellation{By: "w1"}},
	} {
		set := jobChangeUpdate(c)["$set"].(bson.M)
		for _, field := range guarded {
			if _, ok := set[field]; ok {
				t.Errorf("change %+v writes %s", c, field)
			}
		}
	}
}

func TestPaymentOrderFilter(t *testing.T) {
	id := primitive.NewObjectID()
	want := bson.M{
		"_id":    id,
		"status": models.StatusInProgress,
		"$or": bson.A{
			bson.M{"razorpay_order_id": bson.M{"$exists": false}},
			bson.M{"razorpay_order_id": ""},
		},
	}
	if got := paymentOrderFilter(id); !reflect.DeepEqual(got, want) {
		t.Errorf("paymentOrderFilter = %v, want %v", got, want)
	}
}

func TestReputationDeltaPipeline(t *testing.T) {
	got := reputationDeltaPipeline(-3, models.MinReputation, models.MaxReputation)
	want := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"reputation": bson.M{"$min": bson.A{100, bson.M{"$max": bson.A{-50, bson.M{"$add": bson.A{
				bson.M{"$ifNull": bson.A{"$reputation", 0}}, -3,
			}}}}}},
			"completed_jobs": bson.M{"$ifNull": bson.A{"$completed_jobs", 0}},
			"created_at":     bson.M{"$ifNull": bson.A{"$created_at", "$$NOW"}},
			"updated_at":     "$$NOW",
		}}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("pipeline = %v, want %v", got, want)
	}
}

func TestWorkerSearchQuery(t *testing.T) {
	minRep := 10
	low := -20
	tests := []struct {
		name      string
		filter    models.WorkerFilter
		wantQuery bson.M
		wantSort  bson.D
	}{
		{
			name:      "defaults sort by reputation",
			filter:    models.WorkerFilter{},
			wantQuery: bson.M{},
			wantSort:  bson.D{{Key: "reputation", Value: -1}, {Key: "completed_jobs", Value: -1}},
		},
		{
			name:      "bookable raises a low minimum to the threshold",
			filter:    models.WorkerFilter{MinReputation: &low, BookableOnly: true, Sort: models.SortByNewest},
			wantQuery: bson.M{"reputation": bson.M{"$gte": models.BookingThreshold}},
			wantSort:  bson.D{{Key: "created_at", Value: -1}},
		},
		{
			name:      "higher minimum wins over threshold",
			filter:    models.WorkerFilter{MinReputation: &minRep, BookableOnly: true, Skill: "plumbing", Category: models.CategoryReliable},
			wantQuery: bson.M{"reputation": bson.M{"$gte": 10}, "skills": "plumbing", "completed_jobs": bson.M{"$gt": 0}},
			wantSort:  bson.D{{Key: "reputation", Value: -1}, {Key: "completed_jobs", Value: -1}},
		},
		{
			name:      "new workers",
			filter:    models.WorkerFilter{Category: models.CategoryNew, Sort: models.SortByCompletedJobs},
			wantQuery: bson.M{"completed_jobs": bson.M{"$lte": 0}},
			wantSort:  bson.D{{Key: "completed_jobs", Value: -1}, {Key: "reputation", Value: -1}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, sort := workerSearchQuery(tt.filter)
			if !reflect.DeepEqual(q, tt.wantQuery) {
				t.Errorf("query = %v, want %v", q, tt.wantQuery)
			}
			if !reflect.DeepEqual(sort, tt.wantSort) {
				t.Errorf("sort = %v, want %v", sort, tt.wantSort)
			}
		})
	}
}
