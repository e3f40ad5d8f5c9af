package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TxRunner runs fn as one all-or-nothing unit. Repository calls made with the
// ctx passed to fn take part in the unit.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type mongoTxRunner struct {
	client *mongo.Client
}

// NewTxRunner needs a replica set or sharded cluster; standalone servers do
// not support multi-document transactions.
func NewTxRunner(client *mongo.Client) TxRunner {
	return &mongoTxRunner{client: client}
}

func (r *mongoTxRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// join the caller's transaction
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// Store bundles the repositories that make up the ledger store.
type Store struct {
	Jobs         JobRepository
	JobLogs      JobLogRepository
	NoShows      NoShowRepository
	Reputation   ReputationLogRepository
	Transactions TransactionRepository
	Workers      WorkerRepository
	Tx           TxRunner
}

func NewMongoStore(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{
		Jobs:         NewJobRepository(db),
		JobLogs:      NewJobLogRepository(db),
		NoShows:      NewNoShowRepository(db),
		Reputation:   NewReputationLogRepository(db),
		Transactions: NewTransactionRepository(db),
		Workers:      NewWorkerRepository(db),
		Tx:           NewTxRunner(client),
	}
}

// EnsureIndexes creates the indexes the uniqueness rules rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		"jobs": {
			{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "worker_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		"job_logs": {
			{Keys: bson.D{{Key: "job_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		"no_show_reports": {
			{Keys: bson.D{{Key: "job_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "worker_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "customer_id", Value: 1}}},
		},
		"reputation_logs": {
			{Keys: bson.D{{Key: "worker_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{
				Keys: bson.D{{Key: "job_id", Value: 1}, {Key: "cause_key", Value: 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{
					"job_id":    bson.M{"$type": "string"},
					"cause_key": bson.M{"$type": "string"},
				}),
			},
		},
		"transactions": {
			{
				Keys:    bson.D{{Key: "job_id", Value: 1}, {Key: "type", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		"workers": {
			{Keys: bson.D{{Key: "reputation", Value: -1}}},
			{Keys: bson.D{{Key: "skills", Value: 1}}},
		},
	}
	for coll, idx := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
