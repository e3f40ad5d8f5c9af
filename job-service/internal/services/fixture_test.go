package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"handyman-app/job-service/internal/models"
	"handyman-app/job-service/internal/repository"
	"handyman-app/job-service/internal/repository/memstore"
	"handyman-app/job-service/internal/utils"

	"github.com/sirupsen/logrus"
)

const gatewaySecret = "rzp_test_secret"

var (
	customer = models.Actor{UserID: "c1", Role: models.RoleCustomer}
	worker   = models.Actor{UserID: "w1", Role: models.RoleWorker}
	admin    = models.Actor{UserID: "a1", Role: models.RoleAdmin}
)

type fakeGateway struct {
	mu     sync.Mutex
	orders int
	err    error
}

func (g *fakeGateway) CreateOrder(_ context.Context, _ int64, _, _ string, _ map[string]string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.orders++
	return fmt.Sprintf("order_%d", g.orders), nil
}

func (g *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return signature == utils.SignPayment(gatewaySecret, orderID, paymentID)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, notification models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return n.err
}

func (n *recordingNotifier) ofType(event models.NotificationEvent) []models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.Notification
	for _, s := range n.sent {
		if s.Type == event {
			out = append(out, s)
		}
	}
	return out
}

type fixture struct {
	log        *logrus.Logger
	mem        *memstore.Store
	store      *repository.Store
	gateway    *fakeGateway
	notifier   *recordingNotifier
	reputation ReputationService
	jobs       JobService
	noShows    NoShowService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	mem := memstore.New()
	store := mem.Repositories()
	gateway := &fakeGateway{}
	notifier := &recordingNotifier{}
	dispatcher := NewDispatcher(notifier, logger)
	reputation := NewReputationService(store, dispatcher, logger)

	return &fixture{
		log:        logger,
		mem:        mem,
		store:      store,
		gateway:    gateway,
		notifier:   notifier,
		reputation: reputation,
		jobs: NewJobService(store, reputation, gateway, utils.NoopLocker{}, dispatcher,
			PaymentSettings{Currency: "INR", KeyID: "rzp_test_key"}, logger),
		noShows: NewNoShowService(store, reputation, dispatcher, logger),
	}
}

func floatPtr(v float64) *float64 { return &v }

func (f *fixture) createJob(t *testing.T, workerID string, charge float64) *models.Job {
	t.Helper()
	job, err := f.jobs.Create(context.Background(), customer, CreateJobInput{
		WorkerID:    workerID,
		Description: "Fix leaking kitchen tap",
		Date:        time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC),
		Time:        "10:00",
		Location:    "Baner, Pune",
		Charge:      charge,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return job
}

func (f *fixture) act(t *testing.T, actor models.Actor, job *models.Job, in ActionInput) *ActionResult {
	t.Helper()
	res, err := f.jobs.PerformAction(context.Background(), actor, job.ID.Hex(), in)
	if err != nil {
		t.Fatalf("%s by %s: %v", in.Action, actor.UserID, err)
	}
	return res
}

func startInput() ActionInput {
	return ActionInput{
		Action:          models.ActionStart,
		StartProofPhoto: "https://cdn.example.com/proof.jpg",
		GpsLat:          floatPtr(18.5590),
		GpsLng:          floatPtr(73.7868),
	}
}

// inProgressJob books w1 and walks the job to IN_PROGRESS.
func (f *fixture) inProgressJob(t *testing.T, charge float64) *models.Job {
	t.Helper()
	job := f.createJob(t, worker.UserID, charge)
	f.act(t, worker, job, ActionInput{Action: models.ActionAccept})
	return f.act(t, worker, job, startInput()).Job
}

func (f *fixture) reputationOf(t *testing.T, workerID string) int {
	t.Helper()
	score, err := f.reputation.GetReputation(context.Background(), workerID)
	if err != nil {
		t.Fatalf("GetReputation: %v", err)
	}
	return score
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}

// interleaveTx runs before ahead of the next transaction, so a second
// request lands between another request's read and its write. Transactions
// opened by before itself pass straight through.
type interleaveTx struct {
	inner  repository.TxRunner
	before func()
}

func (tx *interleaveTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if before := tx.before; before != nil {
		tx.before = nil
		before()
	}
	return tx.inner.WithTransaction(ctx, fn)
}

// interleave arranges for before to run inside the next write.
func (f *fixture) interleave(before func()) {
	f.store.Tx = &interleaveTx{inner: f.store.Tx, before: before}
}
