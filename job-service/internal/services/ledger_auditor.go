package services

import (
	"context"
	"time"

	"handyman-app/job-service/internal/models"
	"handyman-app/job-service/internal/repository"
	"handyman-app/job-service/internal/telemetry"
	"handyman-app/job-service/internal/utils"

	"github.com/sirupsen/logrus"
)

// LedgerAuditor periodically replays every worker's reputation ledger and
// reports cached scores that drifted from it. It never rewrites scores.
type LedgerAuditor struct {
	workers    repository.WorkerRepository
	reputation ReputationService
	interval   time.Duration
	logger     *logrus.Logger
}

func NewLedgerAuditor(workers repository.WorkerRepository, reputation ReputationService, interval time.Duration, logger *logrus.Logger) *LedgerAuditor {
	return &LedgerAuditor{
		workers:    workers,
		reputation: reputation,
		interval:   interval,
		logger:     logger,
	}
}

func (a *LedgerAuditor) Start(ctx context.Context) {
	if a.interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.RunOnce(ctx)
			case <-ctx.Done():
				a.logger.Info("stopping ledger auditor")
				return
			}
		}
	}()
}

// RunOnce audits all workers and returns the ones whose score drifted.
func (a *LedgerAuditor) RunOnce(ctx context.Context) []ReconcileResult {
	workers, err := a.workers.Search(ctx, models.WorkerFilter{Sort: models.SortByNewest})
	if err != nil {
		utils.LogError(a.logger, "services", "LedgerAuditor.RunOnce", "list workers", nil, err)
		return nil
	}
	var drifted []ReconcileResult
	for _, w := range workers {
		res, err := a.reputation.Reconcile(ctx, w.ID, false)
		if err != nil {
			utils.LogError(a.logger, "services", "LedgerAuditor.RunOnce", "reconcile", w.ID, err)
			continue
		}
		if !res.Consistent {
			drifted = append(drifted, *res)
			a.logger.WithFields(logrus.Fields{
				"worker_id": res.WorkerID,
				"cached":    res.Cached,
				"replayed":  res.Replayed,
			}).Warn("reputation scalar drifted from ledger")
		}
	}
	telemetry.LedgerDrift.Set(float64(len(drifted)))
	return drifted
}
