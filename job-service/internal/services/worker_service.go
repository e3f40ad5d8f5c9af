package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"handyman-app/job-service/internal/models"
	"handyman-app/job-service/internal/repository"
	"handyman-app/job-service/internal/utils"

	"github.com/sirupsen/logrus"
)

const (
	defaultWorkerLimit = 20
	maxWorkerLimit     = 100
)

// SearchCache is the read-through cache in front of worker search.
type SearchCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, v any) error
}

type WorkerService interface {
	Search(ctx context.Context, filter models.WorkerFilter) ([]models.WorkerSummary, error)
}

type workerService struct {
	workers repository.WorkerRepository
	cache   SearchCache
	logger  *logrus.Logger
}

// NewWorkerService accepts a nil cache.
func NewWorkerService(workers repository.WorkerRepository, cache SearchCache, logger *logrus.Logger) WorkerService {
	return &workerService{workers: workers, cache: cache, logger: logger}
}

// ParseWorkerFilter normalizes the /api/workers query string.
func ParseWorkerFilter(q url.Values) (models.WorkerFilter, error) {
	var f models.WorkerFilter
	if raw := strings.TrimSpace(q.Get("minReputation")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return f, fmt.Errorf("%w: minReputation must be an integer", models.ErrValidation)
		}
		f.MinReputation = &v
	}
	if raw := strings.TrimSpace(q.Get("reputationFilter")); raw != "" && raw != "all" {
		c, err := models.ParseCategoryFilter(raw)
		if err != nil {
			return f, err
		}
		f.Category = c
	}
	if raw := strings.TrimSpace(q.Get("bookableOnly")); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return f, fmt.Errorf("%w: bookableOnly must be true or false", models.ErrValidation)
		}
		f.BookableOnly = b
	}
	sort, err := models.ParseWorkerSort(strings.TrimSpace(q.Get("sort")))
	if err != nil {
		return f, err
	}
	f.Sort = sort
	f.Skill = strings.TrimSpace(q.Get("skill"))

	f.Limit = defaultWorkerLimit
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return f, fmt.Errorf("%w: limit must be a positive integer", models.ErrValidation)
		}
		if n > maxWorkerLimit {
			n = maxWorkerLimit
		}
		f.Limit = n
	}
	return f, nil
}

func (s *workerService) Search(ctx context.Context, filter models.WorkerFilter) ([]models.WorkerSummary, error) {
	key, keyErr := utils.HashKey(filter)
	if s.cache != nil && keyErr == nil {
		var cached []models.WorkerSummary
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			utils.LogWarn(s.logger, "services", "WorkerSearch", "cache read failed", key, err)
		}
		if hit {
			return cached, nil
		}
	}

	workers, err := s.workers.Search(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]models.WorkerSummary, 0, len(workers))
	for _, w := range workers {
		out = append(out, models.WorkerSummary{
			Worker:      w,
			Category:    models.Categorize(w.Reputation, w.CompletedJobs),
			CanBeBooked: models.IsBookable(w.Reputation),
		})
	}

	if s.cache != nil && keyErr == nil {
		if err := s.cache.Set(ctx, key, out); err != nil {
			utils.LogWarn(s.logger, "services", "WorkerSearch", "cache write failed", key, err)
		}
	}
	return out, nil
}
