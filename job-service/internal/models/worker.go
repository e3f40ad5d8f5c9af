package models

import (
	"fmt"
	"time"
)

// Worker is the reputation-bearing part of a worker profile. ID is the
// worker's user id.
type Worker struct {
	ID            string    `bson:"_id" json:"id"`
	Name          string    `bson:"name,omitempty" json:"name,omitempty"`
	Skills        []string  `bson:"skills,omitempty" json:"skills,omitempty"`
	Location      string    `bson:"location,omitempty" json:"location,omitempty"`
	Reputation    int       `bson:"reputation" json:"reputation"`
	CompletedJobs int       `bson:"completed_jobs" json:"completedJobs"`
	CreatedAt     time.Time `bson:"created_at,omitempty" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updated_at,omitempty" json:"updatedAt"`
}

type WorkerSort string

const (
	SortByReputation    WorkerSort = "reputation"
	SortByCompletedJobs WorkerSort = "completed_jobs"
	SortByNewest        WorkerSort = "newest"
)

func ParseWorkerSort(raw string) (WorkerSort, error) {
	switch s := WorkerSort(raw); s {
	case "":
		return SortByReputation, nil
	case SortByReputation, SortByCompletedJobs, SortByNewest:
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown sort %q", ErrValidation, raw)
}

// WorkerFilter is the normalized form of a worker search query.
type WorkerFilter struct {
	MinReputation *int       `json:"minReputation,omitempty"`
	Category      Category   `json:"category,omitempty"`
	BookableOnly  bool       `json:"bookableOnly,omitempty"`
	Skill         string     `json:"skill,omitempty"`
	Sort          WorkerSort `json:"sort"`
	Limit         int        `json:"limit"`
}

// Matches applies the filter to a single worker. Stores that cannot express
// the category rule in a query use it as a post-filter.
func (f WorkerFilter) Matches(w Worker) bool {
	if f.MinReputation != nil && w.Reputation < *f.MinReputation {
		return false
	}
	if f.BookableOnly && !IsBookable(w.Reputation) {
		return false
	}
	if f.Category != "" && Categorize(w.Reputation, w.CompletedJobs) != f.Category {
		return false
	}
	if f.Skill != "" {
		found := false
		for _, s := range w.Skills {
			if s == f.Skill {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

type WorkerSummary struct {
	Worker
	Category    Category `json:"category"`
	CanBeBooked bool     `json:"canBeBooked"`
}
