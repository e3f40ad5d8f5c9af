package models

import (
	"errors"
	"testing"
)

func TestClampReputation(t *testing.T) {
	tests := map[int]int{
		-51: -50,
		-50: -50,
		0:   0,
		100: 100,
		101: 100,
		250: 100,
	}
	for in, want := range tests {
		if got := ClampReputation(in); got != want {
			t.Errorf("ClampReputation(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestIsBookable(t *testing.T) {
	if !IsBookable(-5) {
		t.Error("-5 should be bookable")
	}
	if IsBookable(-6) {
		t.Error("-6 should not be bookable")
	}
	if !IsBookable(0) {
		t.Error("0 should be bookable")
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		reputation, completed int
		want                  Category
	}{
		{3, 0, CategoryNew},
		{50, 0, CategoryNew},
		{-10, 0, CategoryNew},
		{20, 1, CategoryTopRated},
		{19, 4, CategoryReliable},
		{5, 2, CategoryReliable},
		{4, 2, CategoryNeedsImprovement},
		{-20, 8, CategoryNeedsImprovement},
	}
	for _, tt := range tests {
		if got := Categorize(tt.reputation, tt.completed); got != tt.want {
			t.Errorf("Categorize(%d, %d) = %s, want %s", tt.reputation, tt.completed, got, tt.want)
		}
	}
}

func TestCauseKey(t *testing.T) {
	if ReasonNoShow.CauseKey() != ReasonCustomerRatedNoShow.CauseKey() {
		t.Error("no-show penalty and no-show rating must share a cause")
	}
	if ReasonCustomerRatedOnTime.CauseKey() != ReasonCustomerRatedLate.CauseKey() {
		t.Error("assessment reasons must share a cause")
	}
	if ReasonAdminOverride.CauseKey() != "" {
		t.Error("admin overrides are never deduplicated")
	}
	if ReasonJobCompleted.CauseKey() == ReasonNoShow.CauseKey() {
		t.Error("completion and no-show are different causes")
	}
}

func TestAssessment(t *testing.T) {
	tests := []struct {
		raw    string
		delta  int
		reason ReputationReason
	}{
		{"ON_TIME", 1, ReasonCustomerRatedOnTime},
		{"LATE", 0, ReasonCustomerRatedLate},
		{"NO_SHOW", -1, ReasonCustomerRatedNoShow},
	}
	for _, tt := range tests {
		a, err := ParseAssessment(tt.raw)
		if err != nil {
			t.Fatalf("ParseAssessment(%q): %v", tt.raw, err)
		}
		if a.Delta() != tt.delta || a.Reason() != tt.reason {
			t.Errorf("%s: delta %d reason %s", tt.raw, a.Delta(), a.Reason())
		}
	}
	if _, err := ParseAssessment("on_time"); !errors.Is(err, ErrValidation) {
		t.Errorf("lowercase assessment error = %v", err)
	}
}

func TestParseCategoryFilter(t *testing.T) {
	for raw, want := range map[string]Category{
		"top_rated":         CategoryTopRated,
		"RELIABLE":          CategoryReliable,
		"needs_improvement": CategoryNeedsImprovement,
		"new":               CategoryNew,
	} {
		got, err := ParseCategoryFilter(raw)
		if err != nil || got != want {
			t.Errorf("ParseCategoryFilter(%q) = %s, %v", raw, got, err)
		}
	}
	if _, err := ParseCategoryFilter("great"); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown filter error = %v", err)
	}
}

func TestReplayReputation(t *testing.T) {
	logs := []ReputationLog{
		{Change: 1}, {Change: 1}, {Change: -80}, {Change: 10}, {Change: 200}, {Change: -3},
	}
	// 1, 2, -50 (clamped), -40, 100 (clamped), 97
	if got := ReplayReputation(logs); got != 97 {
		t.Fatalf("ReplayReputation = %d, want 97", got)
	}
	if got := ReplayReputation(nil); got != 0 {
		t.Fatalf("empty ledger = %d, want 0", got)
	}
}
