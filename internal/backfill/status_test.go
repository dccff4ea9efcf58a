package backfill

import (
	"strings"
	"testing"
	"time"
)

// TestComputeStatsEmpty verifies stats over a fresh progress database.
func TestComputeStatsEmpty(t *testing.T) {
	p := openTestProgress(t)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	stats, err := ComputeStats(p, start, end)
	if err != nil {
		t.Fatalf("ComputeStats returned error: %v", err)
	}
	if stats.TotalDaysInRange != 10 {
		t.Errorf("total days = %d, want 10", stats.TotalDaysInRange)
	}
	if stats.Completed != 0 || stats.Remaining != 10 {
		t.Errorf("completed/remaining = %d/%d, want 0/10", stats.Completed, stats.Remaining)
	}
	if stats.PercentComplete != 0 {
		t.Errorf("percent = %v, want 0", stats.PercentComplete)
	}
}

// TestComputeStatsWithGaps verifies gap detection within the imported range.
func TestComputeStatsWithGaps(t *testing.T) {
	p := openTestProgress(t)

	// 2026-01-04 and 2026-01-06 are missing inside the imported span.
	for _, day := range []string{"2026-01-03", "2026-01-05", "2026-01-07"} {
		if err := p.MarkCompleted(day, 100); err != nil {
			t.Fatal(err)
		}
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	stats, err := ComputeStats(p, start, end)
	if err != nil {
		t.Fatalf("ComputeStats returned error: %v", err)
	}

	if stats.Completed != 3 {
		t.Errorf("completed = %d, want 3", stats.Completed)
	}
	if stats.EarliestImported != "2026-01-03" || stats.LatestImported != "2026-01-07" {
		t.Errorf("coverage = %s..%s, want 2026-01-03..2026-01-07",
			stats.EarliestImported, stats.LatestImported)
	}
	if stats.GapCount != 2 {
		t.Fatalf("gap count = %d, want 2", stats.GapCount)
	}
	if stats.Gaps[0] != "2026-01-04" || stats.Gaps[1] != "2026-01-06" {
		t.Errorf("gaps = %v, want [2026-01-04 2026-01-06]", stats.Gaps)
	}
	if stats.TotalPoints != 300 {
		t.Errorf("total points = %d, want 300", stats.TotalPoints)
	}
	if stats.PercentComplete != 30.0 {
		t.Errorf("percent = %v, want 30.0", stats.PercentComplete)
	}
}

// TestStatsReport verifies the human-readable report mentions the key facts.
func TestStatsReport(t *testing.T) {
	stats := &Stats{
		TotalDaysInRange: 100,
		Completed:        40,
		Remaining:        60,
		PercentComplete:  40.0,
		RangeStart:       "2026-01-01",
		RangeEnd:         "2026-04-10",
		EarliestImported: "2026-03-01",
		LatestImported:   "2026-04-10",
		Gaps:             []string{"2026-03-15"},
		GapCount:         1,
		TotalPoints:      123456,
		RateDaysPerDay:   5.5,
		ETADays:          11,
		SinceLastUpdate:  "2m ago",
	}

	report := stats.Report()
	for _, want := range []string{
		"40/100 days (40.0%)",
		"Remaining:  60 days",
		"2026-01-01 to 2026-04-10",
		"123456",
		"1 missing day(s): 2026-03-15",
		"~5.5 days imported per calendar day",
		"~11 days to complete",
		"2m ago",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}

// TestFindGaps verifies gap detection edge cases.
func TestFindGaps(t *testing.T) {
	if gaps := findGaps(nil); len(gaps) != 0 {
		t.Errorf("nil input: got %v", gaps)
	}
	if gaps := findGaps([]string{"2026-01-01"}); len(gaps) != 0 {
		t.Errorf("single day: got %v", gaps)
	}
	if gaps := findGaps([]string{"2026-01-01", "2026-01-02"}); len(gaps) != 0 {
		t.Errorf("contiguous days: got %v", gaps)
	}
}
