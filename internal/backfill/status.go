package backfill

import (
	"fmt"
	"strings"
	"time"
)

// Stats summarizes backfill progress over a date range.
type Stats struct {
	TotalDaysInRange int      `json:"total_days_in_range"`
	Completed        int      `json:"completed"`
	Remaining        int      `json:"remaining"`
	PercentComplete  float64  `json:"percent_complete"`
	RangeStart       string   `json:"range_start"`
	RangeEnd         string   `json:"range_end"`
	EarliestImported string   `json:"earliest_imported,omitempty"`
	LatestImported   string   `json:"latest_imported,omitempty"`
	Gaps             []string `json:"gaps_in_completed_range"`
	GapCount         int      `json:"gap_count"`
	TotalPoints      int      `json:"total_points"`
	LastUpdated      string   `json:"last_updated,omitempty"`
	SinceLastUpdate  string   `json:"since_last_update,omitempty"`
	RateDaysPerDay   float64  `json:"rate_days_per_day,omitempty"`
	ETADays          int      `json:"estimated_days_to_complete,omitempty"`
}

const dayLayout = "2006-01-02"

// ComputeStats derives progress statistics from the progress database for
// the [start, end] date range (dates in YYYY-MM-DD form, inclusive).
func ComputeStats(p *Progress, start, end time.Time) (*Stats, error) {
	days, err := p.CompletedDays()
	if err != nil {
		return nil, fmt.Errorf("listing completed days: %w", err)
	}
	totalPoints, err := p.TotalPoints()
	if err != nil {
		return nil, fmt.Errorf("summing points: %w", err)
	}
	firstAt, lastAt, err := p.CompletionTimes()
	if err != nil {
		return nil, fmt.Errorf("reading completion times: %w", err)
	}

	totalDays := int(end.Sub(start).Hours()/24) + 1
	stats := &Stats{
		TotalDaysInRange: totalDays,
		Completed:        len(days),
		Remaining:        totalDays - len(days),
		RangeStart:       start.Format(dayLayout),
		RangeEnd:         end.Format(dayLayout),
		TotalPoints:      totalPoints,
		Gaps:             []string{},
	}
	if totalDays > 0 {
		stats.PercentComplete = round1(float64(len(days)) / float64(totalDays) * 100)
	}

	if len(days) > 0 {
		stats.EarliestImported = days[0]
		stats.LatestImported = days[len(days)-1]
		stats.Gaps = findGaps(days)
		stats.GapCount = len(stats.Gaps)
	}

	if !lastAt.IsZero() {
		stats.LastUpdated = lastAt.Format(time.RFC3339)
		stats.SinceLastUpdate = humanizeSince(time.Since(lastAt))
	}

	// Rate: days imported per calendar day since the first completion.
	if len(days) > 1 && !firstAt.IsZero() && !lastAt.IsZero() {
		elapsed := lastAt.Sub(firstAt).Hours() / 24
		if elapsed < 1 {
			elapsed = 1
		}
		rate := float64(len(days)) / elapsed
		stats.RateDaysPerDay = round1(rate)
		if rate > 0 && stats.Remaining > 0 {
			stats.ETADays = int(float64(stats.Remaining) / rate)
		}
	}

	return stats, nil
}

// findGaps returns days missing from the sorted completed list, within its
// earliest..latest range.
func findGaps(sorted []string) []string {
	gaps := []string{}
	if len(sorted) < 2 {
		return gaps
	}

	completed := make(map[string]bool, len(sorted))
	for _, d := range sorted {
		completed[d] = true
	}

	first, err := time.Parse(dayLayout, sorted[0])
	if err != nil {
		return gaps
	}
	last, err := time.Parse(dayLayout, sorted[len(sorted)-1])
	if err != nil {
		return gaps
	}

	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if !completed[d.Format(dayLayout)] {
			gaps = append(gaps, d.Format(dayLayout))
		}
	}
	return gaps
}

func humanizeSince(d time.Duration) string {
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%.1fh ago", d.Hours())
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func round1(f float64) float64 {
	return float64(int(f*10+0.5)) / 10
}

// Report renders the stats as a human-readable progress report.
func (s *Stats) Report() string {
	var b strings.Builder
	b.WriteString("=== Health Data Backfill Status ===\n\n")

	fmt.Fprintf(&b, "Progress:   %d/%d days (%.1f%%)\n", s.Completed, s.TotalDaysInRange, s.PercentComplete)
	fmt.Fprintf(&b, "Remaining:  %d days\n", s.Remaining)
	fmt.Fprintf(&b, "Date range: %s to %s\n", s.RangeStart, s.RangeEnd)
	fmt.Fprintf(&b, "Points:     %d\n\n", s.TotalPoints)

	if s.EarliestImported != "" && s.LatestImported != "" {
		fmt.Fprintf(&b, "Imported:   %s through %s\n", s.EarliestImported, s.LatestImported)
	}
	if s.GapCount > 0 {
		preview := s.Gaps
		more := ""
		if len(preview) > 5 {
			more = fmt.Sprintf(" ... (+%d more)", len(preview)-5)
			preview = preview[:5]
		}
		fmt.Fprintf(&b, "Gaps:       %d missing day(s): %s%s\n", s.GapCount, strings.Join(preview, ", "), more)
	}

	if s.RateDaysPerDay > 0 {
		fmt.Fprintf(&b, "\nRate:       ~%.1f days imported per calendar day\n", s.RateDaysPerDay)
	}
	if s.ETADays > 0 {
		fmt.Fprintf(&b, "ETA:        ~%d days to complete at current rate\n", s.ETADays)
	}
	if s.SinceLastUpdate != "" {
		fmt.Fprintf(&b, "\nLast update: %s\n", s.SinceLastUpdate)
	}

	return b.String()
}
