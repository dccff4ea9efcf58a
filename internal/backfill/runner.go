package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"syscall"
	"time"

	"github.com/healthrip/healthrip/internal/models"
	"github.com/healthrip/healthrip/internal/normalize"
)

// PointWriter is the outbound time-series write dependency.
type PointWriter interface {
	WritePoints(ctx context.Context, points []normalize.Point) error
}

// Options configures a backfill run.
type Options struct {
	Start        time.Time     // first day of the range (inclusive)
	End          time.Time     // last day of the range (inclusive)
	Metrics      string        // comma-separated filter, empty = all
	TZOffset     string        // ±HHMM offset used in query timestamps
	DryRun       bool          // query but never write
	Delay        time.Duration // pause between days
	PollInterval time.Duration // daemon sleep when phone unreachable or caught up
}

// Runner imports historical health data from the HAE TCP server day by day,
// newest first, recording completed days so interrupted runs resume.
type Runner struct {
	client   *Client
	writer   PointWriter
	norm     *normalize.Normalizer
	progress *Progress
	opts     Options
	log      *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(client *Client, writer PointWriter, norm *normalize.Normalizer, progress *Progress, opts Options, log *slog.Logger) *Runner {
	return &Runner{
		client:   client,
		writer:   writer,
		norm:     norm,
		progress: progress,
		opts:     opts,
		log:      log,
	}
}

// Each day is queried in four 6-hour windows; a full day of raw heart rate
// data is too large for a single HAE response.
var dayWindows = [][2]string{
	{"00:00:00", "05:59:59"},
	{"06:00:00", "11:59:59"},
	{"12:00:00", "17:59:59"},
	{"18:00:00", "23:59:59"},
}

// PassResult summarizes one import pass.
type PassResult struct {
	DaysImported int
	TotalPoints  int
	DaysFailed   int
	PhoneLost    bool // pass aborted because the phone became unreachable
}

// RunPass imports all remaining days in the range, newest first. It stops
// early when the context is canceled or after three consecutive network
// failures (the phone left the network).
func (r *Runner) RunPass(ctx context.Context) (*PassResult, error) {
	remaining, totalDays, err := r.remainingDays()
	if err != nil {
		return nil, err
	}

	r.log.Info("starting pass",
		"start", r.opts.Start.Format(dayLayout),
		"end", r.opts.End.Format(dayLayout),
		"total", totalDays,
		"remaining", len(remaining),
	)

	res := &PassResult{}
	if len(remaining) == 0 {
		r.log.Info("all days already imported")
		return res, nil
	}
	if r.opts.DryRun {
		r.log.Info("dry run, nothing will be written")
	}

	consecutiveNetFailures := 0
	for i, day := range remaining {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		dayPoints, queryDur, writeDur, err := r.importDay(ctx, day)
		if err != nil {
			res.DaysFailed++
			if isNetworkError(err) {
				consecutiveNetFailures++
				r.log.Warn("day failed (network)", "day", day, "error", err)
				r.writeError(day, "network")
				if consecutiveNetFailures >= 3 {
					r.log.Warn("phone unreachable", "consecutive_failures", consecutiveNetFailures)
					res.PhoneLost = true
					r.writeConnectivity(false)
					break
				}
			} else {
				r.log.Error("day failed", "day", day, "error", err)
				r.writeError(day, "import")
			}
			continue
		}
		consecutiveNetFailures = 0

		if !r.opts.DryRun {
			if err := r.progress.MarkCompleted(day, dayPoints); err != nil {
				return res, fmt.Errorf("recording progress for %s: %w", day, err)
			}
		}
		res.DaysImported++
		res.TotalPoints += dayPoints

		r.writeDayTelemetry(day, dayPoints, queryDur, writeDur, totalDays)

		r.log.Info("day complete",
			"day", day,
			"points", dayPoints,
			"remaining", len(remaining)-i-1,
		)

		if r.opts.Delay > 0 {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(r.opts.Delay):
			}
		}
	}

	r.log.Info("pass complete", "days", res.DaysImported, "points", res.TotalPoints)
	return res, nil
}

// importDay queries one day in 6-hour windows, normalizes the results, and
// writes the points. Returns the day's point count and query/write durations.
func (r *Runner) importDay(ctx context.Context, day string) (points int, queryDur, writeDur time.Duration, err error) {
	for _, w := range dayWindows {
		if ctx.Err() != nil {
			return points, queryDur, writeDur, ctx.Err()
		}

		startTS := fmt.Sprintf("%s %s %s", day, w[0], r.opts.TZOffset)
		endTS := fmt.Sprintf("%s %s %s", day, w[1], r.opts.TZOffset)

		t0 := time.Now()
		result, err := r.client.QueryMetricsWithRetry(startTS, endTS, r.opts.Metrics, r.log)
		queryDur += time.Since(t0)
		if err != nil {
			return points, queryDur, writeDur, fmt.Errorf("querying %s: %w", startTS, err)
		}

		metrics, err := ExtractMetrics(result)
		if err != nil {
			return points, queryDur, writeDur, fmt.Errorf("extracting %s: %w", startTS, err)
		}
		if len(metrics) == 0 {
			continue
		}

		payload := models.Payload{Data: models.Data{Metrics: metrics}}
		pts := r.norm.Normalize(&payload)
		if len(pts) > 0 && !r.opts.DryRun {
			t0 = time.Now()
			if err := r.writer.WritePoints(ctx, pts); err != nil {
				return points, queryDur, writeDur, fmt.Errorf("writing %s: %w", startTS, err)
			}
			writeDur += time.Since(t0)
		}
		points += len(pts)
	}
	return points, queryDur, writeDur, nil
}

// remainingDays returns the not-yet-completed days in the range, newest
// first, plus the total day count.
func (r *Runner) remainingDays() ([]string, int, error) {
	var remaining []string
	total := 0
	for d := r.opts.End; !d.Before(r.opts.Start); d = d.AddDate(0, 0, -1) {
		total++
		day := d.Format(dayLayout)
		done, err := r.progress.IsCompleted(day)
		if err != nil {
			return nil, 0, fmt.Errorf("checking progress for %s: %w", day, err)
		}
		if !done {
			remaining = append(remaining, day)
		}
	}
	return remaining, total, nil
}

// RunDaemon keeps importing until the whole range is complete. When the
// phone is unreachable it sleeps and retries; it returns once a pass
// finishes with nothing left to import.
func (r *Runner) RunDaemon(ctx context.Context) error {
	r.log.Info("starting daemon", "poll_interval", r.opts.PollInterval.String())
	wasOnline := false

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if r.client.Ping() {
			if !wasOnline {
				r.log.Info("phone came online")
				r.writeConnectivity(true)
				wasOnline = true
			}

			res, err := r.RunPass(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				r.log.Error("pass failed", "error", err)
			}

			if res != nil && res.PhoneLost {
				r.log.Info("phone went away during import, will retry")
				wasOnline = false
			} else if res != nil && res.DaysImported == 0 && res.DaysFailed == 0 {
				r.log.Info("historical backfill complete")
				return nil
			}
		} else {
			if wasOnline {
				r.log.Info("phone went offline")
				r.writeConnectivity(false)
				wasOnline = false
			}
			r.log.Info("phone not reachable, sleeping", "interval", r.opts.PollInterval.String())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.opts.PollInterval):
		}
	}
}

// isNetworkError reports whether err is a connectivity failure rather than a
// data problem.
func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, errServerUnreachable) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ETIMEDOUT)
}

// --- Telemetry ---
//
// Telemetry points go to the same bucket as the health data so the import
// can be watched from a dashboard. Failures are logged and ignored.

func (r *Runner) writeDayTelemetry(day string, dayPoints int, queryDur, writeDur time.Duration, totalDays int) {
	if r.opts.DryRun {
		return
	}

	completed, err := r.progress.CompletedCount()
	if err != nil {
		r.log.Warn("failed to read progress for telemetry", "error", err)
		return
	}
	totalPoints, err := r.progress.TotalPoints()
	if err != nil {
		r.log.Warn("failed to read progress for telemetry", "error", err)
		return
	}

	pct := 0.0
	if totalDays > 0 {
		pct = float64(completed) / float64(totalDays) * 100
	}

	now := time.Now().UTC()
	pts := []normalize.Point{
		{
			Measurement: "backfill_day",
			Tags:        map[string]string{"date": day},
			Fields: map[string]float64{
				"points":           float64(dayPoints),
				"query_duration_s": queryDur.Seconds(),
				"write_duration_s": writeDur.Seconds(),
			},
			Time: now,
		},
		{
			Measurement: "backfill_progress",
			Tags:        map[string]string{},
			Fields: map[string]float64{
				"completed":    float64(completed),
				"remaining":    float64(totalDays - completed),
				"pct_complete": pct,
				"total_points": float64(totalPoints),
			},
			Time: now,
		},
	}
	r.writeTelemetry(pts)
}

func (r *Runner) writeConnectivity(online bool) {
	if r.opts.DryRun {
		return
	}
	v := 0.0
	if online {
		v = 1
	}
	r.writeTelemetry([]normalize.Point{{
		Measurement: "backfill_connectivity",
		Tags:        map[string]string{},
		Fields:      map[string]float64{"online": v},
		Time:        time.Now().UTC(),
	}})
}

func (r *Runner) writeError(day, errorType string) {
	if r.opts.DryRun {
		return
	}
	r.writeTelemetry([]normalize.Point{{
		Measurement: "backfill_error",
		Tags:        map[string]string{"date": day, "error_type": errorType},
		Fields:      map[string]float64{"count": 1},
		Time:        time.Now().UTC(),
	}})
}

func (r *Runner) writeTelemetry(pts []normalize.Point) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.writer.WritePoints(ctx, pts); err != nil {
		r.log.Warn("failed to write backfill telemetry", "error", err)
	}
}
