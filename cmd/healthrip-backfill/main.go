package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/healthrip/healthrip/internal/backfill"
	"github.com/healthrip/healthrip/internal/config"
	"github.com/healthrip/healthrip/internal/influx"
	"github.com/healthrip/healthrip/internal/mcp"
	"github.com/healthrip/healthrip/internal/normalize"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const dayLayout = "2006-01-02"

// nopWriter discards points. Used in dry-run mode where nothing is written.
type nopWriter struct{}

func (nopWriter) WritePoints(ctx context.Context, points []normalize.Point) error { return nil }

func main() {
	haeHost := flag.String("hae-host", os.Getenv("HAE_HOST"), "Health Auto Export device IP (env: HAE_HOST)")
	haePort := flag.Int("hae-port", envInt("HAE_PORT", 9000), "HAE TCP port (env: HAE_PORT)")
	startStr := flag.String("start", "2015-01-01", "start date YYYY-MM-DD")
	endStr := flag.String("end", time.Now().Format(dayLayout), "end date YYYY-MM-DD")
	metrics := flag.String("metrics", "", "comma-separated metric names to import (default: all)")
	progressDir := flag.String("progress-dir", "backfill-state", "directory for the progress database")
	reset := flag.Bool("reset", false, "clear progress and start over")
	dryRun := flag.Bool("dry-run", false, "query data but don't write to InfluxDB")
	daemon := flag.Bool("daemon", false, "run continuously, polling for the phone and importing when reachable")
	pollInterval := flag.Int("poll-interval", envInt("POLL_INTERVAL", 30), "seconds between polls when phone is unreachable (env: POLL_INTERVAL)")
	delay := flag.Duration("delay", 500*time.Millisecond, "pause between days")
	tzOffset := flag.String("tz-offset", "", "timezone offset for queries, e.g. -0500 (default: local)")
	configPath := flag.String("config", "config.yaml", "path to config file (for InfluxDB credentials)")
	status := flag.Bool("status", false, "print a progress report and exit")
	statusJSON := flag.Bool("status-json", false, "print progress as JSON and exit")
	mcpMode := flag.Bool("mcp", false, "serve backfill status as an MCP server on stdio")
	verbose := flag.Bool("verbose", false, "debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(Version)
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	// MCP stdio mode owns stdout; logs must go to stderr either way.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	start, err := time.Parse(dayLayout, *startStr)
	if err != nil {
		log.Error("invalid -start date", "value", *startStr, "error", err)
		os.Exit(1)
	}
	end, err := time.Parse(dayLayout, *endStr)
	if err != nil {
		log.Error("invalid -end date", "value", *endStr, "error", err)
		os.Exit(1)
	}
	if end.Before(start) {
		log.Error("-end is before -start", "start", *startStr, "end", *endStr)
		os.Exit(1)
	}

	progress, err := backfill.OpenProgress(*progressDir)
	if err != nil {
		log.Error("failed to open progress database", "error", err)
		os.Exit(1)
	}
	defer progress.Close()

	// Reporting modes need no phone or InfluxDB.
	if *status || *statusJSON {
		stats, err := backfill.ComputeStats(progress, start, end)
		if err != nil {
			log.Error("failed to compute stats", "error", err)
			os.Exit(1)
		}
		if *statusJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.Encode(stats) //nolint:errcheck
		} else {
			fmt.Print(stats.Report())
		}
		return
	}

	if *mcpMode {
		s := mcp.New(progress, start, end, Version, log)
		if err := mcpserver.ServeStdio(s); err != nil {
			log.Error("mcp server error", "error", err)
			os.Exit(1)
		}
		return
	}

	if *haeHost == "" {
		fmt.Fprintln(os.Stderr, "-hae-host is required (or set HAE_HOST)")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *reset {
		if err := progress.Reset(); err != nil {
			log.Error("failed to reset progress", "error", err)
			os.Exit(1)
		}
		log.Info("progress cleared")
	}

	offset := *tzOffset
	if offset == "" {
		offset = time.Now().Format("-0700")
	}

	var writer backfill.PointWriter = nopWriter{}
	if !*dryRun {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		iw := influx.NewWriter(influx.Config{
			URL:    cfg.InfluxDB.URL,
			Token:  cfg.InfluxDB.Token,
			Org:    cfg.InfluxDB.Org,
			Bucket: cfg.InfluxDB.Bucket,
		})
		defer iw.Close()
		writer = iw
	}

	client := backfill.NewClient(*haeHost, *haePort)
	runner := backfill.NewRunner(client, writer, normalize.New(log), progress, backfill.Options{
		Start:        start,
		End:          end,
		Metrics:      *metrics,
		TZOffset:     offset,
		DryRun:       *dryRun,
		Delay:        *delay,
		PollInterval: time.Duration(*pollInterval) * time.Second,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *daemon {
		if err := runner.RunDaemon(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("daemon failed", "error", err)
			os.Exit(1)
		}
		log.Info("daemon stopped")
		return
	}

	res, err := runner.RunPass(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("backfill failed", "error", err)
		os.Exit(1)
	}
	if res != nil {
		log.Info("done",
			"days_imported", res.DaysImported,
			"points", res.TotalPoints,
			"days_failed", res.DaysFailed,
		)
	}
}

func envInt(name string, fallback int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
