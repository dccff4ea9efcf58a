package server

import (
	"context"
	"time"

	"github.com/healthrip/healthrip/internal/normalize"
)

// writeTelemetry records one ingest_request point describing the request
// that just completed. Telemetry failures are logged but never surfaced to
// the caller.
func (s *Server) writeTelemetry(metrics, points int, totalDur, writeDur time.Duration, errLabel string) {
	success := 1.0
	tags := map[string]string{}
	if errLabel != "" {
		success = 0
		tags["error"] = errLabel
	}

	pt := normalize.Point{
		Measurement: "ingest_request",
		Tags:        tags,
		Fields: map[string]float64{
			"points":           float64(points),
			"metrics":          float64(metrics),
			"total_duration_s": totalDur.Seconds(),
			"write_duration_s": writeDur.Seconds(),
			"success":          success,
		},
		Time: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.writer.WritePoints(ctx, []normalize.Point{pt}); err != nil {
		s.log.Warn("failed to write ingest telemetry", "error", err)
	}
}
