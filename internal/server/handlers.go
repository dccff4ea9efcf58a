package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/healthrip/healthrip/internal/models"
)

func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ingestResponse is the success body: the count always reflects exactly the
// points handed to the write call.
type ingestResponse struct {
	Status        string `json:"status"`
	PointsWritten int    `json:"points_written"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var payload models.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeTelemetry(0, 0, time.Since(start), 0, "invalid_json")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	metricCount := len(payload.Data.Metrics)
	points := s.norm.Normalize(&payload)
	if len(points) == 0 {
		s.writeTelemetry(metricCount, 0, time.Since(start), 0, "")
		writeJSON(w, http.StatusOK, ingestResponse{Status: "ok", PointsWritten: 0})
		return
	}

	writeStart := time.Now()
	if err := s.writer.WritePoints(r.Context(), points); err != nil {
		s.log.Error("influxdb write failed", "points", len(points), "error", err)
		s.writeTelemetry(metricCount, len(points), time.Since(start), time.Since(writeStart), "write_failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "influxdb write failed: " + err.Error()})
		return
	}
	writeDur := time.Since(writeStart)

	s.log.Info("ingest complete",
		"metrics", metricCount,
		"points", len(points),
		"duration", time.Since(start).String(),
	)
	s.writeTelemetry(metricCount, len(points), time.Since(start), writeDur, "")

	writeJSON(w, http.StatusOK, ingestResponse{Status: "ok", PointsWritten: len(points)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
