package models

import (
	"encoding/json"
	"testing"
	"time"
)

// TestParseHAETime verifies the primary HAE layout with an explicit UTC offset.
func TestParseHAETime(t *testing.T) {
	got, err := ParseHAETime("2026-01-19 00:00:00 -0500")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 1, 19, 0, 0, 0, 0, time.FixedZone("", -5*3600))
	if !got.Equal(want) {
		t.Errorf("parsed = %v, want %v", got, want)
	}
	_, offset := got.Zone()
	if offset != -5*3600 {
		t.Errorf("offset = %d, want %d", offset, -5*3600)
	}
}

// TestParseHAETimeRFC3339 verifies the RFC 3339 fallback.
func TestParseHAETimeRFC3339(t *testing.T) {
	got, err := ParseHAETime("2026-01-19T06:30:00Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Hour() != 6 || got.Minute() != 30 {
		t.Errorf("parsed = %v, want 06:30 UTC", got)
	}
}

// TestParseHAETimeDateOnly verifies the date-only fallback used by
// aggregated sleep data.
func TestParseHAETimeDateOnly(t *testing.T) {
	got, err := ParseHAETime("2026-02-06")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Year() != 2026 || got.Month() != 2 || got.Day() != 6 {
		t.Errorf("parsed = %v, want 2026-02-06", got)
	}
}

// TestParseHAETimeInvalid verifies that garbage input returns an error.
func TestParseHAETimeInvalid(t *testing.T) {
	if _, err := ParseHAETime("not a date"); err == nil {
		t.Error("expected error for invalid time string")
	}
}

// TestHAETimeUnmarshalJSON verifies the json.Unmarshaler implementation.
func TestHAETimeUnmarshalJSON(t *testing.T) {
	var ht HAETime
	if err := json.Unmarshal([]byte(`"2026-01-19 08:15:00 +0100"`), &ht); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ht.Hour() != 8 || ht.Minute() != 15 {
		t.Errorf("parsed = %v, want 08:15", ht.Time)
	}
}

// TestPayloadUnmarshal verifies that a payload with mixed record shapes
// decodes with numbers as float64 and strings preserved.
func TestPayloadUnmarshal(t *testing.T) {
	body := `{"data":{"metrics":[
		{"name":"step_count","units":"count","data":[{"date":"2026-01-19 00:00:00 -0500","qty":5000,"source":"iPhone"}]},
		{"name":"sleep_analysis","units":"hr","data":[{"date":"2026-01-19 07:00:00 -0500","core":3.2,"deep":1.1,"inBedStart":"2026-01-18 23:10:00 -0500"}]}
	]}}`

	var p Payload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Data.Metrics) != 2 {
		t.Fatalf("metrics = %d, want 2", len(p.Data.Metrics))
	}

	steps := p.Data.Metrics[0]
	if steps.Name != "step_count" || steps.Units != "count" {
		t.Errorf("metric = %q/%q, want step_count/count", steps.Name, steps.Units)
	}
	if len(steps.Data) != 1 {
		t.Fatalf("data points = %d, want 1", len(steps.Data))
	}
	rec := steps.Data[0]
	if qty, ok := rec["qty"].(float64); !ok || qty != 5000 {
		t.Errorf("qty = %v, want float64 5000", rec["qty"])
	}
	if src, ok := rec["source"].(string); !ok || src != "iPhone" {
		t.Errorf("source = %v, want iPhone", rec["source"])
	}

	sleep := p.Data.Metrics[1].Data[0]
	if core, ok := sleep["core"].(float64); !ok || core != 3.2 {
		t.Errorf("core = %v, want 3.2", sleep["core"])
	}
	if _, ok := sleep["inBedStart"].(string); !ok {
		t.Errorf("inBedStart = %v, want string", sleep["inBedStart"])
	}
}
