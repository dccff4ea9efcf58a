package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// HAETime handles the Health Auto Export date format: "2006-01-02 15:04:05 -0700".
// RFC 3339 and date-only strings are accepted as fallbacks, matching what the
// HAE app emits for aggregated data.
type HAETime struct {
	time.Time
}

const (
	HAETimeLayout     = "2006-01-02 15:04:05 -0700"
	HAEDateOnlyLayout = "2006-01-02"
)

func (t *HAETime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return t.Parse(s)
}

func (t HAETime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(HAETimeLayout))
}

// Parse parses an HAE time string, trying the full datetime layout first,
// then RFC 3339, then date-only.
func (t *HAETime) Parse(s string) error {
	parsed, err := time.Parse(HAETimeLayout, s)
	if err == nil {
		t.Time = parsed
		return nil
	}
	if parsed, err2 := time.Parse(time.RFC3339, s); err2 == nil {
		t.Time = parsed
		return nil
	}
	if parsed, err2 := time.Parse(HAEDateOnlyLayout, s); err2 == nil {
		t.Time = parsed
		return nil
	}
	return fmt.Errorf("cannot parse HAE time %q: %w", s, err)
}

// ParseHAETime parses an HAE time string into a time.Time.
func ParseHAETime(s string) (time.Time, error) {
	var t HAETime
	if err := t.Parse(s); err != nil {
		return time.Time{}, err
	}
	return t.Time, nil
}

// Payload is the top-level REST API JSON structure.
type Payload struct {
	Data Data `json:"data"`
}

// Data contains the metric groups of one export delivery.
type Data struct {
	Metrics []Metric `json:"metrics"`
}

// Metric is a single named metric with its data points. HAE emits dozens of
// metric names with differing per-record shapes, so the records stay
// loosely typed and classification happens downstream.
type Metric struct {
	Name  string   `json:"name"`
	Units string   `json:"units"`
	Data  []Record `json:"data"`
}

// Record is one data point as decoded JSON: numeric values arrive as
// float64, descriptive values as string. The set of keys varies per metric
// (qty, Min/Avg/Max, systolic/diastolic, sleep stage durations, ...).
type Record map[string]any
