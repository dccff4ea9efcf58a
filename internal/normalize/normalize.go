package normalize

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/healthrip/healthrip/internal/models"
)

// Point is a single time-series point ready to be written: one measurement
// (the metric name), indexed string tags, numeric fields, and a timestamp.
type Point struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]float64
	Time        time.Time
}

// Normalizer flattens HAE payloads into points. Classification is driven by
// each value's runtime type rather than a per-metric schema, so unknown
// metric names work without code changes.
type Normalizer struct {
	log *slog.Logger
}

// New creates a Normalizer. The logger is only used for skipped-record
// warnings; the transform itself has no side effects.
func New(log *slog.Logger) *Normalizer {
	return &Normalizer{log: log}
}

// timestampKeys are tried in order when locating a record's timestamp.
// startDate appears instead of date in some unaggregated exports.
var timestampKeys = []string{"date", "startDate"}

// Normalize converts a payload into a flat list of points. Each record with
// at least one numeric value yields exactly one point; records without a
// usable timestamp or without numeric values yield nothing. Calling it twice
// on the same payload produces identical results.
func (n *Normalizer) Normalize(payload *models.Payload) []Point {
	var points []Point
	for _, m := range payload.Data.Metrics {
		for _, rec := range m.Data {
			if p, ok := n.convert(m, rec); ok {
				points = append(points, p)
			}
		}
	}
	return points
}

func (n *Normalizer) convert(m models.Metric, rec models.Record) (Point, bool) {
	ts, tsKey, err := recordTime(rec)
	if err != nil {
		n.log.Warn("skipping data point with unparseable date", "metric", m.Name, "error", err)
		return Point{}, false
	}
	if tsKey == "" {
		// No timestamp field at all: nothing to anchor the point to.
		return Point{}, false
	}

	p := Point{
		Measurement: m.Name,
		Tags:        map[string]string{},
		Fields:      map[string]float64{},
		Time:        ts,
	}
	if m.Units != "" {
		p.Tags["units"] = m.Units
	}

	for key, val := range rec {
		if key == tsKey {
			continue
		}
		switch v := val.(type) {
		case float64:
			p.Fields[strings.ToLower(key)] = v
		case bool:
			if v {
				p.Fields[strings.ToLower(key)] = 1
			} else {
				p.Fields[strings.ToLower(key)] = 0
			}
		case string:
			p.Tags[key] = v
		default:
			// Nested objects and arrays carry no point data.
		}
	}

	if len(p.Fields) == 0 {
		return Point{}, false
	}
	return p, true
}

// recordTime extracts and parses the record's timestamp. The returned key
// names the field that supplied it (consumed by the caller, so it becomes
// neither tag nor field); an empty key means no timestamp field was present.
func recordTime(rec models.Record) (time.Time, string, error) {
	for _, key := range timestampKeys {
		val, ok := rec[key]
		if !ok {
			continue
		}
		s, ok := val.(string)
		if !ok {
			return time.Time{}, key, fmt.Errorf("field %q is not a timestamp string", key)
		}
		ts, err := models.ParseHAETime(s)
		if err != nil {
			return time.Time{}, key, err
		}
		return ts, key, nil
	}
	return time.Time{}, "", nil
}
