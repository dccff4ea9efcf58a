package influx

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/healthrip/healthrip/internal/normalize"
)

// Config holds InfluxDB connection settings.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Writer writes normalized points to InfluxDB v2 using the blocking write
// API at seconds precision. The client library handles batching and retries.
type Writer struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// NewWriter creates a Writer for the given server and bucket.
func NewWriter(cfg Config) *Writer {
	opts := influxdb2.DefaultOptions().SetPrecision(time.Second)
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	return &Writer{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}
}

// WritePoints writes a batch of points in one call. A nil or empty batch is
// a no-op.
func (w *Writer) WritePoints(ctx context.Context, points []normalize.Point) error {
	if len(points) == 0 {
		return nil
	}

	wps := make([]*write.Point, len(points))
	for i, p := range points {
		fields := make(map[string]any, len(p.Fields))
		for k, v := range p.Fields {
			fields[k] = v
		}
		wps[i] = write.NewPoint(p.Measurement, p.Tags, fields, p.Time)
	}

	if err := w.writeAPI.WritePoint(ctx, wps...); err != nil {
		return fmt.Errorf("writing %d points: %w", len(points), err)
	}
	return nil
}

// Ping checks that the InfluxDB server is up and ready.
func (w *Writer) Ping(ctx context.Context) error {
	ok, err := w.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("pinging influxdb: %w", err)
	}
	if !ok {
		return fmt.Errorf("influxdb server not ready")
	}
	return nil
}

// Close shuts down the underlying HTTP client.
func (w *Writer) Close() {
	w.client.Close()
}
