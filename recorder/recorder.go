// Package recorder writes inbound CC values to InfluxDB as a time series.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"ccremote/bus"
	"ccremote/config"
	"ccremote/midi"
)

const (
	defaultConnectTimeout = 10 * time.Second
	millisecondsPerSecond = 1000

	// Measurement is the InfluxDB measurement CC values are written to
	Measurement = "midi_cc"
)

// PointWriter is the subset of api.WriteAPI the recorder needs
type PointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Recorder turns bus events into points. Writes are batched by the
// writer and never block the bus.
type Recorder struct {
	w      PointWriter
	client influxdb2.Client
	log    *slog.Logger
	now    func() time.Time
}

// Connect pings the server and returns a recorder using its non-blocking
// write API.
func Connect(cfg config.InfluxDBConfig, logger *slog.Logger) (*Recorder, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 10
	}

	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	r := New(writeAPI, logger)
	r.client = client

	go func() {
		for err := range writeAPI.Errors() {
			r.log.Warn("write failed", "error", err)
		}
	}()
	return r, nil
}

// New wraps an existing writer
func New(w PointWriter, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		w:   w,
		log: logger.With("component", "recorder"),
		now: time.Now,
	}
}

// Point builds the midi_cc point for msg
func Point(msg midi.ControlChange, direction string, ts time.Time) *write.Point {
	return write.NewPoint(
		Measurement,
		map[string]string{
			"channel":   strconv.Itoa(int(msg.Channel)),
			"cc":        strconv.Itoa(int(msg.Controller)),
			"direction": direction,
		},
		map[string]interface{}{
			"value": int64(msg.Value),
		},
		ts,
	)
}

// Handle records inbound CC events. Pass it to Manager.Subscribe.
func (r *Recorder) Handle(ev bus.Event) {
	if ev.Kind != bus.KindControlChange {
		return
	}
	r.w.WritePoint(Point(ev.CC, "in", r.now()))
}

// Close flushes pending points and closes the client
func (r *Recorder) Close() error {
	r.w.Flush()
	if r.client != nil {
		r.client.Close()
	}
	return nil
}
