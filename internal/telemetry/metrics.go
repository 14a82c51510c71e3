package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "ctrlscan-autofix"

// RunMetrics counts per-file outcomes and run durations.
type RunMetrics struct {
	filesCounter     metric.Int64Counter
	runsCounter      metric.Int64Counter
	fileDurationHist metric.Float64Histogram
}

// NewRunMetrics registers the instruments on mp, or on the global meter
// provider when mp is nil.
func NewRunMetrics(mp metric.MeterProvider) (*RunMetrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	filesCounter, err := meter.Int64Counter(
		"autofix.files.processed",
		metric.WithDescription("Files processed, by outcome status"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, err
	}

	runsCounter, err := meter.Int64Counter(
		"autofix.runs",
		metric.WithDescription("Completed pipeline runs, by final state"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	fileDurationHist, err := meter.Float64Histogram(
		"autofix.file.duration",
		metric.WithDescription("Time spent on one file in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &RunMetrics{
		filesCounter:     filesCounter,
		runsCounter:      runsCounter,
		fileDurationHist: fileDurationHist,
	}, nil
}

// RecordFile records one per-file outcome.
func (m *RunMetrics) RecordFile(ctx context.Context, status string, categories []string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("status", status),
		attribute.StringSlice("categories", categories),
	)
	m.filesCounter.Add(ctx, 1, attrs)
	m.fileDurationHist.Record(ctx, d.Seconds(), attrs)
}

// RecordRun records the final state of a run.
func (m *RunMetrics) RecordRun(ctx context.Context, state string, exitCode int) {
	m.runsCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("state", state),
			attribute.Int("exit_code", exitCode),
		),
	)
}
