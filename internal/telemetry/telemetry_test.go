package telemetry

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestSetupExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(&buf)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "pipeline.file")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "pipeline.file")
}

func TestRunMetricsExportsStatusCounts(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(ctx) }()

	m, err := NewRunMetrics(mp)
	require.NoError(t, err)
	m.RecordFile(ctx, "flagged-fixed", []string{"XSS"}, 150*time.Millisecond)
	m.RecordFile(ctx, "flagged-fixed", []string{"SQL_INJECTION"}, 20*time.Millisecond)
	m.RecordFile(ctx, "skipped", nil, time.Millisecond)
	m.RecordRun(ctx, "DONE_DIRTY", 2)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	assert.Equal(t, map[string]int64{"flagged-fixed": 2, "skipped": 1},
		sumByAttribute(t, rm, "autofix.files.processed", "status"))
	assert.Equal(t, map[string]int64{"DONE_DIRTY": 1},
		sumByAttribute(t, rm, "autofix.runs", "state"))
}

// sumByAttribute totals an int64 counter's data points by one attribute.
func sumByAttribute(t *testing.T, rm metricdata.ResourceMetrics, name, key string) map[string]int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != name {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is %T", name, md.Data)
			out := make(map[string]int64)
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key(key))
				out[v.AsString()] += dp.Value
			}
			return out
		}
	}
	t.Fatalf("metric %s not collected", name)
	return nil
}

func TestSetupInstallsMeterProvider(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(&buf)
	require.NoError(t, err)

	m, err := NewRunMetrics(nil)
	require.NoError(t, err)
	m.RecordRun(context.Background(), "DONE_CLEAN", 0)

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "autofix.runs")
}
