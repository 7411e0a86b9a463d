package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	lognoop "go.opentelemetry.io/otel/log/noop"
	metricnoop "go.opentelemetry.io/otel/metric/noop"

	"github.com/libcirc/patronblocks/internal/observability"
)

func Test_SlogLogger_AllLevels(t *testing.T) {
	// arrange
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := observability.NewSlogLoggerWithHandler(handler)
	ctx := context.Background()

	// act
	logger.DebugContext(ctx, "debug message")
	logger.InfoContext(ctx, "info message")
	logger.WarnContext(ctx, "warn message")
	logger.ErrorContext(ctx, "error message")
	logger.Info("plain message", "key", "value")

	// assert
	output := buf.String()
	assert.Contains(t, output, "debug message")
	assert.Contains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
	assert.Contains(t, output, "plain message")
	assert.Contains(t, output, `"key":"value"`)
}

func Test_OTelLogger_EmitsWithoutPanic(t *testing.T) {
	logger := observability.NewOTelLogger(lognoop.NewLoggerProvider().Logger("test"))

	logger.InfoContext(context.Background(), "message", "key", "value", "count", 3)
	logger.ErrorContext(context.Background(), "failure", "error", assert.AnError)
}

func Test_MetricsCollector_RecordsWithoutPanic(t *testing.T) {
	meter := metricnoop.NewMeterProvider().Meter("test")
	collector := observability.NewMetricsCollector(meter)
	ctx := context.Background()

	collector.RecordDuration(ctx, "storage_query_duration_seconds", 150*time.Millisecond)
	collector.RecordDuration(ctx, "storage_query_duration_seconds", 10*time.Millisecond)
	collector.IncrementCounter(ctx, "storage_version_conflicts_total")
	collector.IncrementCounter(ctx, "storage_version_conflicts_total")
}
