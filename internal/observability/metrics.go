package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// MetricsCollector maps the storage engine's metrics interface onto
// OpenTelemetry instruments: durations become histograms, counters
// become monotonic counters. Instruments are created lazily per name.
type MetricsCollector struct {
	meter metric.Meter

	mu         sync.Mutex
	histograms map[string]metric.Float64Histogram
	counters   map[string]metric.Int64Counter
}

// NewMetricsCollector creates a collector on top of the given meter.
func NewMetricsCollector(meter metric.Meter) *MetricsCollector {
	return &MetricsCollector{
		meter:      meter,
		histograms: make(map[string]metric.Float64Histogram),
		counters:   make(map[string]metric.Int64Counter),
	}
}

// RecordDuration records one operation timing in seconds.
func (m *MetricsCollector) RecordDuration(ctx context.Context, operation string, duration time.Duration) {
	histogram := m.histogramFor(operation)
	if histogram == nil {
		return
	}

	histogram.Record(ctx, duration.Seconds())
}

// IncrementCounter adds one to the named counter.
func (m *MetricsCollector) IncrementCounter(ctx context.Context, name string) {
	counter := m.counterFor(name)
	if counter == nil {
		return
	}

	counter.Add(ctx, 1)
}

func (m *MetricsCollector) histogramFor(name string) metric.Float64Histogram {
	m.mu.Lock()
	defer m.mu.Unlock()

	if histogram, ok := m.histograms[name]; ok {
		return histogram
	}

	histogram, err := m.meter.Float64Histogram(
		name,
		metric.WithDescription("storage operation duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil
	}

	m.histograms[name] = histogram

	return histogram
}

func (m *MetricsCollector) counterFor(name string) metric.Int64Counter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if counter, ok := m.counters[name]; ok {
		return counter
	}

	counter, err := m.meter.Int64Counter(
		name,
		metric.WithDescription("storage operation counter"),
	)
	if err != nil {
		return nil
	}

	m.counters[name] = counter

	return counter
}
