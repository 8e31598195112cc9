package detect

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/himanishpuri/TuneTrigger/detect"

// Cycle outcomes reported on tunetrigger.detect.cycles.
const (
	outcomeShort     = "short"
	outcomeBelowGate = "below_gate"
	outcomeNoPrint   = "no_fingerprint"
	outcomeError     = "search_error"
	outcomeNoMatch   = "no_match"
	outcomeRejected  = "rejected"
	outcomeDuplicate = "duplicate"
	outcomeHeld      = "held"
	outcomeDropped   = "dropped"
	outcomeCancelled = "cancelled"
	outcomeMatched   = "matched"
)

var searchBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30,
}

type metrics struct {
	cycles        metric.Int64Counter
	skippedTicks  metric.Int64Counter
	triggerScore  metric.Float64Histogram
	searchLatency metric.Float64Histogram
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)
	m := &metrics{}
	var err error

	m.cycles, err = meter.Int64Counter("tunetrigger.detect.cycles",
		metric.WithDescription("Completed detection cycles by mode and outcome."),
	)
	if err != nil {
		return nil, fmt.Errorf("detect: create cycles counter: %w", err)
	}

	m.skippedTicks, err = meter.Int64Counter("tunetrigger.detect.skipped_ticks",
		metric.WithDescription("Ticks dropped because a cycle was still in flight."),
	)
	if err != nil {
		return nil, fmt.Errorf("detect: create skipped ticks counter: %w", err)
	}

	m.triggerScore, err = meter.Float64Histogram("tunetrigger.detect.trigger_score",
		metric.WithDescription("Similarity between ambient audio and the trigger template."),
		metric.WithExplicitBucketBoundaries(0, 0.05, 0.1, 0.15, 0.2, 0.3, 0.5, 0.75, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("detect: create trigger score histogram: %w", err)
	}

	m.searchLatency, err = meter.Float64Histogram("tunetrigger.detect.search.duration",
		metric.WithDescription("Latency of fingerprint searches."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(searchBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("detect: create search latency histogram: %w", err)
	}

	return m, nil
}

func (m *metrics) cycle(ctx context.Context, mode Mode, outcome string) {
	m.cycles.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode.String()),
		attribute.String("outcome", outcome),
	))
}

func (m *metrics) skipped(ctx context.Context, mode Mode) {
	m.skippedTicks.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode.String())))
}
