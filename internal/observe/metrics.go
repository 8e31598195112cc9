package observe

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/himanishpuri/TuneTrigger/observe"

var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// Metrics holds the server-side instruments.
type Metrics struct {
	HTTPRequestDuration metric.Float64Histogram
	TunesIndexed        metric.Int64Counter
	LiveSessions        metric.Int64UpDownCounter
}

// NewMetrics creates the instruments on mp, or on the global provider when
// mp is nil.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	m.HTTPRequestDuration, err = meter.Float64Histogram("tunetrigger.http.request.duration",
		metric.WithDescription("Latency of HTTP requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: create http duration histogram: %w", err)
	}

	m.TunesIndexed, err = meter.Int64Counter("tunetrigger.tunes.indexed",
		metric.WithDescription("Reference tunes added to the index."),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: create tunes counter: %w", err)
	}

	m.LiveSessions, err = meter.Int64UpDownCounter("tunetrigger.live.sessions",
		metric.WithDescription("Open live detection connections."),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: create live sessions counter: %w", err)
	}

	return m, nil
}
