package stats

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// OTel is a Sink backed by an OpenTelemetry meter. Counters and timing
// histograms are created lazily per metric name and cached. Instrument
// creation failures are swallowed and the metric is dropped from then on;
// emission must never affect the surrounding cache operation.
type OTel struct {
	meter metric.Meter

	mu       sync.Mutex
	counters map[string]metric.Int64Counter
	timers   map[string]metric.Float64Histogram
}

var _ Sink = (*OTel)(nil)

// NewOTel returns a Sink recording through the given meter.
func NewOTel(meter metric.Meter) *OTel {
	return &OTel{
		meter:    meter,
		counters: make(map[string]metric.Int64Counter),
		timers:   make(map[string]metric.Float64Histogram),
	}
}

func (o *OTel) Increment(name string) {
	c := o.counter(name)
	if c == nil {
		return
	}
	c.Add(context.Background(), 1)
}

func (o *OTel) Timing(name string, d time.Duration) {
	h := o.timer(name)
	if h == nil {
		return
	}
	h.Record(context.Background(), float64(d)/float64(time.Millisecond))
}

func (o *OTel) counter(name string) metric.Int64Counter {
	o.mu.Lock()
	defer o.mu.Unlock()

	if c, ok := o.counters[name]; ok {
		return c
	}
	c, err := o.meter.Int64Counter(name, metric.WithUnit("{event}"))
	if err != nil {
		o.counters[name] = nil
		return nil
	}
	o.counters[name] = c
	return c
}

func (o *OTel) timer(name string) metric.Float64Histogram {
	o.mu.Lock()
	defer o.mu.Unlock()

	if h, ok := o.timers[name]; ok {
		return h
	}
	h, err := o.meter.Float64Histogram(name, metric.WithUnit("ms"))
	if err != nil {
		o.timers[name] = nil
		return nil
	}
	o.timers[name] = h
	return h
}
