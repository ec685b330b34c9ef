package localmetrics

import (
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

var (
	once            sync.Once
	setCounter      metric.Int64Counter
	readCounter     metric.Int64Counter
	subscriberGauge metric.Int64Gauge
	watchCounter    metric.Int64Counter
)

// New creates the instruments on the global meter provider. Accessors call it
// lazily, so calling it explicitly only moves the cost to startup.
func New() error {
	var err error
	once.Do(func() {
		err = create()
	})
	return err
}

func create() error {
	meter := otel.Meter("telemetry/localmetrics")
	noopMeter := noop.NewMeterProvider().Meter("telemetry/localmetrics")

	// keep every instrument usable even if registration fails
	setCounter, _ = noopMeter.Int64Counter("groupstore.set.count")
	readCounter, _ = noopMeter.Int64Counter("groupstore.read.count")
	subscriberGauge, _ = noopMeter.Int64Gauge("groupstore.subscribers.gauge")
	watchCounter, _ = noopMeter.Int64Counter("groupstore.watch.count")

	c, err := meter.Int64Counter("groupstore.set.count",
		metric.WithDescription("Number of successful Set calls"),
		metric.WithUnit("count"))
	if err != nil {
		return err
	}
	setCounter = c

	c, err = meter.Int64Counter("groupstore.read.count",
		metric.WithDescription("Number of group reads served over HTTP"),
		metric.WithUnit("count"))
	if err != nil {
		return err
	}
	readCounter = c

	g, err := meter.Int64Gauge("groupstore.subscribers.gauge",
		metric.WithDescription("Number of active subscribers"),
		metric.WithUnit("count"))
	if err != nil {
		return err
	}
	subscriberGauge = g

	c, err = meter.Int64Counter("groupstore.watch.count",
		metric.WithDescription("Number of websocket watch connections opened"),
		metric.WithUnit("count"))
	if err != nil {
		return err
	}
	watchCounter = c

	return nil
}

func ensure() {
	if err := New(); err != nil {
		slog.Error("Failed to initialize local metrics", "error", err)
	}
}

func SetCounter() metric.Int64Counter {
	ensure()
	return setCounter
}

func ReadCounter() metric.Int64Counter {
	ensure()
	return readCounter
}

func SubscriberGauge() metric.Int64Gauge {
	ensure()
	return subscriberGauge
}

func WatchCounter() metric.Int64Counter {
	ensure()
	return watchCounter
}
