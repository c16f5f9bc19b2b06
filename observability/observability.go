package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexp "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const (
	ServiceName    = "octopus-relay-client"
	ServiceVersion = "0.1.0"

	// meter scopes
	ScopeGateway = "gateway"
	ScopeRESTAPI = "rest_api"
	ScopePoller  = "poller"
)

/*
Observability bundles the logger and the meter provider of the process.
The zero value is not usable, create it with New or NOP.
*/
type Observability struct {
	log      *slog.Logger
	mp       metric.MeterProvider
	registry *prometheus.Registry // nil unless Prometheus exporter is used
	shutdown []func(context.Context) error
}

/*
New creates observability with "metrics" exporter: empty string disables
metrics, "stdout" and "prometheus" are supported exporters.
*/
func New(metrics string, log *slog.Logger) (*Observability, error) {
	if log == nil {
		return nil, errors.New("logger is nil")
	}
	o := NOP(log)
	if metrics == "" {
		return o, nil
	}

	mp, err := o.newMeterProvider(metrics)
	if err != nil {
		return nil, fmt.Errorf("initialize meter provider: %w", err)
	}
	o.mp = mp
	o.shutdown = append(o.shutdown, mp.Shutdown)
	return o, nil
}

// NOP returns observability with no-op meter provider.
func NOP(log *slog.Logger) *Observability {
	return &Observability{log: log, mp: noop.NewMeterProvider()}
}

func (o *Observability) Logger() *slog.Logger { return o.log }

func (o *Observability) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	return o.mp.Meter(name, opts...)
}

// MetricsHandler returns handler serving the Prometheus metrics, nil when
// Prometheus exporter is not enabled.
func (o *Observability) MetricsHandler() http.Handler {
	if o.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{MaxRequestsInFlight: 1})
}

func (o *Observability) PrometheusRegisterer() prometheus.Registerer {
	if o.registry == nil {
		return nil
	}
	return o.registry
}

// Shutdown flushes the metrics exporter, waiting up to five seconds.
func (o *Observability) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	for _, fn := range o.shutdown {
		errs = append(errs, fn(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("observability shutdown: %w", err)
	}
	return nil
}

func (o *Observability) newMeterProvider(exporter string) (*sdkmetric.MeterProvider, error) {
	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(ServiceVersion),
		))
	if err != nil {
		return nil, fmt.Errorf("creating OTEL resource: %w", err)
	}

	var reader sdkmetric.Reader
	switch exporter {
	case "stdout":
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("creating stdout exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exp)
	case "prometheus":
		o.registry = prometheus.NewRegistry()
		if reader, err = promexp.New(promexp.WithRegisterer(o.registry), promexp.WithNamespace("oct")); err != nil {
			return nil, fmt.Errorf("creating Prometheus exporter: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported exporter %q", exporter)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithView(durationBuckets(ScopeRESTAPI, 100e-6, 400e-6, 0.0016, 0.01, 0.05, 0.1, 0.5, 1)),
	), nil
}

// durationBuckets sets the histogram boundaries of the "duration" instrument of the scope.
func durationBuckets(scope string, bounds ...float64) sdkmetric.View {
	return sdkmetric.NewView(
		sdkmetric.Instrument{Name: "duration", Scope: instrumentation.Scope{Name: scope}},
		sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: bounds}},
	)
}
