package rpc

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/octopus-network/relay-client/logger"
)

// httpMetrics are the instruments recorded for every REST API request.
type httpMetrics struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
	log      *slog.Logger
}

func newHTTPMetrics(mtr metric.Meter, log *slog.Logger) (*httpMetrics, error) {
	m := &httpMetrics{log: log}
	var err error
	if m.calls, err = mtr.Int64Counter("calls", metric.WithDescription("Number of REST API requests served")); err != nil {
		return nil, err
	}
	if m.duration, err = mtr.Float64Histogram("duration", metric.WithDescription("Time spent serving the REST API request"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.inFlight, err = mtr.Int64UpDownCounter("in_flight", metric.WithDescription("Number of REST API requests being served")); err != nil {
		return nil, err
	}
	return m, nil
}

/*
instrumentHTTP returns middleware recording the request count, the request
duration and the number of in-flight requests per route. When the instruments
can't be created requests are served without instrumentation.
*/
func instrumentHTTP(mtr metric.Meter, log *slog.Logger) mux.MiddlewareFunc {
	m, err := newHTTPMetrics(mtr, log)
	if err != nil {
		log.Error("creating REST API metrics", logger.Error(err))
		return func(next http.Handler) http.Handler { return next }
	}
	return m.middleware
}

func (m *httpMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		attrs := m.requestAttributes(req)
		m.inFlight.Add(ctx, 1, metric.WithAttributes(attrs...))
		defer m.inFlight.Add(ctx, -1, metric.WithAttributes(attrs...))

		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(rec, req)

		set := attribute.NewSet(append(attrs, semconv.HTTPResponseStatusCode(rec.status()))...)
		m.calls.Add(ctx, 1, metric.WithAttributeSet(set))
		m.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributeSet(set))
	})
}

// requestAttributes returns the method and the route template of the request.
func (m *httpMetrics) requestAttributes(req *http.Request) []attribute.KeyValue {
	attrs := []attribute.KeyValue{semconv.HTTPRequestMethodKey.String(req.Method)}
	route := mux.CurrentRoute(req)
	if route == nil {
		return attrs
	}
	tmpl, err := route.GetPathTemplate()
	if err != nil {
		m.log.WarnContext(req.Context(), "reading route path template", logger.Error(err))
		return attrs
	}
	return append(attrs, semconv.HTTPRoute(tmpl))
}

// statusRecorder remembers the first status code sent to the client.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.code == 0 {
		r.code = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.code == 0 {
		r.code = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) status() int {
	if r.code == 0 {
		return http.StatusOK
	}
	return r.code
}
