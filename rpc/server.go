package rpc

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/metric"

	"github.com/octopus-network/relay-client/observability"
)

const (
	headerContentType = "Content-Type"
	applicationJson   = "application/json"

	pathREST    = "/api/v1"
	pathRPC     = "/rpc"
	pathMetrics = "/metrics"

	DefaultMaxBodyBytes           int64 = 1 << 20
	DefaultBatchItemLimit         int   = 100
	DefaultBatchResponseSizeLimit int   = int(DefaultMaxBodyBytes)
)

var corsHeaders = handlers.AllowedHeaders([]string{"Accept", "Accept-Language", "Content-Language", "Origin", headerContentType})

type (
	// Registrar mounts REST endpoints on the API router.
	Registrar interface {
		Register(r *mux.Router)
	}

	// RegistrarFunc is an adapter to use a function as Registrar.
	RegistrarFunc func(r *mux.Router)

	Observability interface {
		Meter(name string, opts ...metric.MeterOption) metric.Meter
		MetricsHandler() http.Handler
		Logger() *slog.Logger
	}

	// API is a JSON-RPC service whose exported methods are served as "<Namespace>_<method>".
	API struct {
		Namespace string
		Service   any
	}

	// ServerConfiguration of the relay client HTTP server.
	ServerConfiguration struct {
		// TCP address to listen on, "host:port".
		Address string

		// Zero or negative timeout means no timeout, see http.Server for details.
		ReadTimeout       time.Duration
		ReadHeaderTimeout time.Duration
		WriteTimeout      time.Duration
		IdleTimeout       time.Duration

		// Maximum size of the request body, DefaultMaxBodyBytes when not positive.
		MaxBodyBytes int64

		// Limits of a JSON-RPC batch: number of requests and total size of the responses.
		BatchItemLimit         int
		BatchResponseSizeLimit int

		// JSON-RPC services to serve.
		APIs []API
	}
)

func (c *ServerConfiguration) IsAddressEmpty() bool {
	return strings.TrimSpace(c.Address) == ""
}

func (c *ServerConfiguration) isValid() error {
	var errs []error
	if c.BatchItemLimit < 0 {
		errs = append(errs, fmt.Errorf("batch item limit must not be negative, got %d", c.BatchItemLimit))
	}
	if c.BatchResponseSizeLimit < 0 {
		errs = append(errs, fmt.Errorf("batch response size limit must not be negative, got %d", c.BatchResponseSizeLimit))
	}
	for i, api := range c.APIs {
		if api.Namespace == "" || api.Service == nil {
			errs = append(errs, fmt.Errorf("API[%d]: namespace and service are required", i))
		}
	}
	return errors.Join(errs...)
}

func (c *ServerConfiguration) maxBodyBytes() int64 {
	if c.MaxBodyBytes <= 0 {
		return DefaultMaxBodyBytes
	}
	return c.MaxBodyBytes
}

/*
NewHTTPServer returns server for the REST endpoints of the registrars (under
/api/v1), the JSON-RPC services of the configuration (/rpc, both HTTP and
WebSocket) and the Prometheus metrics (/metrics, only when the exporter is
enabled). Server is not started.
*/
func NewHTTPServer(conf *ServerConfiguration, obs Observability, registrars ...Registrar) (*http.Server, error) {
	if err := conf.isValid(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(http.NotFound)

	api := router.PathPrefix(pathREST).Subrouter()
	api.Use(handlers.CORS(corsHeaders), instrumentHTTP(obs.Meter(observability.ScopeRESTAPI), obs.Logger()))
	for _, r := range registrars {
		r.Register(api)
	}

	if err := mountJSONRPC(router, conf); err != nil {
		return nil, err
	}

	if h := obs.MetricsHandler(); h != nil {
		router.Handle(pathMetrics, h).Methods(http.MethodGet)
	}

	return &http.Server{
		Addr:              conf.Address,
		ReadTimeout:       conf.ReadTimeout,
		ReadHeaderTimeout: conf.ReadHeaderTimeout,
		WriteTimeout:      conf.WriteTimeout,
		IdleTimeout:       conf.IdleTimeout,
		Handler:           http.MaxBytesHandler(router, conf.maxBodyBytes()),
	}, nil
}

func mountJSONRPC(router *mux.Router, conf *ServerConfiguration) error {
	srv := rpc.NewServer()
	srv.SetBatchLimits(conf.BatchItemLimit, conf.BatchResponseSizeLimit)
	for _, api := range conf.APIs {
		if err := srv.RegisterName(api.Namespace, api.Service); err != nil {
			return fmt.Errorf("registering JSON-RPC service %q: %w", api.Namespace, err)
		}
	}

	// upgrade requests must be matched before the plain HTTP route
	router.Handle(pathRPC, srv.WebsocketHandler([]string{"*"})).
		Headers("Connection", "Upgrade", "Upgrade", "websocket")

	rpcRouter := router.PathPrefix(pathRPC).Subrouter()
	rpcRouter.Handle("", srv)
	rpcRouter.Use(handlers.CORS(corsHeaders))
	return nil
}

func (f RegistrarFunc) Register(r *mux.Router) {
	f(r)
}
