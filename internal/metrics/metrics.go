// Package metrics exposes the client's Prometheus instruments on a private
// registry.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/matheus3301/wachat/internal/reconcile"
)

const namespace = "wachat"

// Metrics holds the registered instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	MergeRecords  *prometheus.CounterVec
	PushEvents    *prometheus.CounterVec
	Writes        *prometheus.CounterVec
	Rollbacks     *prometheus.CounterVec
	StoreMessages prometheus.Gauge
}

// New creates and registers all instruments.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		MergeRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_records_total",
			Help:      "Records merged into the store by source and outcome.",
		}, []string{"source", "result"}),
		PushEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_events_total",
			Help:      "Push channel events handled by kind.",
		}, []string{"kind"}),
		Writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Durable writes by action and result.",
		}, []string{"action", "result"}),
		Rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollbacks_total",
			Help:      "Optimistic changes reverted after a failed write.",
		}, []string{"action"}),
		StoreMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_messages",
			Help:      "Messages currently held by the store.",
		}),
	}
	reg.MustRegister(
		m.MergeRecords, m.PushEvents, m.Writes, m.Rollbacks, m.StoreMessages,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveMerge records the outcome of one merge.
func (m *Metrics) ObserveMerge(source string, res reconcile.MergeResult) {
	if m == nil {
		return
	}
	m.MergeRecords.WithLabelValues(source, "inserted").Add(float64(res.Inserted))
	m.MergeRecords.WithLabelValues(source, "updated").Add(float64(res.Updated))
	m.MergeRecords.WithLabelValues(source, "unchanged").Add(float64(res.Unchanged))
	m.MergeRecords.WithLabelValues(source, "skipped").Add(float64(res.Skipped))
}

// ObservePush counts one push event.
func (m *Metrics) ObservePush(kind string) {
	if m == nil {
		return
	}
	m.PushEvents.WithLabelValues(kind).Inc()
}

// ObserveWrite counts one durable write.
func (m *Metrics) ObserveWrite(action string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Writes.WithLabelValues(action, result).Inc()
}

// ObserveRollback counts one reverted optimistic change.
func (m *Metrics) ObserveRollback(action string) {
	if m == nil {
		return
	}
	m.Rollbacks.WithLabelValues(action).Inc()
}

// SetStoreSize sets the store gauge.
func (m *Metrics) SetStoreSize(n int) {
	if m == nil {
		return
	}
	m.StoreMessages.Set(float64(n))
}

// RegisterDropped exposes a counter read from fn, typically the bus drop count.
func (m *Metrics) RegisterDropped(fn func() uint64) {
	if m == nil {
		return
	}
	m.Registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bus_dropped_events_total",
		Help:      "Bus deliveries skipped because a subscriber was full.",
	}, func() float64 { return float64(fn()) }))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Server serves /metrics on a configured address.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger *zap.Logger
}

// Listen binds addr and returns a server ready to Serve.
func Listen(addr string, m *Metrics, logger *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &Server{
		srv:    &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:     ln,
		logger: logger,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Serve blocks until the server is shut down.
func (s *Server) Serve() {
	s.logger.Info("metrics server listening", zap.String("addr", s.Addr()))
	if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("metrics server failed", zap.Error(err))
	}
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
