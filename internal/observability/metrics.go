package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics covers the gateway's hot path: connection churn, inbound event
// handling and outbound fan-out. All record methods tolerate a nil
// receiver so components can run unmetered in tests.
type Metrics struct {
	activeConnections prometheus.Gauge
	eventsTotal       *prometheus.CounterVec
	emitsTotal        *prometheus.CounterVec
	droppedTotal      *prometheus.CounterVec
	handlerDuration   *prometheus.HistogramVec

	logger *zap.Logger
	server *http.Server
}

func NewMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "atrium_gateway_active_connections",
			Help: "Currently open WebSocket connections.",
		}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "atrium_gateway_events_total",
			Help: "Inbound events handled, by event name.",
		}, []string{"event"}),
		emitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "atrium_gateway_emits_total",
			Help: "Outbound events delivered, by audience kind.",
		}, []string{"audience"}),
		droppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "atrium_gateway_dropped_events_total",
			Help: "Outbound events dropped because a connection's buffer was full.",
		}, []string{"event"}),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "atrium_gateway_handler_duration_seconds",
			Help:    "Inbound event handler latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"event"}),
		logger: logger,
	}

	prometheus.MustRegister(
		m.activeConnections,
		m.eventsTotal,
		m.emitsTotal,
		m.droppedTotal,
		m.handlerDuration,
	)

	return m
}

func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.activeConnections.Inc()
}

func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}

func (m *Metrics) RecordEvent(event string, d time.Duration) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(event).Inc()
	m.handlerDuration.WithLabelValues(event).Observe(d.Seconds())
}

func (m *Metrics) RecordEmit(audience string, delivered int) {
	if m == nil || delivered == 0 {
		return
	}
	m.emitsTotal.WithLabelValues(audience).Add(float64(delivered))
}

func (m *Metrics) RecordDrop(event string) {
	if m == nil {
		return
	}
	m.droppedTotal.WithLabelValues(event).Inc()
}

// Start serves /metrics on its own port until the context is canceled.
func (m *Metrics) Start(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	m.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.server.Shutdown(shutdownCtx)
	}()

	m.logger.Info("metrics server listening", zap.Int("port", port))
	if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
