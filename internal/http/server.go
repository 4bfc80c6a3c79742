package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"roomwarden/internal/core"
)

type Server struct {
	config  *core.ServerConfig
	logger  *zap.Logger
	server  *http.Server
	metrics *Metrics
}

type Metrics struct {
	MessagesTotal      *prometheus.CounterVec
	ActionsTotal       *prometheus.CounterVec
	ClassifierCalls    *prometheus.CounterVec
	ClassifierDuration prometheus.Histogram
	StoreErrorsTotal   prometheus.Counter
	TrackedSenders     prometheus.Gauge
}

// NewServer builds the operational HTTP server: health and readiness probes,
// prometheus metrics and a landing page. Metrics live in a private registry
// so multiple instances can coexist in one process.
func NewServer(config *core.ServerConfig, logger *zap.Logger) *Server {
	metrics := &Metrics{
		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roomwarden_messages_total",
				Help: "Total number of messages evaluated, by moderation outcome",
			},
			[]string{"outcome"},
		),
		ActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roomwarden_actions_total",
				Help: "Total number of moderation actions dispatched",
			},
			[]string{"action", "status"},
		),
		ClassifierCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roomwarden_classifier_calls_total",
				Help: "Total number of spam classifier calls",
			},
			[]string{"status"},
		),
		ClassifierDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "roomwarden_classifier_duration_seconds",
				Help:    "Spam classifier round-trip time",
				Buckets: prometheus.DefBuckets,
			},
		),
		StoreErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "roomwarden_store_errors_total",
				Help: "Total number of sender store failures",
			},
		),
		TrackedSenders: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "roomwarden_tracked_senders",
				Help: "Number of senders with an active duplicate record",
			},
		),
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics.MessagesTotal,
		metrics.ActionsTotal,
		metrics.ClassifierCalls,
		metrics.ClassifierDuration,
		metrics.StoreErrorsTotal,
		metrics.TrackedSenders,
	)

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"roomwarden"}`))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready","service":"roomwarden"}`))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>RoomWarden</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .header { color: #333; }
        .endpoint { margin: 10px 0; }
        .endpoint a { text-decoration: none; color: #0066cc; }
        .endpoint a:hover { text-decoration: underline; }
    </style>
</head>
<body>
    <h1 class="header">🛡️ RoomWarden</h1>
    <p>Matrix Room Moderation Service</p>

    <h2>Endpoints</h2>
    <div class="endpoint">📊 <a href="/metrics">Metrics</a> - Prometheus metrics</div>
    <div class="endpoint">💚 <a href="/healthz">Health</a> - Health check</div>
    <div class="endpoint">✅ <a href="/readyz">Ready</a> - Readiness check</div>

    <h2>Status</h2>
    <p>Service is running and watching configured rooms.</p>
</body>
</html>`))
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return &Server{
		config:  config,
		logger:  logger,
		server:  server,
		metrics: metrics,
	}
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Handler exposes the route mux for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) GetMetrics() *Metrics {
	return s.metrics
}

func (s *Server) RecordMessage(outcome string) {
	s.metrics.MessagesTotal.WithLabelValues(outcome).Inc()
}

func (s *Server) RecordAction(action, status string) {
	s.metrics.ActionsTotal.WithLabelValues(action, status).Inc()
}

func (s *Server) RecordClassifierCall(status string, duration time.Duration) {
	s.metrics.ClassifierCalls.WithLabelValues(status).Inc()
	s.metrics.ClassifierDuration.Observe(duration.Seconds())
}

func (s *Server) RecordStoreError() {
	s.metrics.StoreErrorsTotal.Inc()
}

func (s *Server) SetTrackedSenders(count int) {
	s.metrics.TrackedSenders.Set(float64(count))
}
