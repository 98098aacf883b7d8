package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TristanKruse/Beer-Game-RL/pkg/config"
	"github.com/TristanKruse/Beer-Game-RL/pkg/logger"
)

// MetricsServer provides HTTP endpoints for metrics
type MetricsServer struct {
	server  *http.Server
	metrics *PrometheusMetrics
	config  *config.MetricsConfig
}

// NewMetricsServer creates a new metrics HTTP server serving the gatherer in
// Prometheus format on cfg.Path, a JSON summary on /stats and /health.
func NewMetricsServer(cfg *config.MetricsConfig, metrics *PrometheusMetrics, gatherer prometheus.Gatherer) *MetricsServer {
	mux := http.NewServeMux()

	ms := &MetricsServer{
		metrics: metrics,
		config:  cfg,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	mux.Handle(cfg.Path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/stats", ms.handleStats)
	mux.HandleFunc("/health", ms.handleHealth)

	return ms
}

// Handler exposes the server's routes, mainly for tests
func (ms *MetricsServer) Handler() http.Handler {
	return ms.server.Handler
}

// Start starts the metrics HTTP server
func (ms *MetricsServer) Start() error {
	if !ms.config.Enabled {
		logger.GetLogger().Info("Metrics server disabled")
		return nil
	}

	logger.GetLogger().Infof("Starting metrics server on port %d", ms.config.Port)

	go func() {
		if err := ms.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.GetLogger().Errorf("Metrics server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully stops the metrics server
func (ms *MetricsServer) Stop(ctx context.Context) error {
	if !ms.config.Enabled {
		return nil
	}

	logger.GetLogger().Info("Stopping metrics server...")
	return ms.server.Shutdown(ctx)
}

func (ms *MetricsServer) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(ms.metrics.GetStats()); err != nil {
		logger.GetLogger().Errorf("Failed to encode stats: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (ms *MetricsServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(ms.metrics.startTime).String(),
	}

	_ = json.NewEncoder(w).Encode(health)
}
