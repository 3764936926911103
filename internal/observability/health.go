package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

type HealthCheck func(context.Context) error

type componentHealth struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Latency string       `json:"latency"`
}

type healthResponse struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Uptime     string                     `json:"uptime"`
	Components map[string]componentHealth `json:"components"`
	Stats      map[string]int             `json:"stats,omitempty"`
}

// StatsFunc reports live in-memory counts (connections, sessions, rooms,
// voice peers) alongside the dependency checks.
type StatsFunc func() map[string]int

// HealthChecker serves /health, /health/ready and /health/live. Readiness
// requires every registered check to pass; liveness only proves the
// process is serving.
type HealthChecker struct {
	mu        sync.RWMutex
	checks    map[string]HealthCheck
	stats     StatsFunc
	logger    *zap.Logger
	startTime time.Time
	server    *http.Server
}

func NewHealthChecker(logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		checks:    make(map[string]HealthCheck),
		logger:    logger,
		startTime: time.Now(),
	}
}

func (h *HealthChecker) RegisterCheck(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

func (h *HealthChecker) SetStats(fn StatsFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stats = fn
}

func (h *HealthChecker) Start(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/health/ready", h.handleReadiness)
	mux.HandleFunc("/health/live", h.handleLiveness)

	h.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	h.logger.Info("health server listening", zap.Int("port", port))

	errChan := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return h.server.Shutdown(shutdownCtx)
	}
}

func (h *HealthChecker) snapshot() (map[string]HealthCheck, StatsFunc) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	checks := make(map[string]HealthCheck, len(h.checks))
	for name, check := range h.checks {
		checks[name] = check
	}
	return checks, h.stats
}

func (h *HealthChecker) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks, stats := h.snapshot()

	components := make(map[string]componentHealth, len(checks))
	overall := StatusHealthy

	for name, check := range checks {
		start := time.Now()
		err := check(ctx)

		component := componentHealth{
			Status:  StatusHealthy,
			Latency: time.Since(start).String(),
		}
		if err != nil {
			component.Status = StatusUnhealthy
			component.Message = err.Error()
			overall = StatusUnhealthy
		}
		components[name] = component
	}

	response := healthResponse{
		Status:     overall,
		Timestamp:  time.Now(),
		Uptime:     time.Since(h.startTime).String(),
		Components: components,
	}
	if stats != nil {
		response.Stats = stats()
	}

	w.Header().Set("Content-Type", "application/json")
	if overall == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode health response", zap.Error(err))
	}
}

func (h *HealthChecker) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks, _ := h.snapshot()
	for _, check := range checks {
		if err := check(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}

	_, _ = w.Write([]byte("ready"))
}

func (h *HealthChecker) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("alive"))
}
