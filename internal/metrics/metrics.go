package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BibekSapkota1/Share-Project/internal/model"
)

// Metrics holds all Prometheus metrics for the RSI scanner.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Scanning
	ScansTotal        *prometheus.CounterVec // labels: signal
	ScanDuration      prometheus.Histogram
	ScanFailures      prometheus.Counter
	UniverseScanTotal prometheus.Counter

	// Trade cycles
	CyclesOpened *prometheus.CounterVec // labels: symbol
	CyclesClosed *prometheus.CounterVec // labels: reason
	TSLRaises    prometheus.Counter

	// Store latency
	StoreTxDuration *prometheus.HistogramVec // labels: op

	// Circuit breaker (0=closed, 1=open, 2=half-open)
	RedisCircuitBreakerState prometheus.Gauge
	RedisCircuitBreakerTrips prometheus.Counter

	// Websocket fan-out
	WSClients     prometheus.Gauge
	WSDrops       prometheus.Counter
	EventDelivery prometheus.Histogram
}

// NewMetrics builds the metric set and registers it with reg. A nil reg
// uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		ScansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rsiscan_scans_total",
			Help: "Per-symbol scan decisions by signal",
		}, []string{"signal"}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rsiscan_universe_scan_duration_seconds",
			Help:    "Wall time of a full universe scan",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ScanFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rsiscan_symbol_failures_total",
			Help: "Symbols excluded from a universe scan because their evaluation failed",
		}),
		UniverseScanTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rsiscan_universe_scans_total",
			Help: "Completed universe scans",
		}),

		CyclesOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rsiscan_cycles_opened_total",
			Help: "Trade cycles opened",
		}, []string{"symbol"}),
		CyclesClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rsiscan_cycles_closed_total",
			Help: "Trade cycles closed by sell reason (AUTOMATIC, RSI, TSL, MANUAL)",
		}, []string{"reason"}),
		TSLRaises: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rsiscan_tsl_raises_total",
			Help: "Trailing stop raises on a new high",
		}),

		StoreTxDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rsiscan_store_tx_duration_seconds",
			Help:    "Cycle store transaction latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rsiscan_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rsiscan_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rsiscan_ws_clients",
			Help: "Connected websocket event subscribers",
		}),
		WSDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rsiscan_ws_drops_total",
			Help: "Cycle events dropped for slow websocket clients",
		}),
		EventDelivery: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rsiscan_event_delivery_seconds",
			Help:    "Delay from a cycle event's timestamp to its websocket fan-out",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}

	reg.MustRegister(
		m.ScansTotal,
		m.ScanDuration,
		m.ScanFailures,
		m.UniverseScanTotal,
		m.CyclesOpened,
		m.CyclesClosed,
		m.TSLRaises,
		m.StoreTxDuration,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.WSClients,
		m.WSDrops,
		m.EventDelivery,
	)

	return m
}

// ObserveScan counts one per-symbol decision.
func (m *Metrics) ObserveScan(sig model.Signal) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(string(sig)).Inc()
}

// ObserveUniverseScan records a completed universe scan.
func (m *Metrics) ObserveUniverseScan(d time.Duration, failed int) {
	if m == nil {
		return
	}
	m.UniverseScanTotal.Inc()
	m.ScanDuration.Observe(d.Seconds())
	m.ScanFailures.Add(float64(failed))
}

// CycleOpened counts an opened cycle.
func (m *Metrics) CycleOpened(symbol string) {
	if m == nil {
		return
	}
	m.CyclesOpened.WithLabelValues(symbol).Inc()
}

// CycleClosed counts a closed cycle. Manual free-text reasons collapse into
// the MANUAL label.
func (m *Metrics) CycleClosed(reason string) {
	if m == nil {
		return
	}
	if !model.IsAutomaticReason(reason) {
		reason = "MANUAL"
	}
	m.CyclesClosed.WithLabelValues(reason).Inc()
}

// TSLRaised counts a trailing stop raise.
func (m *Metrics) TSLRaised() {
	if m == nil {
		return
	}
	m.TSLRaises.Inc()
}

// ObserveStore records the latency of one store call since start.
func (m *Metrics) ObserveStore(op string, start time.Time) {
	if m == nil {
		return
	}
	m.StoreTxDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// BreakerState mirrors the redis circuit breaker. trip is true when the
// breaker has just opened.
func (m *Metrics) BreakerState(state int, trip bool) {
	if m == nil {
		return
	}
	m.RedisCircuitBreakerState.Set(float64(state))
	if trip {
		m.RedisCircuitBreakerTrips.Inc()
	}
}

// WSClientDelta adjusts the connected websocket client gauge.
func (m *Metrics) WSClientDelta(d int) {
	if m == nil {
		return
	}
	m.WSClients.Add(float64(d))
}

// WSDropped counts an event dropped for a slow client.
func (m *Metrics) WSDropped() {
	if m == nil {
		return
	}
	m.WSDrops.Inc()
}

// ObserveEventDelay records how long a cycle event took to reach the hub.
// Negative delays from clock skew are ignored.
func (m *Metrics) ObserveEventDelay(d time.Duration) {
	if m == nil || d < 0 {
		return
	}
	m.EventDelivery.Observe(d.Seconds())
}

// Pinger is a dependency that can be probed for liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	StoreOK        bool      `json:"store_ok"`
	RedisEnabled   bool      `json:"redis_enabled"`
	RedisConnected bool      `json:"redis_connected"`
	LastScanAt     time.Time `json:"last_scan_at"`

	// Liveness probe results
	RedisLatencyMs float64   `json:"redis_latency_ms"`
	StoreLatencyMs float64   `json:"store_latency_ms"`
	LastCheckAt    time.Time `json:"last_check_at"`
	StartedAt      time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetLastScan(t time.Time) {
	h.mu.Lock()
	h.LastScanAt = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, p Pinger) {
	start := time.Now()
	err := p.Ping(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisEnabled = true
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckStore pings the cycle store and records latency + health.
func (h *HealthStatus) CheckStore(ctx context.Context, p Pinger) {
	start := time.Now()
	err := p.Ping(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.StoreOK = err == nil
	h.StoreLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// Check runs one round of probes. Nil dependencies are skipped; a nil store
// counts as healthy.
func (h *HealthStatus) Check(ctx context.Context, store, redis Pinger) {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if store != nil {
		h.CheckStore(probeCtx, store)
	} else {
		h.mu.Lock()
		h.StoreOK = true
		h.mu.Unlock()
	}
	if redis != nil {
		h.CheckRedis(probeCtx, redis)
	}
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, store, redis Pinger, interval time.Duration) {
	h.Check(ctx, store, redis)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.Check(ctx, store, redis)
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if h.RedisEnabled && !h.RedisConnected {
		// The settings cache falls through and events are best-effort.
		overallStatus = "degraded"
	}
	if !h.StoreOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	}

	lastScan := ""
	if !h.LastScanAt.IsZero() {
		lastScan = h.LastScanAt.Format(time.RFC3339)
	}

	status := struct {
		Status         string  `json:"status"`
		Uptime         string  `json:"uptime"`
		StoreOK        bool    `json:"store_ok"`
		StoreLatencyMs float64 `json:"store_latency_ms"`
		RedisEnabled   bool    `json:"redis_enabled"`
		RedisConnected bool    `json:"redis_connected"`
		RedisLatencyMs float64 `json:"redis_latency_ms"`
		LastScanAt     string  `json:"last_scan_at"`
		LastCheckAt    string  `json:"last_check_at"`
	}{
		Status:         overallStatus,
		Uptime:         time.Since(h.StartedAt).Round(time.Second).String(),
		StoreOK:        h.StoreOK,
		StoreLatencyMs: h.StoreLatencyMs,
		RedisEnabled:   h.RedisEnabled,
		RedisConnected: h.RedisConnected,
		RedisLatencyMs: h.RedisLatencyMs,
		LastScanAt:     lastScan,
		LastCheckAt:    h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server. gatherer defaults to the
// default prometheus registry when nil.
func NewServer(addr string, health *HealthStatus, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler exposes the server's mux for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("metrics server error", "err", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
