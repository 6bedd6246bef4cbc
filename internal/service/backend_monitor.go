package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// OfflineBanner is shown to clients while the store is unreachable.
const OfflineBanner = "Backend unavailable. The dashboard is read-only until the connection is restored."

type pinger interface {
	Ping(ctx context.Context) error
}

// BackendStatus is the last probe result.
type BackendStatus struct {
	Available bool      `json:"available"`
	CheckedAt time.Time `json:"checked_at"`
	Error     string    `json:"error,omitempty"`
}

// BackendMonitor probes the store and tracks whether writes are allowed.
type BackendMonitor struct {
	store    pinger
	metrics  *MetricsService
	logger   *zap.Logger
	interval time.Duration
	timeout  time.Duration

	mu     sync.RWMutex
	status BackendStatus
}

// NewBackendMonitor constructs a monitor. The backend is assumed available
// until a probe says otherwise.
func NewBackendMonitor(store pinger, metrics *MetricsService, interval, timeout time.Duration, logger *zap.Logger) *BackendMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &BackendMonitor{
		store:    store,
		metrics:  metrics,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
		status:   BackendStatus{Available: true, CheckedAt: time.Now().UTC()},
	}
}

// Run probes on the interval until ctx is cancelled.
func (m *BackendMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check runs one probe and records the result.
func (m *BackendMonitor) Check(ctx context.Context) BackendStatus {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	err := m.store.Ping(probeCtx)
	elapsed := time.Since(start)

	status := BackendStatus{Available: err == nil, CheckedAt: time.Now().UTC()}
	if err != nil {
		status.Error = err.Error()
	}
	m.metrics.ObserveStoreProbe(status.Available, elapsed)

	m.mu.Lock()
	was := m.status.Available
	m.status = status
	m.mu.Unlock()

	switch {
	case was && !status.Available:
		m.logger.Warn("backend unavailable, switching to read-only", zap.Error(err))
	case !was && status.Available:
		m.logger.Info("backend available again")
	}
	return status
}

// Available reports whether writes are currently allowed.
func (m *BackendMonitor) Available() bool {
	if m == nil {
		return true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Available
}

// Status returns the last probe result.
func (m *BackendMonitor) Status() BackendStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}
