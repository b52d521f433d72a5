// Package health aggregates pass/fail checks for the subsystems the
// ladder engine depends on (exchange connectivity, journal writes,
// scheduler liveness) behind the core.IHealthMonitor contract.
package health

import (
	"sync"

	"ladderbot/internal/core"
)

// Manager implements core.IHealthMonitor by running a named set of
// checks on demand. Checks are cheap, synchronous functions; callers
// decide how often to poll them (the observability server polls on
// every /health request).
type Manager struct {
	logger core.ILogger

	mu     sync.RWMutex
	checks map[string]func() error
}

func NewManager(logger core.ILogger) *Manager {
	return &Manager{
		logger: logger.WithField("component", "health_manager"),
		checks: make(map[string]func() error),
	}
}

// Register adds or replaces a named check.
func (m *Manager) Register(name string, check func() error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// GetStatus runs every registered check and returns "ok" or the error
// text per name.
func (m *Manager) GetStatus() map[string]string {
	m.mu.RLock()
	checks := make(map[string]func() error, len(m.checks))
	for name, check := range m.checks {
		checks[name] = check
	}
	m.mu.RUnlock()

	status := make(map[string]string, len(checks))
	for name, check := range checks {
		if err := check(); err != nil {
			status[name] = err.Error()
			m.logger.Warn("health check failed", "check", name, "error", err)
			continue
		}
		status[name] = "ok"
	}
	return status
}

// IsHealthy reports whether every registered check currently passes.
func (m *Manager) IsHealthy() bool {
	for _, status := range m.GetStatus() {
		if status != "ok" {
			return false
		}
	}
	return true
}
