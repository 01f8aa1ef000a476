package health

import (
	"context"
	"sync"
	"time"
)

// Monitor aggregates health status from the registered checks.
type Monitor struct {
	checks     []Check
	cacheFor   time.Duration
	timeout    time.Duration
	lastCheck  time.Time
	lastReport *HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a monitor. Reports are cached for cacheFor so checks are
// not run on every request.
func NewMonitor(cacheFor time.Duration, checks ...Check) *Monitor {
	return &Monitor{checks: checks, cacheFor: cacheFor, timeout: 3 * time.Second}
}

// Register adds a check.
func (m *Monitor) Register(c Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks = append(m.checks, c)
	m.lastReport = nil
}

// CheckHealth runs every check, worst status wins.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && time.Since(m.lastCheck) < m.cacheFor {
		return *m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth, len(m.checks)),
	}

	for _, c := range m.checks {
		checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err := c.Run(checkCtx)
		cancel()

		if err == nil {
			report.Components[c.Name] = ComponentHealth{Status: StatusHealthy}
			continue
		}

		status := StatusDegraded
		if c.Critical {
			status = StatusCritical
		}
		report.Components[c.Name] = ComponentHealth{Status: status, Error: err.Error()}
		report.SystemStatus = worse(report.SystemStatus, status)
	}

	m.lastCheck = time.Now()
	m.lastReport = &report
	return report
}

func worse(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
