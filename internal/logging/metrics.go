package logging

import (
	"math"
	"sync"
	"time"
)

// Metrics collects runtime counters for agent tasks.
type Metrics struct {
	mu sync.Mutex

	start         time.Time
	tasks         int
	failures      int
	timeouts      int
	aborts        int
	totalCost     float64
	totalDuration time.Duration
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Uptime        time.Duration `json:"uptime"`
	Tasks         int           `json:"tasks"`
	Failures      int           `json:"failures"`
	Timeouts      int           `json:"timeouts"`
	Aborts        int           `json:"aborts"`
	TotalCost     float64       `json:"total_cost_usd"`
	TotalDuration time.Duration `json:"total_duration"`
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{start: time.Now()}
}

// RecordTask records one finished agent run. errCode is the result's
// error tag ("" on success).
func (m *Metrics) RecordTask(success bool, errCode string, cost float64, d time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tasks++
	m.totalCost += cost
	m.totalDuration += d
	if success {
		return
	}
	m.failures++
	switch errCode {
	case "timeout":
		m.timeouts++
	case "aborted":
		m.aborts++
	}
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		Uptime:        time.Since(m.start),
		Tasks:         m.tasks,
		Failures:      m.failures,
		Timeouts:      m.timeouts,
		Aborts:        m.aborts,
		TotalCost:     math.Round(m.totalCost*1e4) / 1e4,
		TotalDuration: m.totalDuration,
	}
}
