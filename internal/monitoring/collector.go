// Package monitoring gathers engine health metrics and checks them against
// operational thresholds.
package monitoring

import "time"

// MetricsSnapshot holds a point-in-time view of engine health.
type MetricsSnapshot struct {
	RoutesComputed   int64 `json:"routes_computed"`
	RecalcsStarted   int64 `json:"recalcs_started"`
	RecalcsCoalesced int64 `json:"recalcs_coalesced"`
	RecalcsApplied   int64 `json:"recalcs_applied"`
	NoPathFailures   int64 `json:"no_path_failures"`
	DeadlineFailures int64 `json:"deadline_failures"`
	SessionsCreated  int64 `json:"sessions_created"`
	SessionsEvicted  int64 `json:"sessions_evicted"`

	ActiveSessions   int `json:"active_sessions"`
	DegradedSessions int `json:"degraded_sessions"`

	CollectedAt time.Time `json:"collected_at"`
}

// SessionStats abstracts the session-manager counts the collector reads.
type SessionStats interface {
	Count() int
	DegradedCount() int
}

// Collector gathers metrics from the engine counters and session manager.
type Collector struct {
	counters *Counters
	sessions SessionStats
}

// NewCollector creates a metrics collector.
func NewCollector(c *Counters, sessions SessionStats) *Collector {
	return &Collector{counters: c, sessions: sessions}
}

// Collect gathers a snapshot of engine metrics.
func (c *Collector) Collect() *MetricsSnapshot {
	return &MetricsSnapshot{
		RoutesComputed:   c.counters.RoutesComputed.Load(),
		RecalcsStarted:   c.counters.RecalcsStarted.Load(),
		RecalcsCoalesced: c.counters.RecalcsCoalesced.Load(),
		RecalcsApplied:   c.counters.RecalcsApplied.Load(),
		NoPathFailures:   c.counters.NoPathFailures.Load(),
		DeadlineFailures: c.counters.DeadlineFailures.Load(),
		SessionsCreated:  c.counters.SessionsCreated.Load(),
		SessionsEvicted:  c.counters.SessionsEvicted.Load(),
		ActiveSessions:   c.sessions.Count(),
		DegradedSessions: c.sessions.DegradedCount(),
		CollectedAt:      time.Now().UTC(),
	}
}
