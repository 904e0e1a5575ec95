package monitoring

import "fmt"

// Thresholds defines the operational limits the checker enforces.
type Thresholds struct {
	// MaxFailureRate is the tolerated fraction of recalculations ending in
	// NoPathFound or DeadlineExceeded. Default 0.2.
	MaxFailureRate float64

	// MaxDegradedFraction is the tolerated fraction of sessions holding a
	// degraded route. Default 0.1.
	MaxDegradedFraction float64
}

// DefaultThresholds returns the standard limits.
func DefaultThresholds() Thresholds {
	return Thresholds{MaxFailureRate: 0.2, MaxDegradedFraction: 0.1}
}

// Finding describes one exceeded threshold.
type Finding struct {
	Name   string `json:"name"`
	Detail string `json:"detail"`
}

// Check evaluates a snapshot against the thresholds.
func Check(snap *MetricsSnapshot, th Thresholds) []Finding {
	var findings []Finding

	if snap.RecalcsStarted > 0 {
		failRate := float64(snap.NoPathFailures+snap.DeadlineFailures) / float64(snap.RecalcsStarted)
		if failRate > th.MaxFailureRate {
			findings = append(findings, Finding{
				Name:   "recalc_failure_rate",
				Detail: fmt.Sprintf("%.2f exceeds %.2f", failRate, th.MaxFailureRate),
			})
		}
	}

	if snap.ActiveSessions > 0 {
		degraded := float64(snap.DegradedSessions) / float64(snap.ActiveSessions)
		if degraded > th.MaxDegradedFraction {
			findings = append(findings, Finding{
				Name:   "degraded_sessions",
				Detail: fmt.Sprintf("%.2f exceeds %.2f", degraded, th.MaxDegradedFraction),
			})
		}
	}

	return findings
}
