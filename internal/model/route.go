package model

import "time"

// RiskLevel is the qualitative risk bucket for a computed route.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// criticalEdgeCost is the per-edge cost above which a single segment is
// treated as critical regardless of the route average.
const criticalEdgeCost = 0.8

// RiskLevelFor buckets the mean per-edge cost of a route.
func RiskLevelFor(meanEdgeCost float64) RiskLevel {
	switch {
	case meanEdgeCost < 0.3:
		return RiskLow
	case meanEdgeCost < 0.6:
		return RiskModerate
	case meanEdgeCost < 0.8:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// RouteRiskLevel buckets the mean per-edge cost, elevated to at least RiskHigh
// when the worst edge crosses the critical threshold. A long quiet approach
// must not average away a blocked segment the route still passes through.
func RouteRiskLevel(meanEdgeCost, worstEdgeCost float64) RiskLevel {
	level := RiskLevelFor(meanEdgeCost)
	if worstEdgeCost >= criticalEdgeCost && (level == RiskLow || level == RiskModerate) {
		return RiskHigh
	}
	return level
}

// Route is a single walkable path from an origin to a safe zone.
type Route struct {
	NodeIDs        []int64   `json:"node_ids"`
	Points         []LatLng  `json:"points"`
	SafeZoneID     string    `json:"safe_zone_id"`
	DistanceMeters float64   `json:"distance_meters"`
	ETAMinutes     int       `json:"eta_minutes"`
	MeanEdgeCost   float64   `json:"mean_edge_cost"`
	WorstEdgeCost  float64   `json:"worst_edge_cost"`
	RiskLevel      RiskLevel `json:"risk_level"`
}

// SameNodeSequence reports whether two routes visit the identical node sequence.
func (r Route) SameNodeSequence(other Route) bool {
	if len(r.NodeIDs) != len(other.NodeIDs) {
		return false
	}
	for i := range r.NodeIDs {
		if r.NodeIDs[i] != other.NodeIDs[i] {
			return false
		}
	}
	return true
}

// RouteResult is the outcome of a route calculation: the primary route plus
// any penalty-diversified alternatives.
type RouteResult struct {
	Primary      Route     `json:"primary"`
	Alternatives []Route   `json:"alternatives,omitempty"`
	ComputedAt   time.Time `json:"computed_at"`
}
