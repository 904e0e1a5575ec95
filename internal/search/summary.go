package search

import (
	"math"

	"github.com/urbansafe/evacroute/internal/graph"
	"github.com/urbansafe/evacroute/internal/model"
)

// WalkingSpeedMPS is the constant evacuation walking speed assumed for ETA.
const WalkingSpeedMPS = 1.4

// Summarize converts a raw search result into a caller-facing route. Mean
// edge cost uses the base risk-model cost, not the diversification-penalized
// one, so alternatives report honest risk levels.
func Summarize(r *Result, view *graph.WeightedView, safeZoneID string) model.Route {
	snap := view.Snapshot()

	points := make([]model.LatLng, len(r.NodeIDs))
	for i, id := range r.NodeIDs {
		points[i] = snap.Node(id).Location
	}

	var costSum, worstCost float64
	for _, edgeID := range r.EdgeIDs {
		c := view.BaseEdgeCost(snap.Edge(edgeID))
		costSum += c
		if c > worstCost {
			worstCost = c
		}
	}
	meanCost := 0.0
	if len(r.EdgeIDs) > 0 {
		meanCost = costSum / float64(len(r.EdgeIDs))
	}

	eta := 0
	if r.DistanceMeters > 0 {
		eta = int(math.Ceil(r.DistanceMeters / WalkingSpeedMPS / 60))
	}

	return model.Route{
		NodeIDs:        r.NodeIDs,
		Points:         points,
		SafeZoneID:     safeZoneID,
		DistanceMeters: r.DistanceMeters,
		ETAMinutes:     eta,
		MeanEdgeCost:   meanCost,
		WorstEdgeCost:  worstCost,
		RiskLevel:      model.RouteRiskLevel(meanCost, worstCost),
	}
}
