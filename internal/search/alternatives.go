package search

import (
	"context"

	"github.com/urbansafe/evacroute/internal/graph"
)

const (
	// DefaultAlternatives is the number of diversified routes requested when
	// the caller does not say otherwise.
	DefaultAlternatives = 2

	// altPenaltyFactor multiplies the cost of edges already used by earlier
	// routes before each alternative search. Applied to the call-scoped
	// overlay only, never the shared graph.
	altPenaltyFactor = 2.0
)

// FindRouteWithAlternatives computes the primary route and up to maxAlts
// penalty-diversified alternatives. Each alternative search observes the
// overlay as updated by every prior route in this call. A failing alternative
// search ends the loop without erroring the operation; only the primary
// search's failure propagates.
func FindRouteWithAlternatives(ctx context.Context, view *graph.WeightedView, originNode int64, goalNodes []int64, maxAlts int) (*Result, []*Result, error) {
	primary, err := FindRoute(ctx, view, originNode, goalNodes)
	if err != nil {
		return nil, nil, err
	}

	found := []*Result{primary}
	overlay := view.Overlay()
	penalize(overlay, primary)

	var alts []*Result
	for len(alts) < maxAlts {
		alt, err := FindRoute(ctx, view, originNode, goalNodes)
		if err != nil {
			break
		}
		if duplicateOf(alt, found) {
			break
		}
		alts = append(alts, alt)
		found = append(found, alt)
		penalize(overlay, alt)
	}

	return primary, alts, nil
}

func penalize(overlay *graph.CostOverlay, r *Result) {
	for _, edgeID := range r.EdgeIDs {
		overlay.Multiply(edgeID, altPenaltyFactor)
	}
}

func duplicateOf(candidate *Result, found []*Result) bool {
	for _, r := range found {
		if sameNodes(candidate.NodeIDs, r.NodeIDs) {
			return true
		}
	}
	return false
}

func sameNodes(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
