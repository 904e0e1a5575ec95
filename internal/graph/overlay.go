package graph

// CostFunc computes the base risk-weighted cost of an edge for one
// calculation. Implementations must be pure over the edge and the immutable
// condition snapshots captured at call start.
type CostFunc func(e *Edge) float64

// CostOverlay holds the per-calculation multiplicative penalties applied on
// top of the base cost (alternative-route diversification). It is scoped to a
// single calculation and never written back to the shared graph.
type CostOverlay struct {
	factors map[int64]float64
}

// NewCostOverlay returns an empty overlay.
func NewCostOverlay() *CostOverlay {
	return &CostOverlay{factors: make(map[int64]float64)}
}

// Multiply compounds a penalty factor onto an edge.
func (o *CostOverlay) Multiply(edgeID int64, factor float64) {
	if f, ok := o.factors[edgeID]; ok {
		o.factors[edgeID] = f * factor
		return
	}
	o.factors[edgeID] = factor
}

// Factor returns the accumulated penalty for an edge, 1 when unpenalized.
func (o *CostOverlay) Factor(edgeID int64) float64 {
	if o == nil {
		return 1
	}
	if f, ok := o.factors[edgeID]; ok {
		return f
	}
	return 1
}

// WeightedView combines a graph snapshot, a base cost function, and an
// overlay into the per-calculation view the search runs against. Base costs
// are memoized per view, so repeated searches within one calculation (the
// alternatives loop) do not recompute the risk model per visit.
type WeightedView struct {
	snap    *Snapshot
	cost    CostFunc
	overlay *CostOverlay
	memo    map[int64]float64
}

// NewWeightedView builds a weighted view. overlay may be nil for a plain
// risk-weighted search.
func NewWeightedView(snap *Snapshot, cost CostFunc, overlay *CostOverlay) *WeightedView {
	return &WeightedView{
		snap:    snap,
		cost:    cost,
		overlay: overlay,
		memo:    make(map[int64]float64),
	}
}

// Snapshot returns the underlying immutable graph view.
func (v *WeightedView) Snapshot() *Snapshot { return v.snap }

// Overlay returns the view's overlay, allocating one on first use so the
// alternatives loop can penalize edges in place.
func (v *WeightedView) Overlay() *CostOverlay {
	if v.overlay == nil {
		v.overlay = NewCostOverlay()
	}
	return v.overlay
}

// EdgeCost returns the effective cost of an edge under this view.
func (v *WeightedView) EdgeCost(e *Edge) float64 {
	return v.BaseEdgeCost(e) * v.overlay.Factor(e.ID)
}

// BaseEdgeCost returns the memoized risk-model cost without the overlay
// factor. Route summaries use this so diversification penalties do not
// distort the reported risk level.
func (v *WeightedView) BaseEdgeCost(e *Edge) float64 {
	base, ok := v.memo[e.ID]
	if !ok {
		base = v.cost(e)
		if base < 0 {
			base = 0
		}
		v.memo[e.ID] = base
	}
	return base
}
