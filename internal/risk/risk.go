// Package risk maps an edge plus the current condition snapshots to a scalar
// cost. Everything here is a pure function of its arguments; per-search state
// belongs in graph overlays.
package risk

import (
	"math"

	"github.com/urbansafe/evacroute/internal/graph"
	"github.com/urbansafe/evacroute/internal/model"
)

// Fixed blend weights. Not learned, not configurable: route comparability
// across sessions depends on every calculation using the same formula.
const (
	WeightSeismic    = 0.4
	WeightStructural = 0.3
	WeightDensity    = 0.2
	WeightHazard     = 0.1
	WeightDistance   = 0.1

	// DefaultStructuralRisk applies when the registry has no descriptor for
	// an edge.
	DefaultStructuralRisk = 0.2

	// DensitySaturation is the pedestrian density (persons/m²) treated as
	// fully congested. Crowd-crush literature puts danger near 4-5/m².
	DensitySaturation = 4.0

	// DistanceSaturationMeters normalizes the distance term so mean per-edge
	// cost stays on the [0,1] scale the risk-level buckets assume.
	DistanceSaturationMeters = 1000.0

	// intensityCeiling caps the simplified intensity estimate.
	intensityCeiling = 7.0

	// Extreme-risk escalation: when either term alone crosses its threshold
	// the edge is treated as non-linearly dangerous.
	seismicEscalation    = 0.8
	structuralEscalation = 0.9
	escalationMultiplier = 3.0

	// criticalHazardFloor is the minimum cost of an edge carrying a
	// critical-class hazard report. At 0.1 weight the hazard term alone can
	// never make a collapse outweigh a modest detour, so the floor keeps the
	// search off such edges whenever any alternative exists and marks the
	// edge as critical-cost when it does not.
	criticalHazardFloor = 0.85
)

// Inputs bundles the read-only condition snapshots for one calculation.
type Inputs struct {
	Seismic model.SeismicSnapshot
	Hazards model.HazardMap
	Density map[int64]float64 // persons/m² by edge id
}

// EdgeCost computes the risk-weighted cost of an edge. midpoint is the
// geographic midpoint of the edge's endpoints, used for seismic attenuation.
// The result is always >= the distance term, so cost grows monotonically with
// distance.
func EdgeCost(e *graph.Edge, midpoint model.LatLng, in Inputs) float64 {
	seismic := SeismicRisk(midpoint, in.Seismic)
	structural := StructuralRisk(e.Structural)
	density := DensityRisk(in.Density[e.ID])
	reports := in.Hazards.Reports(e.ID)
	hazard := HazardRisk(reports)

	cost := WeightSeismic*seismic +
		WeightStructural*structural +
		WeightDensity*density +
		WeightHazard*hazard +
		WeightDistance*distanceTerm(e.LengthMeters)

	if seismic > seismicEscalation || structural > structuralEscalation {
		cost *= escalationMultiplier
	}
	if cost < criticalHazardFloor && hasCriticalHazard(reports) {
		cost = criticalHazardFloor
	}
	return cost
}

func hasCriticalHazard(reports []model.HazardReport) bool {
	for _, r := range reports {
		if r.Kind.Critical() {
			return true
		}
	}
	return false
}

func distanceTerm(lengthMeters float64) float64 {
	return clamp01(lengthMeters / DistanceSaturationMeters)
}

// SeismicRisk returns the worst attenuated shaking intensity at loc over all
// events in the snapshot, normalized by the intensity ceiling.
func SeismicRisk(loc model.LatLng, snap model.SeismicSnapshot) float64 {
	var worst float64
	for _, ev := range snap.Events {
		if i := intensityAt(loc, ev); i > worst {
			worst = i
		}
	}
	return clamp01(worst / intensityCeiling)
}

// intensityAt estimates shaking intensity from magnitude attenuated by
// hypocentral distance. Simplified from JMA-style attenuation relations.
func intensityAt(loc model.LatLng, ev model.SeismicEvent) float64 {
	epiKm := model.HaversineMeters(loc, ev.Location) / 1000
	hypoKm := math.Sqrt(epiKm*epiKm + ev.DepthKm*ev.DepthKm)
	if hypoKm < 1 {
		hypoKm = 1
	}
	intensity := 2*ev.Magnitude - 4.6*math.Log10(hypoKm) + 0.2
	if intensity < 0 {
		return 0
	}
	if intensity > intensityCeiling {
		return intensityCeiling
	}
	return intensity
}

// StructuralRisk blends building age, construction class, and prior damage
// into [0,1]. A nil descriptor yields the default prior.
func StructuralRisk(d *model.StructuralDescriptor) float64 {
	if d == nil {
		return DefaultStructuralRisk
	}
	damage := 0.0
	if d.PriorDamage {
		damage = 1.0
	}
	blend := 0.4*ageRisk(d.YearBuilt) + 0.4*d.Construction.Fragility() + 0.2*damage
	return clamp01(blend)
}

// ageRisk scores construction era against modern seismic codes.
func ageRisk(yearBuilt int) float64 {
	switch {
	case yearBuilt <= 0:
		return 0.5
	case yearBuilt < 1960:
		return 0.9
	case yearBuilt < 1981:
		return 0.7
	case yearBuilt < 2000:
		return 0.45
	default:
		return 0.2
	}
}

// DensityRisk normalizes observed pedestrian density against the saturation
// constant.
func DensityRisk(personsPerSqm float64) float64 {
	if personsPerSqm < 0 {
		return 0
	}
	return clamp01(personsPerSqm / DensitySaturation)
}

// HazardRisk sums confidence-weighted severity across an edge's reports,
// capped at 1. Critical-class hazards contribute their full severity even at
// low confidence: an unconfirmed gas leak still dominates a confirmed crack.
func HazardRisk(reports []model.HazardReport) float64 {
	var sum float64
	for _, r := range reports {
		conf := clamp01(r.Confidence)
		if r.Kind.Critical() && conf < 0.5 {
			conf = 0.5
		}
		sum += r.Kind.Severity() * conf
	}
	return clamp01(sum)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
