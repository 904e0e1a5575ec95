package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// HazardKind enumerates the report categories the hazard aggregator emits.
type HazardKind int

const (
	HazardOther HazardKind = iota
	HazardCollapse
	HazardGasLeak
	HazardFire
	HazardFlood
	HazardDebris
	HazardCrack
)

// hazardKindInfo carries the per-kind attributes used by the risk model.
type hazardKindInfo struct {
	name     string
	severity float64 // base contribution to the hazard risk term, [0,1]
	critical bool    // collapse-class hazards dominate the capped sum
}

var hazardKinds = [...]hazardKindInfo{
	HazardOther:    {name: "other", severity: 0.15},
	HazardCollapse: {name: "collapse", severity: 0.9, critical: true},
	HazardGasLeak:  {name: "gas_leak", severity: 0.85, critical: true},
	HazardFire:     {name: "fire", severity: 0.6},
	HazardFlood:    {name: "flood", severity: 0.5},
	HazardDebris:   {name: "debris", severity: 0.35},
	HazardCrack:    {name: "crack", severity: 0.2},
}

func (k HazardKind) valid() bool {
	return k >= HazardOther && int(k) < len(hazardKinds)
}

func (k HazardKind) String() string {
	if !k.valid() {
		return "other"
	}
	return hazardKinds[k].name
}

// Severity returns the kind's base severity score in [0,1].
func (k HazardKind) Severity() float64 {
	if !k.valid() {
		return hazardKinds[HazardOther].severity
	}
	return hazardKinds[k].severity
}

// Critical reports whether the kind belongs to the critical class
// (collapse, gas leak).
func (k HazardKind) Critical() bool {
	if !k.valid() {
		return false
	}
	return hazardKinds[k].critical
}

// ParseHazardKind maps a wire name to a HazardKind. Unknown names are an
// error rather than a silent fallback.
func ParseHazardKind(s string) (HazardKind, error) {
	for k, info := range hazardKinds {
		if info.name == s {
			return HazardKind(k), nil
		}
	}
	return HazardOther, eris.Errorf("model: unknown hazard kind %q", s)
}

func (k HazardKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *HazardKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return eris.Wrap(err, "model: unmarshal hazard kind")
	}
	parsed, err := ParseHazardKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// HazardReport is a single crowd-sourced obstruction report.
type HazardReport struct {
	ID         string     `json:"id"`
	Kind       HazardKind `json:"kind"`
	Location   LatLng     `json:"location"`
	Confidence float64    `json:"confidence"` // aggregator trust score, [0,1]
	ReportedAt time.Time  `json:"reported_at"`
}

// HazardMap is a read-only snapshot of active hazards keyed by the graph edge
// they obstruct. The aggregator owns spatial binning; the engine only consumes
// the result.
type HazardMap struct {
	ByEdge    map[int64][]HazardReport `json:"by_edge"`
	FetchedAt time.Time                `json:"fetched_at"`
}

// Reports returns the hazards on an edge, nil when the edge is clear.
func (m HazardMap) Reports(edgeID int64) []HazardReport {
	if m.ByEdge == nil {
		return nil
	}
	return m.ByEdge[edgeID]
}
