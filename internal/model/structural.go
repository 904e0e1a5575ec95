package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// ConstructionType enumerates building construction classes along an edge.
type ConstructionType int

const (
	ConstructionUnknown ConstructionType = iota
	ConstructionWood
	ConstructionMasonry
	ConstructionConcrete
	ConstructionSteel
)

// constructionInfo holds per-class fragility used by the structural risk blend.
type constructionInfo struct {
	name      string
	fragility float64 // [0,1], higher collapses more readily under shaking
}

var constructionTypes = [...]constructionInfo{
	ConstructionUnknown:  {name: "unknown", fragility: 0.5},
	ConstructionWood:     {name: "wood", fragility: 0.45},
	ConstructionMasonry:  {name: "masonry", fragility: 0.85},
	ConstructionConcrete: {name: "concrete", fragility: 0.35},
	ConstructionSteel:    {name: "steel", fragility: 0.2},
}

func (c ConstructionType) valid() bool {
	return c >= ConstructionUnknown && int(c) < len(constructionTypes)
}

func (c ConstructionType) String() string {
	if !c.valid() {
		return "unknown"
	}
	return constructionTypes[c].name
}

// Fragility returns the class's seismic fragility score in [0,1].
func (c ConstructionType) Fragility() float64 {
	if !c.valid() {
		return constructionTypes[ConstructionUnknown].fragility
	}
	return constructionTypes[c].fragility
}

// ParseConstructionType maps a registry name to a ConstructionType.
func ParseConstructionType(s string) (ConstructionType, error) {
	for c, info := range constructionTypes {
		if info.name == s {
			return ConstructionType(c), nil
		}
	}
	return ConstructionUnknown, eris.Errorf("model: unknown construction type %q", s)
}

func (c ConstructionType) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ConstructionType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return eris.Wrap(err, "model: unmarshal construction type")
	}
	parsed, err := ParseConstructionType(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// StructuralDescriptor holds the static building-stock attributes of an edge,
// loaded from the structural-risk registry at startup.
type StructuralDescriptor struct {
	EdgeID       int64            `json:"edge_id"`
	YearBuilt    int              `json:"year_built"`
	Construction ConstructionType `json:"construction"`
	PriorDamage  bool             `json:"prior_damage"`
}
