package feeds

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/urbansafe/evacroute/internal/model"
)

// fixtureFile is the on-disk shape for one-shot condition snapshots.
type fixtureFile struct {
	Seismic model.SeismicSnapshot          `json:"seismic"`
	Hazards map[int64][]model.HazardReport `json:"hazards"`
	Density map[int64]float64              `json:"density"`
}

// LoadFixture reads a condition-snapshot file into a static feed set. Used by
// the one-shot CLI and scenario tests.
func LoadFixture(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "feeds: read fixture")
	}

	var f fixtureFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "feeds: parse fixture")
	}

	s := NewStatic()
	s.SetSeismic(f.Seismic)
	if f.Hazards != nil {
		s.SetHazards(model.HazardMap{ByEdge: f.Hazards, FetchedAt: f.Seismic.FetchedAt})
	}
	if f.Density != nil {
		s.SetDensity(f.Density)
	}
	return s, nil
}
