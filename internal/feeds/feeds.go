// Package feeds defines the collaborator interfaces the engine consumes.
// Every method returns an immutable snapshot; the engine never re-fetches or
// caches feed data internally.
package feeds

import (
	"sync"
	"time"

	"github.com/urbansafe/evacroute/internal/model"
)

// SeismicFeed supplies earthquake event snapshots.
type SeismicFeed interface {
	CurrentSnapshot() model.SeismicSnapshot
	RecentEvents(window time.Duration) []model.SeismicEvent
}

// HazardFeed supplies the aggregated crowd-sourced hazard map.
type HazardFeed interface {
	CurrentHazardMap() model.HazardMap
}

// DensityFeed supplies observed pedestrian density by edge.
type DensityFeed interface {
	CurrentDensity() map[int64]float64
}

// Static is an in-memory implementation of all three feeds, used by tests and
// the one-shot CLI. Setters swap whole snapshots so readers never observe a
// half-updated view.
type Static struct {
	mu      sync.RWMutex
	seismic model.SeismicSnapshot
	hazards model.HazardMap
	density map[int64]float64
}

// NewStatic returns an empty static feed set.
func NewStatic() *Static {
	return &Static{
		hazards: model.HazardMap{ByEdge: map[int64][]model.HazardReport{}},
		density: map[int64]float64{},
	}
}

// SetSeismic replaces the seismic snapshot.
func (s *Static) SetSeismic(snap model.SeismicSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seismic = snap
}

// SetHazards replaces the hazard map.
func (s *Static) SetHazards(m model.HazardMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hazards = m
}

// SetDensity replaces the density field.
func (s *Static) SetDensity(d map[int64]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.density = d
}

func (s *Static) CurrentSnapshot() model.SeismicSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seismic
}

func (s *Static) RecentEvents(window time.Duration) []model.SeismicEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := time.Now().Add(-window)
	var out []model.SeismicEvent
	for _, ev := range s.seismic.Events {
		if !ev.Time.Before(cutoff) {
			out = append(out, ev)
		}
	}
	return out
}

func (s *Static) CurrentHazardMap() model.HazardMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hazards
}

func (s *Static) CurrentDensity() map[int64]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.density
}
