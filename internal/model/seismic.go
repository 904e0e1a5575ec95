package model

import "time"

// SeismicEvent is a single earthquake event from the seismic feed.
type SeismicEvent struct {
	ID        string    `json:"id"`
	Location  LatLng    `json:"location"`
	Magnitude float64   `json:"magnitude"`
	DepthKm   float64   `json:"depth_km"`
	Time      time.Time `json:"time"`
}

// SeismicSnapshot is a read-only, point-in-time view of recent seismic
// activity. The engine never mutates it.
type SeismicSnapshot struct {
	Events    []SeismicEvent `json:"events"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// HasEventAtLeast reports whether any event of magnitude >= mag occurred at or
// after the cutoff.
func (s SeismicSnapshot) HasEventAtLeast(mag float64, cutoff time.Time) bool {
	for _, ev := range s.Events {
		if ev.Magnitude >= mag && !ev.Time.Before(cutoff) {
			return true
		}
	}
	return false
}
