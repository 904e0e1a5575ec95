package model

import "time"

// SessionStatus is the lifecycle state of an evacuation session.
type SessionStatus string

const (
	SessionActive       SessionStatus = "active"
	SessionDisconnected SessionStatus = "disconnected"
	SessionCompleted    SessionStatus = "completed"
)

// EvacuationSession is the caller-visible snapshot of one evacuee's state.
// The session manager owns the authoritative record; route data is
// write-once and shared read-only.
type EvacuationSession struct {
	ID        string        `json:"id"`
	Origin    LatLng        `json:"origin"`
	Location  LatLng        `json:"location"`
	Route     *RouteResult  `json:"route,omitempty"`
	Status    SessionStatus `json:"status"`
	Degraded  bool          `json:"degraded"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
