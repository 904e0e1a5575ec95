// Package session owns the per-evacuee records and the staleness protocol:
// when a route must be recomputed, and the guarantee that at most one
// recalculation is ever in flight per session.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/urbansafe/evacroute/internal/model"
)

// ErrSessionNotFound means the referenced session was evicted or never
// existed; the caller must create a new one.
var ErrSessionNotFound = eris.New("session: not found")

const (
	// DefaultRetention is how long a session survives without updates.
	DefaultRetention = 24 * time.Hour

	// RecalcMagnitudeThreshold is the magnitude at which a new seismic event
	// forces recalculation of every active session.
	RecalcMagnitudeThreshold = 5.0

	// recalcEventWindow bounds how old a qualifying event may be.
	recalcEventWindow = time.Hour
)

// record is the authoritative per-session state. All field access goes
// through the record mutex; the search itself runs outside the lock.
type record struct {
	mu sync.Mutex

	id        string
	origin    model.LatLng
	location  model.LatLng
	route     *model.RouteResult
	status    model.SessionStatus
	degraded  bool
	createdAt time.Time
	updatedAt time.Time

	// Staleness bookkeeping from the last successful computation.
	routeEdges   map[int64]bool
	knownHazards map[string]bool
	computedAt   time.Time

	// locSeq increments on every location update; a recalculation started
	// against an older sequence is discarded (last-location-wins).
	locSeq uint64

	// inFlight serializes recalculation: a trigger arriving while one is in
	// progress is coalesced, not queued.
	inFlight bool
}

// Manager owns all session records.
type Manager struct {
	mu        sync.RWMutex
	sessions  map[string]*record
	retention time.Duration
	log       *zap.Logger
}

// NewManager creates a Manager with the given retention window;
// zero means DefaultRetention.
func NewManager(retention time.Duration) *Manager {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Manager{
		sessions:  make(map[string]*record),
		retention: retention,
		log:       zap.L().With(zap.String("component", "session.manager")),
	}
}

// Create registers a new active session at origin and returns its id.
func (m *Manager) Create(origin model.LatLng) string {
	now := time.Now().UTC()
	rec := &record{
		id:        uuid.New().String(),
		origin:    origin,
		location:  origin,
		status:    model.SessionActive,
		createdAt: now,
		updatedAt: now,
	}

	m.mu.Lock()
	m.sessions[rec.id] = rec
	m.mu.Unlock()

	m.log.Info("session created", zap.String("session_id", rec.id))
	return rec.id
}

func (m *Manager) get(id string) (*record, error) {
	m.mu.RLock()
	rec, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return rec, nil
}

// Snapshot returns a caller-safe copy of the session.
func (m *Manager) Snapshot(id string) (*model.EvacuationSession, error) {
	rec, err := m.get(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.snapshotLocked(), nil
}

func (r *record) snapshotLocked() *model.EvacuationSession {
	snap := &model.EvacuationSession{
		ID:        r.id,
		Origin:    r.origin,
		Location:  r.location,
		Status:    r.status,
		Degraded:  r.degraded,
		CreatedAt: r.createdAt,
		UpdatedAt: r.updatedAt,
	}
	if r.route != nil {
		routeCopy := *r.route
		snap.Route = &routeCopy
	}
	return snap
}

// UpdateLocation records a new position and returns the session's new
// location sequence. Reconnect semantics: a location update on a
// disconnected session reactivates it.
func (m *Manager) UpdateLocation(id string, loc model.LatLng) (uint64, error) {
	rec, err := m.get(id)
	if err != nil {
		return 0, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.status == model.SessionCompleted {
		return 0, eris.Wrap(ErrSessionNotFound, "session: completed")
	}
	rec.location = loc
	rec.status = model.SessionActive
	rec.updatedAt = time.Now().UTC()
	rec.locSeq++
	return rec.locSeq, nil
}

// MarkDisconnected flags a lost client link. The record survives until the
// retention window expires.
func (m *Manager) MarkDisconnected(id string) error {
	rec, err := m.get(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.status == model.SessionActive {
		rec.status = model.SessionDisconnected
		rec.updatedAt = time.Now().UTC()
	}
	return nil
}

// Complete ends a session explicitly (the evacuee reached a safe zone).
func (m *Manager) Complete(id string) error {
	rec, err := m.get(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	rec.status = model.SessionCompleted
	rec.updatedAt = time.Now().UTC()
	rec.mu.Unlock()
	return nil
}

// ActiveIDs returns the ids of all sessions eligible for staleness sweeps.
func (m *Manager) ActiveIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id, rec := range m.sessions {
		rec.mu.Lock()
		active := rec.status == model.SessionActive
		rec.mu.Unlock()
		if active {
			ids = append(ids, id)
		}
	}
	return ids
}

// EvictExpired removes sessions whose last update predates the retention
// window, plus completed ones, and returns the evicted ids.
func (m *Manager) EvictExpired(now time.Time) []string {
	cutoff := now.Add(-m.retention)

	m.mu.Lock()
	defer m.mu.Unlock()
	var evicted []string
	for id, rec := range m.sessions {
		rec.mu.Lock()
		expired := rec.updatedAt.Before(cutoff) || rec.status == model.SessionCompleted
		rec.mu.Unlock()
		if expired {
			delete(m.sessions, id)
			evicted = append(evicted, id)
		}
	}
	if len(evicted) > 0 {
		m.log.Info("sessions evicted", zap.Int("count", len(evicted)))
	}
	return evicted
}

// NeedsRecalculation applies the staleness triggers to one session. It is
// idempotent and free of side effects: recalculation happens only through
// Begin/CompleteRecalc. A session is stale when it has no route yet, when a
// hazard unseen at last computation now sits on its route, or when a
// qualifying seismic event arrived after the route was computed.
func (m *Manager) NeedsRecalculation(id string, hazards model.HazardMap, seismic model.SeismicSnapshot, now time.Time) (bool, error) {
	rec, err := m.get(id)
	if err != nil {
		return false, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.status != model.SessionActive {
		return false, nil
	}
	if rec.route == nil {
		return true, nil
	}

	for edgeID := range rec.routeEdges {
		for _, report := range hazards.Reports(edgeID) {
			if !rec.knownHazards[report.ID] {
				return true, nil
			}
		}
	}

	cutoff := now.Add(-recalcEventWindow)
	for _, ev := range seismic.Events {
		if ev.Magnitude >= RecalcMagnitudeThreshold &&
			!ev.Time.Before(cutoff) &&
			ev.Time.After(rec.computedAt) {
			return true, nil
		}
	}

	return false, nil
}

// BeginRecalc claims the session's single recalculation slot. It returns the
// location and sequence the computation must run against, and false when
// another recalculation is already in flight (the trigger is coalesced).
func (m *Manager) BeginRecalc(id string) (model.LatLng, uint64, bool, error) {
	rec, err := m.get(id)
	if err != nil {
		return model.LatLng{}, 0, false, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.inFlight {
		return model.LatLng{}, 0, false, nil
	}
	rec.inFlight = true
	return rec.location, rec.locSeq, true, nil
}

// CompleteRecalc releases the recalculation slot and applies the outcome.
// A result computed against a stale location sequence is discarded; the
// session keeps whatever a newer update produces. On failure the previous
// route is retained and the session is flagged degraded.
func (m *Manager) CompleteRecalc(id string, seq uint64, result *model.RouteResult, routeEdges []int64, seenHazards []string, recalcErr error) error {
	rec, err := m.get(id)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.inFlight = false

	if recalcErr != nil {
		rec.degraded = true
		rec.updatedAt = time.Now().UTC()
		m.log.Warn("recalculation failed, previous route retained",
			zap.String("session_id", id),
			zap.Error(recalcErr),
		)
		return nil
	}

	if seq != rec.locSeq {
		m.log.Debug("stale recalculation discarded",
			zap.String("session_id", id),
			zap.Uint64("computed_seq", seq),
			zap.Uint64("current_seq", rec.locSeq),
		)
		return nil
	}

	rec.route = result
	rec.degraded = false
	rec.computedAt = result.ComputedAt
	rec.updatedAt = time.Now().UTC()

	rec.routeEdges = make(map[int64]bool, len(routeEdges))
	for _, e := range routeEdges {
		rec.routeEdges[e] = true
	}
	rec.knownHazards = make(map[string]bool, len(seenHazards))
	for _, h := range seenHazards {
		rec.knownHazards[h] = true
	}
	return nil
}

// Route returns the session's current route, nil when none was computed yet.
func (m *Manager) Route(id string) (*model.RouteResult, error) {
	rec, err := m.get(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.route, nil
}

// Count returns the number of live session records.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// DegradedCount returns how many sessions currently hold a degraded route.
func (m *Manager) DegradedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, rec := range m.sessions {
		rec.mu.Lock()
		if rec.degraded {
			n++
		}
		rec.mu.Unlock()
	}
	return n
}
