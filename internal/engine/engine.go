// Package engine is the Dynamic Risk-Weighted Route Engine façade: it turns a
// location plus the current condition snapshots into a continuously-valid
// route to the nearest safe zone, and keeps per-evacuee sessions fresh as
// conditions change.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/urbansafe/evacroute/internal/feeds"
	"github.com/urbansafe/evacroute/internal/graph"
	"github.com/urbansafe/evacroute/internal/model"
	"github.com/urbansafe/evacroute/internal/monitoring"
	"github.com/urbansafe/evacroute/internal/resilience"
	"github.com/urbansafe/evacroute/internal/risk"
	"github.com/urbansafe/evacroute/internal/search"
	"github.com/urbansafe/evacroute/internal/session"
)

// SweepTrigger identifies why a system-wide evaluation runs.
type SweepTrigger string

const (
	TriggerNewSeismicEvent SweepTrigger = "new_seismic_event"
	TriggerPeriodicSweep   SweepTrigger = "periodic_sweep"
)

// Options tunes the engine. Zero values pick the defaults below.
type Options struct {
	SearchTimeout    time.Duration // per-search budget
	MaxAlternatives  int           // diversified routes per calculation
	SweepConcurrency int           // parallel recalculations per sweep
	RecalcPerSecond  float64       // system-wide recalculation rate cap
	RecalcBurst      int
	SessionRetention time.Duration
}

func (o *Options) applyDefaults() {
	if o.SearchTimeout <= 0 {
		o.SearchTimeout = 2 * time.Second
	}
	if o.MaxAlternatives <= 0 {
		o.MaxAlternatives = search.DefaultAlternatives
	}
	if o.SweepConcurrency <= 0 {
		o.SweepConcurrency = 8
	}
	if o.RecalcPerSecond <= 0 {
		o.RecalcPerSecond = 200
	}
	if o.RecalcBurst <= 0 {
		o.RecalcBurst = 50
	}
}

// Engine orchestrates the graph store, risk model, path search, and session
// manager. The base topology is shared read-only; everything mutable is
// call-scoped or owned by the session manager.
type Engine struct {
	snap     *graph.Snapshot
	seismic  feeds.SeismicFeed
	hazards  feeds.HazardFeed
	density  feeds.DensityFeed
	sessions *session.Manager
	counters *monitoring.Counters

	opts    Options
	limiter *rate.Limiter
	log     *zap.Logger
}

// New wires an engine from its collaborators. The graph must already hold the
// network and safe zones; New freezes it.
func New(g *graph.Graph, seismic feeds.SeismicFeed, hazards feeds.HazardFeed, density feeds.DensityFeed, opts Options) (*Engine, error) {
	if err := g.Freeze(); err != nil {
		return nil, err
	}
	snap, err := g.Snapshot()
	if err != nil {
		return nil, err
	}
	opts.applyDefaults()

	return &Engine{
		snap:     snap,
		seismic:  seismic,
		hazards:  hazards,
		density:  density,
		sessions: session.NewManager(opts.SessionRetention),
		counters: &monitoring.Counters{},
		opts:     opts,
		limiter:  rate.NewLimiter(rate.Limit(opts.RecalcPerSecond), opts.RecalcBurst),
		log:      zap.L().With(zap.String("component", "engine")),
	}, nil
}

// Counters exposes the engine's activity counters for monitoring.
func (e *Engine) Counters() *monitoring.Counters { return e.counters }

// Sessions exposes the session manager for monitoring and lifecycle sweeps.
func (e *Engine) Sessions() *session.Manager { return e.sessions }

// conditions captures the immutable feed snapshots for one calculation.
type conditions struct {
	seismic model.SeismicSnapshot
	hazards model.HazardMap
	density map[int64]float64
}

func (e *Engine) currentConditions() conditions {
	return conditions{
		seismic: e.seismic.CurrentSnapshot(),
		hazards: e.hazards.CurrentHazardMap(),
		density: e.density.CurrentDensity(),
	}
}

// costFunc builds the per-calculation edge cost function over the captured
// snapshots. Pure: same edge, same snapshots, same cost.
func (e *Engine) costFunc(cond conditions) graph.CostFunc {
	snap := e.snap
	in := risk.Inputs{Seismic: cond.seismic, Hazards: cond.hazards, Density: cond.density}
	return func(ed *graph.Edge) float64 {
		from := snap.Node(ed.From).Location
		to := snap.Node(ed.To).Location
		mid := model.LatLng{Lat: (from.Lat + to.Lat) / 2, Lng: (from.Lng + to.Lng) / 2}
		return risk.EdgeCost(ed, mid, in)
	}
}

// CalculateRoute computes a route from origin to the nearest safe zone under
// current conditions. Stateless: no session bookkeeping.
func (e *Engine) CalculateRoute(ctx context.Context, origin model.LatLng) (*model.RouteResult, error) {
	result, _, _, err := e.calculate(ctx, origin, e.currentConditions())
	return result, err
}

// calculate is the shared computation core. It returns, alongside the result,
// the primary route's edge set and the hazard ids observed on it, which the
// session manager records for staleness checks.
func (e *Engine) calculate(ctx context.Context, origin model.LatLng, cond conditions) (*model.RouteResult, []int64, []string, error) {
	if !origin.Valid() {
		return nil, nil, nil, eris.Wrap(ErrInvalidInput, "engine: origin out of range")
	}

	zones := e.snap.SafeZones()
	if len(zones) == 0 {
		return nil, nil, nil, ErrNoSafeZoneAvailable
	}

	originNode := e.snap.NearestNode(origin)
	if originNode == nil {
		return nil, nil, nil, eris.Wrap(ErrInvalidInput, "engine: empty graph")
	}

	goalNodes := make([]int64, 0, len(zones))
	zoneByNode := make(map[int64]string, len(zones))
	for _, z := range zones {
		goalNodes = append(goalNodes, z.NodeID)
		// Ordered iteration: the lowest zone id wins a shared anchor node.
		if _, taken := zoneByNode[z.NodeID]; !taken {
			zoneByNode[z.NodeID] = z.ID
		}
	}

	view := graph.NewWeightedView(e.snap, e.costFunc(cond), nil)

	searchCtx, cancel := context.WithTimeout(ctx, e.opts.SearchTimeout)
	defer cancel()

	primary, alts, err := search.FindRouteWithAlternatives(searchCtx, view, originNode.ID, goalNodes, e.opts.MaxAlternatives)
	if err != nil {
		if eris.Is(err, search.ErrNoPathFound) {
			e.counters.NoPathFailures.Add(1)
		}
		if eris.Is(err, search.ErrDeadlineExceeded) {
			e.counters.DeadlineFailures.Add(1)
		}
		return nil, nil, nil, err
	}

	result := &model.RouteResult{
		Primary:    search.Summarize(primary, view, zoneByNode[primary.GoalNode]),
		ComputedAt: time.Now().UTC(),
	}
	for _, alt := range alts {
		result.Alternatives = append(result.Alternatives, search.Summarize(alt, view, zoneByNode[alt.GoalNode]))
	}

	var seenHazards []string
	for _, edgeID := range primary.EdgeIDs {
		for _, report := range cond.hazards.Reports(edgeID) {
			seenHazards = append(seenHazards, report.ID)
		}
	}

	e.counters.RoutesComputed.Add(1)
	return result, primary.EdgeIDs, seenHazards, nil
}

// CreateSession registers a session at origin and computes its first route.
func (e *Engine) CreateSession(ctx context.Context, origin model.LatLng) (string, *model.RouteResult, error) {
	if !origin.Valid() {
		return "", nil, eris.Wrap(ErrInvalidInput, "engine: origin out of range")
	}

	id := e.sessions.Create(origin)
	e.counters.SessionsCreated.Add(1)

	result, _, err := e.Recalculate(ctx, id)
	if err != nil {
		// The session stays alive without a route; the next trigger retries.
		return id, nil, err
	}
	return id, result, nil
}

// UpdateSessionLocation records a position update, folds any caller-supplied
// hazard reports into the staleness evaluation, and recomputes the route when
// a trigger fires. The second return is false when the route is unchanged.
func (e *Engine) UpdateSessionLocation(ctx context.Context, id string, loc model.LatLng, newReports []model.HazardReport) (*model.RouteResult, bool, error) {
	if !loc.Valid() {
		return nil, false, eris.Wrap(ErrInvalidInput, "engine: location out of range")
	}
	if id == "" {
		return nil, false, eris.Wrap(ErrInvalidInput, "engine: empty session id")
	}

	if _, err := e.sessions.UpdateLocation(id, loc); err != nil {
		return nil, false, err
	}

	cond := e.currentConditions()
	if len(newReports) > 0 {
		cond.hazards = e.mergeReports(cond.hazards, newReports)
	}

	stale, err := e.sessions.NeedsRecalculation(id, cond.hazards, cond.seismic, time.Now().UTC())
	if err != nil {
		return nil, false, err
	}
	if !stale {
		route, err := e.sessions.Route(id)
		if err != nil {
			return nil, false, err
		}
		return route, false, nil
	}

	result, applied, err := e.recalculateWith(ctx, id, cond)
	if err != nil {
		return nil, false, err
	}
	return result, applied, nil
}

// mergeReports overlays caller-supplied reports onto a copy of the hazard
// map, binding each report to the nearest edge of its closest node. The feed
// snapshot itself is never mutated.
func (e *Engine) mergeReports(m model.HazardMap, reports []model.HazardReport) model.HazardMap {
	merged := model.HazardMap{
		ByEdge:    make(map[int64][]model.HazardReport, len(m.ByEdge)+len(reports)),
		FetchedAt: m.FetchedAt,
	}
	for edgeID, rs := range m.ByEdge {
		merged.ByEdge[edgeID] = rs
	}
	for _, r := range reports {
		if !r.Location.Valid() {
			continue
		}
		edgeID, ok := e.nearestEdge(r.Location)
		if !ok {
			continue
		}
		merged.ByEdge[edgeID] = append(merged.ByEdge[edgeID], r)
	}
	return merged
}

// nearestEdge picks the adjacent edge of the closest node whose midpoint is
// nearest to loc.
func (e *Engine) nearestEdge(loc model.LatLng) (int64, bool) {
	node := e.snap.NearestNode(loc)
	if node == nil || len(node.Edges) == 0 {
		return 0, false
	}
	best := node.Edges[0]
	bestDist := e.edgeMidpointDistance(best, loc)
	for _, edgeID := range node.Edges[1:] {
		if d := e.edgeMidpointDistance(edgeID, loc); d < bestDist {
			best = edgeID
			bestDist = d
		}
	}
	return best, true
}

func (e *Engine) edgeMidpointDistance(edgeID int64, loc model.LatLng) float64 {
	ed := e.snap.Edge(edgeID)
	from := e.snap.Node(ed.From).Location
	to := e.snap.Node(ed.To).Location
	mid := model.LatLng{Lat: (from.Lat + to.Lat) / 2, Lng: (from.Lng + to.Lng) / 2}
	return model.HaversineMeters(mid, loc)
}

// Recalculate replaces a session's route under the at-most-one-in-flight
// guarantee. A trigger arriving while another recalculation runs is coalesced
// and returns the session's current route.
func (e *Engine) Recalculate(ctx context.Context, id string) (*model.RouteResult, bool, error) {
	return e.recalculateWith(ctx, id, e.currentConditions())
}

func (e *Engine) recalculateWith(ctx context.Context, id string, cond conditions) (*model.RouteResult, bool, error) {
	loc, seq, claimed, err := e.sessions.BeginRecalc(id)
	if err != nil {
		return nil, false, err
	}
	if !claimed {
		e.counters.RecalcsCoalesced.Add(1)
		route, err := e.sessions.Route(id)
		return route, false, err
	}
	e.counters.RecalcsStarted.Add(1)

	var result *model.RouteResult
	var routeEdges []int64
	var seenHazards []string

	// A blown search deadline gets one backed-off retry before the session
	// falls back to its previous route.
	calcErr := resilience.Do(ctx, resilience.RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: 100 * time.Millisecond,
		ShouldRetry: func(err error) bool {
			return eris.Is(err, ErrDeadlineExceeded)
		},
	}, func(ctx context.Context) error {
		var err error
		result, routeEdges, seenHazards, err = e.calculate(ctx, loc, cond)
		return err
	})

	if err := e.sessions.CompleteRecalc(id, seq, result, routeEdges, seenHazards, calcErr); err != nil {
		return nil, false, err
	}
	if calcErr != nil {
		route, routeErr := e.sessions.Route(id)
		if routeErr != nil {
			return nil, false, routeErr
		}
		// Surface the failure; the caller keeps navigating the retained route.
		return route, false, calcErr
	}

	e.counters.RecalcsApplied.Add(1)
	return result, true, nil
}

// EvaluateAllSessions applies the staleness triggers to every active session
// and recalculates the stale ones with bounded concurrency. It returns the
// ids whose routes were recomputed (or attempted).
func (e *Engine) EvaluateAllSessions(ctx context.Context, trigger SweepTrigger) ([]string, error) {
	cond := e.currentConditions()
	now := time.Now().UTC()
	ids := e.sessions.ActiveIDs()

	e.log.Info("session sweep",
		zap.String("trigger", string(trigger)),
		zap.Int("sessions", len(ids)),
	)

	var mu sync.Mutex
	var affected []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.SweepConcurrency)

	for _, id := range ids {
		g.Go(func() error {
			stale, err := e.sessions.NeedsRecalculation(id, cond.hazards, cond.seismic, now)
			if err != nil || !stale {
				return nil // evicted mid-sweep or fresh; either way skip
			}
			if err := e.limiter.Wait(gctx); err != nil {
				return err
			}
			if _, _, err := e.recalculateWith(gctx, id, cond); err != nil {
				// Degradation is already recorded on the session; the sweep
				// moves on.
				e.log.Warn("sweep recalculation failed",
					zap.String("session_id", id),
					zap.Error(err),
				)
			}
			mu.Lock()
			affected = append(affected, id)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return affected, eris.Wrap(err, "engine: session sweep")
	}
	return affected, nil
}

// GetSessionSnapshot returns a read-only copy of a session.
func (e *Engine) GetSessionSnapshot(id string) (*model.EvacuationSession, error) {
	if id == "" {
		return nil, eris.Wrap(ErrInvalidInput, "engine: empty session id")
	}
	return e.sessions.Snapshot(id)
}

// CompleteSession ends a session explicitly.
func (e *Engine) CompleteSession(id string) error {
	return e.sessions.Complete(id)
}

// DisconnectSession flags a lost client link.
func (e *Engine) DisconnectSession(id string) error {
	return e.sessions.MarkDisconnected(id)
}

// EvictExpiredSessions removes sessions past the retention window.
func (e *Engine) EvictExpiredSessions() []string {
	evicted := e.sessions.EvictExpired(time.Now().UTC())
	e.counters.SessionsEvicted.Add(int64(len(evicted)))
	return evicted
}
