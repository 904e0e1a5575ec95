package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"

	"github.com/urbansafe/evacroute/internal/feeds"
	"github.com/urbansafe/evacroute/internal/graph"
	"github.com/urbansafe/evacroute/internal/model"
)

// detourGraph builds a diamond street network with a safe zone at node 3:
//
//	      4
//	     / \
//	1 - 2 - 3 [zone]
//
// The direct corridor 1-2-3 (edges 10, 11) is shorter than the detour
// 1-4-3 (edges 12, 13).
func detourGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	nodes := map[int64]model.LatLng{
		1: {Lat: 35.000, Lng: 139.000},
		2: {Lat: 35.000, Lng: 139.001},
		3: {Lat: 35.000, Lng: 139.002},
		4: {Lat: 35.001, Lng: 139.001},
	}
	for id, loc := range nodes {
		if err := g.AddNode(id, loc); err != nil {
			t.Fatal(err)
		}
	}
	edges := []struct{ id, from, to int64 }{
		{10, 1, 2}, {11, 2, 3},
		{12, 1, 4}, {13, 4, 3},
	}
	for _, e := range edges {
		if err := g.AddEdge(e.id, e.from, e.to, 0); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.AddSafeZone(graph.SafeZone{ID: "z-park", Location: nodes[3], Capacity: 800}); err != nil {
		t.Fatal(err)
	}
	return g
}

func newTestEngine(t *testing.T, g *graph.Graph) (*Engine, *feeds.Static) {
	t.Helper()
	f := feeds.NewStatic()
	e, err := New(g, f, f, f, Options{})
	if err != nil {
		t.Fatal(err)
	}
	return e, f
}

var nearNode1 = model.LatLng{Lat: 35.0001, Lng: 139.0001}

func TestCalculateRoute_QuietConditions(t *testing.T) {
	e, _ := newTestEngine(t, detourGraph(t))

	result, err := e.CalculateRoute(context.Background(), nearNode1)
	if err != nil {
		t.Fatalf("CalculateRoute: %v", err)
	}

	want := []int64{1, 2, 3}
	if !sameInt64s(result.Primary.NodeIDs, want) {
		t.Errorf("quiet route: got %v, want %v", result.Primary.NodeIDs, want)
	}
	if result.Primary.SafeZoneID != "z-park" {
		t.Errorf("safe zone: got %q", result.Primary.SafeZoneID)
	}
	if result.Primary.RiskLevel != model.RiskLow {
		t.Errorf("quiet conditions must score low risk, got %v (mean %v)",
			result.Primary.RiskLevel, result.Primary.MeanEdgeCost)
	}
	if result.Primary.ETAMinutes <= 0 {
		t.Errorf("eta: %d", result.Primary.ETAMinutes)
	}
	if result.ComputedAt.IsZero() {
		t.Error("computed_at not stamped")
	}
}

func TestCalculateRoute_Deterministic(t *testing.T) {
	e, _ := newTestEngine(t, detourGraph(t))

	var first *model.RouteResult
	for i := 0; i < 10; i++ {
		r, err := e.CalculateRoute(context.Background(), nearNode1)
		if err != nil {
			t.Fatal(err)
		}
		if first == nil {
			first = r
			continue
		}
		if !r.Primary.SameNodeSequence(first.Primary) {
			t.Fatalf("run %d: %v vs %v", i, r.Primary.NodeIDs, first.Primary.NodeIDs)
		}
		if len(r.Alternatives) != len(first.Alternatives) {
			t.Fatalf("run %d: alternative count changed", i)
		}
	}
}

func TestCalculateRoute_AvoidsHazardEdge(t *testing.T) {
	e, f := newTestEngine(t, detourGraph(t))

	// confirmed building collapse on the direct corridor's second segment
	f.SetHazards(model.HazardMap{ByEdge: map[int64][]model.HazardReport{
		11: {{ID: "h1", Kind: model.HazardCollapse, Confidence: 1.0, ReportedAt: time.Now()}},
	}})

	result, err := e.CalculateRoute(context.Background(), nearNode1)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{1, 4, 3}
	if !sameInt64s(result.Primary.NodeIDs, want) {
		t.Errorf("route must detour around the collapse: got %v, want %v", result.Primary.NodeIDs, want)
	}
}

// corridorGraph builds a single corridor 1-2-3-4 with the only safe zone at
// node 4. There is no way around a blocked middle segment.
func corridorGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	nodes := map[int64]model.LatLng{
		1: {Lat: 35.000, Lng: 139.000},
		2: {Lat: 35.000, Lng: 139.001},
		3: {Lat: 35.000, Lng: 139.002},
		4: {Lat: 35.000, Lng: 139.003},
	}
	for id, loc := range nodes {
		if err := g.AddNode(id, loc); err != nil {
			t.Fatal(err)
		}
	}
	edges := []struct{ id, from, to int64 }{
		{10, 1, 2}, {11, 2, 3}, {12, 3, 4},
	}
	for _, e := range edges {
		if err := g.AddEdge(e.id, e.from, e.to, 0); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.AddSafeZone(graph.SafeZone{ID: "z-school", Location: nodes[4], Capacity: 400}); err != nil {
		t.Fatal(err)
	}
	return g
}

func TestCalculateRoute_ForcedThroughCollapseScoresHigh(t *testing.T) {
	e, f := newTestEngine(t, corridorGraph(t))

	// confirmed collapse on the middle segment, no detour exists
	f.SetHazards(model.HazardMap{ByEdge: map[int64][]model.HazardReport{
		11: {{ID: "h1", Kind: model.HazardCollapse, Confidence: 1.0, ReportedAt: time.Now()}},
	}})

	result, err := e.CalculateRoute(context.Background(), nearNode1)
	if err != nil {
		t.Fatalf("blocked corridor must still yield a best-effort route: %v", err)
	}
	want := []int64{1, 2, 3, 4}
	if !sameInt64s(result.Primary.NodeIDs, want) {
		t.Fatalf("route: got %v, want %v", result.Primary.NodeIDs, want)
	}
	if result.Primary.WorstEdgeCost < 0.8 {
		t.Errorf("collapsed segment must carry critical edge cost, got %v", result.Primary.WorstEdgeCost)
	}
	// the quiet approach edges must not average the collapse away
	if lvl := result.Primary.RiskLevel; lvl == model.RiskLow || lvl == model.RiskModerate {
		t.Errorf("route through a collapse scored %v (mean %v, worst %v)",
			lvl, result.Primary.MeanEdgeCost, result.Primary.WorstEdgeCost)
	}
}

func TestCalculateRoute_AllCriticalStillRoutes(t *testing.T) {
	e, f := newTestEngine(t, detourGraph(t))

	// shallow M8 directly under the network pushes every edge past the
	// escalation threshold
	f.SetSeismic(model.SeismicSnapshot{Events: []model.SeismicEvent{
		{ID: "big", Location: model.LatLng{Lat: 35.0005, Lng: 139.001}, Magnitude: 8.0, DepthKm: 2, Time: time.Now()},
	}})

	result, err := e.CalculateRoute(context.Background(), nearNode1)
	if err != nil {
		t.Fatalf("an all-critical network must still yield a best-effort route: %v", err)
	}
	if result.Primary.RiskLevel != model.RiskCritical {
		t.Errorf("risk level: got %v, want critical (mean %v)",
			result.Primary.RiskLevel, result.Primary.MeanEdgeCost)
	}
}

func TestCalculateRoute_AlternativesNeverDuplicate(t *testing.T) {
	e, _ := newTestEngine(t, detourGraph(t))

	result, err := e.CalculateRoute(context.Background(), nearNode1)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Alternatives) == 0 {
		t.Fatal("diamond network has a parallel corridor, expected an alternative")
	}
	routes := append([]model.Route{result.Primary}, result.Alternatives...)
	for i := range routes {
		for j := i + 1; j < len(routes); j++ {
			if routes[i].SameNodeSequence(routes[j]) {
				t.Errorf("routes %d and %d duplicate: %v", i, j, routes[i].NodeIDs)
			}
		}
	}
}

func TestCalculateRoute_NoSafeZones(t *testing.T) {
	g := graph.New()
	if err := g.AddNode(1, model.LatLng{Lat: 35, Lng: 139}); err != nil {
		t.Fatal(err)
	}
	f := feeds.NewStatic()
	e, err := New(g, f, f, f, Options{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.CalculateRoute(context.Background(), model.LatLng{Lat: 35, Lng: 139}); !eris.Is(err, ErrNoSafeZoneAvailable) {
		t.Errorf("got %v, want ErrNoSafeZoneAvailable", err)
	}
}

func TestCalculateRoute_InvalidOrigin(t *testing.T) {
	e, _ := newTestEngine(t, detourGraph(t))
	if _, err := e.CalculateRoute(context.Background(), model.LatLng{Lat: 95, Lng: 139}); !eris.Is(err, ErrInvalidInput) {
		t.Errorf("got %v, want ErrInvalidInput", err)
	}
}

func TestCalculateRoute_ConcurrentCallsDoNotInterfere(t *testing.T) {
	e, _ := newTestEngine(t, detourGraph(t))

	baseline, err := e.CalculateRoute(context.Background(), nearNode1)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	results := make([]*model.RouteResult, 16)
	errs := make([]error, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.CalculateRoute(context.Background(), nearNode1)
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		if errs[i] != nil {
			t.Fatalf("call %d: %v", i, errs[i])
		}
		if !r.Primary.SameNodeSequence(baseline.Primary) {
			t.Errorf("call %d diverged: %v", i, r.Primary.NodeIDs)
		}
	}
}

func TestSessionLifecycle(t *testing.T) {
	e, _ := newTestEngine(t, detourGraph(t))
	ctx := context.Background()

	id, result, err := e.CreateSession(ctx, nearNode1)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if id == "" || result == nil {
		t.Fatal("expected session id and initial route")
	}

	snap, err := e.GetSessionSnapshot(id)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Status != model.SessionActive || snap.Degraded || snap.Route == nil {
		t.Errorf("fresh session: %+v", snap)
	}

	if err := e.CompleteSession(id); err != nil {
		t.Fatal(err)
	}
	snap, _ = e.GetSessionSnapshot(id)
	if snap.Status != model.SessionCompleted {
		t.Errorf("status after complete: %v", snap.Status)
	}

	evicted := e.EvictExpiredSessions()
	if len(evicted) != 1 || evicted[0] != id {
		t.Errorf("eviction: %v", evicted)
	}
	if _, err := e.GetSessionSnapshot(id); !eris.Is(err, ErrSessionNotFound) {
		t.Errorf("after eviction: %v", err)
	}
}

func TestUpdateSessionLocation_NoSpuriousRecalculation(t *testing.T) {
	e, _ := newTestEngine(t, detourGraph(t))
	ctx := context.Background()

	id, initial, err := e.CreateSession(ctx, nearNode1)
	if err != nil {
		t.Fatal(err)
	}
	started := e.Counters().RecalcsStarted.Load()

	// conditions unchanged: a plain movement update must not recompute
	route, changed, err := e.UpdateSessionLocation(ctx, id, model.LatLng{Lat: 35.0002, Lng: 139.0002}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("unchanged conditions must not trigger recalculation")
	}
	if !route.Primary.SameNodeSequence(initial.Primary) {
		t.Error("route must be the retained one")
	}
	if got := e.Counters().RecalcsStarted.Load(); got != started {
		t.Errorf("recalcs started went %d -> %d on a quiet update", started, got)
	}
}

func TestUpdateSessionLocation_HazardReportTriggersReroute(t *testing.T) {
	e, _ := newTestEngine(t, detourGraph(t))
	ctx := context.Background()

	id, initial, err := e.CreateSession(ctx, nearNode1)
	if err != nil {
		t.Fatal(err)
	}
	if !sameInt64s(initial.Primary.NodeIDs, []int64{1, 2, 3}) {
		t.Fatalf("setup: initial route %v", initial.Primary.NodeIDs)
	}

	// the evacuee reports a collapse at the midpoint of edge 11
	report := model.HazardReport{
		ID:         "report-1",
		Kind:       model.HazardCollapse,
		Location:   model.LatLng{Lat: 35.000, Lng: 139.0015},
		Confidence: 1.0,
		ReportedAt: time.Now(),
	}
	route, changed, err := e.UpdateSessionLocation(ctx, id, nearNode1, []model.HazardReport{report})
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("new hazard on the route must trigger recalculation")
	}
	if !sameInt64s(route.Primary.NodeIDs, []int64{1, 4, 3}) {
		t.Errorf("rerouted path: got %v, want detour via 4", route.Primary.NodeIDs)
	}
}

func TestUpdateSessionLocation_SeismicEventTriggersReroute(t *testing.T) {
	e, f := newTestEngine(t, detourGraph(t))
	ctx := context.Background()

	id, _, err := e.CreateSession(ctx, nearNode1)
	if err != nil {
		t.Fatal(err)
	}

	f.SetSeismic(model.SeismicSnapshot{Events: []model.SeismicEvent{
		{ID: "aft", Location: model.LatLng{Lat: 35.1, Lng: 139.1}, Magnitude: 5.5, DepthKm: 10, Time: time.Now()},
	}})

	_, changed, err := e.UpdateSessionLocation(ctx, id, nearNode1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Error("a fresh M5.5 must trigger recalculation")
	}
}

func TestCreateSession_SurvivesFailedFirstRoute(t *testing.T) {
	g := graph.New()
	if err := g.AddNode(1, model.LatLng{Lat: 35, Lng: 139}); err != nil {
		t.Fatal(err)
	}
	f := feeds.NewStatic()
	e, err := New(g, f, f, f, Options{})
	if err != nil {
		t.Fatal(err)
	}

	id, result, err := e.CreateSession(context.Background(), model.LatLng{Lat: 35, Lng: 139})
	if !eris.Is(err, ErrNoSafeZoneAvailable) {
		t.Fatalf("got %v, want ErrNoSafeZoneAvailable", err)
	}
	if id == "" || result != nil {
		t.Error("session id must be returned without a route")
	}

	snap, snapErr := e.GetSessionSnapshot(id)
	if snapErr != nil {
		t.Fatal(snapErr)
	}
	if !snap.Degraded {
		t.Error("failed first computation must flag the session degraded")
	}
}

func TestEvaluateAllSessions_RecalculatesOnlyStale(t *testing.T) {
	e, f := newTestEngine(t, detourGraph(t))
	ctx := context.Background()

	fresh, _, err := e.CreateSession(ctx, nearNode1)
	if err != nil {
		t.Fatal(err)
	}

	// no condition change yet: nothing is stale
	affected, err := e.EvaluateAllSessions(ctx, TriggerPeriodicSweep)
	if err != nil {
		t.Fatal(err)
	}
	if len(affected) != 0 {
		t.Errorf("quiet sweep touched %v", affected)
	}

	f.SetSeismic(model.SeismicSnapshot{Events: []model.SeismicEvent{
		{ID: "m6", Location: model.LatLng{Lat: 35.05, Lng: 139.05}, Magnitude: 6.0, DepthKm: 10, Time: time.Now()},
	}})

	affected, err = e.EvaluateAllSessions(ctx, TriggerNewSeismicEvent)
	if err != nil {
		t.Fatal(err)
	}
	if len(affected) != 1 || affected[0] != fresh {
		t.Errorf("seismic sweep: got %v, want [%s]", affected, fresh)
	}

	snap, _ := e.GetSessionSnapshot(fresh)
	if snap.Route == nil || snap.Degraded {
		t.Errorf("post-sweep session: %+v", snap)
	}
}

func TestEngine_CountersTrackActivity(t *testing.T) {
	e, _ := newTestEngine(t, detourGraph(t))
	ctx := context.Background()

	if _, err := e.CalculateRoute(ctx, nearNode1); err != nil {
		t.Fatal(err)
	}
	if got := e.Counters().RoutesComputed.Load(); got != 1 {
		t.Errorf("routes computed: %d", got)
	}

	if _, _, err := e.CreateSession(ctx, nearNode1); err != nil {
		t.Fatal(err)
	}
	if got := e.Counters().SessionsCreated.Load(); got != 1 {
		t.Errorf("sessions created: %d", got)
	}
	if got := e.Counters().RecalcsStarted.Load(); got != 1 {
		t.Errorf("recalcs started: %d", got)
	}
	if got := e.Counters().RecalcsApplied.Load(); got != 1 {
		t.Errorf("recalcs applied: %d", got)
	}
}

func sameInt64s(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
