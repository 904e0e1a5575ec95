package search

import (
	"context"
	"testing"

	"github.com/urbansafe/evacroute/internal/graph"
	"github.com/urbansafe/evacroute/internal/model"
)

// testGrid builds a frozen 2x3 grid:
//
//	1 --10-- 2 --11-- 3
//	|        |        |
//	15       16       17
//	|        |        |
//	4 --12-- 5 --13-- 6
//
// Node spacing is ~111m. Returns the snapshot.
func testGrid(t *testing.T) *graph.Snapshot {
	t.Helper()
	g := graph.New()
	coords := map[int64]model.LatLng{
		1: {Lat: 35.001, Lng: 139.000},
		2: {Lat: 35.001, Lng: 139.001},
		3: {Lat: 35.001, Lng: 139.002},
		4: {Lat: 35.000, Lng: 139.000},
		5: {Lat: 35.000, Lng: 139.001},
		6: {Lat: 35.000, Lng: 139.002},
	}
	for id := int64(1); id <= 6; id++ {
		if err := g.AddNode(id, coords[id]); err != nil {
			t.Fatal(err)
		}
	}
	edges := []struct{ id, from, to int64 }{
		{10, 1, 2}, {11, 2, 3},
		{12, 4, 5}, {13, 5, 6},
		{15, 1, 4}, {16, 2, 5}, {17, 3, 6},
	}
	for _, e := range edges {
		if err := g.AddEdge(e.id, e.from, e.to, 0); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.Freeze(); err != nil {
		t.Fatal(err)
	}
	snap, err := g.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

// flatCost weighs every edge the same so the cheapest route is the fewest
// hops.
func flatCost(e *graph.Edge) float64 { return 1 }

func TestFindRoute_ShortestUnderUniformCost(t *testing.T) {
	snap := testGrid(t)
	view := graph.NewWeightedView(snap, flatCost, nil)

	r, err := FindRoute(context.Background(), view, 1, []int64{6})
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if len(r.EdgeIDs) != 3 {
		t.Errorf("hops: got %d, want 3 (%v)", len(r.EdgeIDs), r.NodeIDs)
	}
	if r.NodeIDs[0] != 1 || r.GoalNode != 6 {
		t.Errorf("endpoints: %v goal=%d", r.NodeIDs, r.GoalNode)
	}
	if r.Cost != 3 {
		t.Errorf("cost: got %v, want 3", r.Cost)
	}
	if r.DistanceMeters <= 0 {
		t.Error("distance must be positive")
	}
}

func TestFindRoute_Deterministic(t *testing.T) {
	snap := testGrid(t)

	var first []int64
	for i := 0; i < 20; i++ {
		view := graph.NewWeightedView(snap, flatCost, nil)
		r, err := FindRoute(context.Background(), view, 1, []int64{6})
		if err != nil {
			t.Fatal(err)
		}
		if first == nil {
			first = r.NodeIDs
			continue
		}
		if !sameNodes(first, r.NodeIDs) {
			t.Fatalf("run %d differed: %v vs %v", i, r.NodeIDs, first)
		}
	}
}

func TestFindRoute_AvoidsExpensiveEdge(t *testing.T) {
	snap := testGrid(t)
	// make the direct corridor through edge 11 prohibitively risky
	view := graph.NewWeightedView(snap, func(e *graph.Edge) float64 {
		if e.ID == 11 {
			return 100
		}
		return 1
	}, nil)

	r, err := FindRoute(context.Background(), view, 1, []int64{3})
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range r.EdgeIDs {
		if id == 11 {
			t.Fatalf("route used the risky edge: %v", r.EdgeIDs)
		}
	}
	// shortest 11-free detour (1-2-5-6-3 or 1-4-5-6-3) is four hops
	if r.Cost != 4 {
		t.Errorf("detour cost: got %v, want 4", r.Cost)
	}
}

func TestFindRoute_MultiGoalPicksCheapest(t *testing.T) {
	snap := testGrid(t)
	view := graph.NewWeightedView(snap, flatCost, nil)

	r, err := FindRoute(context.Background(), view, 1, []int64{6, 2})
	if err != nil {
		t.Fatal(err)
	}
	if r.GoalNode != 2 {
		t.Errorf("goal: got %d, want adjacent node 2", r.GoalNode)
	}
	if len(r.EdgeIDs) != 1 {
		t.Errorf("hops: got %d, want 1", len(r.EdgeIDs))
	}
}

func TestFindRoute_OriginIsGoal(t *testing.T) {
	snap := testGrid(t)
	view := graph.NewWeightedView(snap, flatCost, nil)

	r, err := FindRoute(context.Background(), view, 5, []int64{5})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.NodeIDs) != 1 || r.NodeIDs[0] != 5 || len(r.EdgeIDs) != 0 {
		t.Errorf("degenerate route: %+v", r)
	}
	if r.Cost != 0 || r.DistanceMeters != 0 {
		t.Errorf("degenerate route cost/distance: %v / %v", r.Cost, r.DistanceMeters)
	}
}

func TestFindRoute_NoPath(t *testing.T) {
	g := graph.New()
	if err := g.AddNode(1, model.LatLng{Lat: 35, Lng: 139}); err != nil {
		t.Fatal(err)
	}
	if err := g.AddNode(2, model.LatLng{Lat: 35.01, Lng: 139}); err != nil {
		t.Fatal(err)
	}
	if err := g.Freeze(); err != nil {
		t.Fatal(err)
	}
	snap, err := g.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	view := graph.NewWeightedView(snap, flatCost, nil)

	if _, err := FindRoute(context.Background(), view, 1, []int64{2}); err != ErrNoPathFound {
		t.Errorf("got %v, want ErrNoPathFound", err)
	}
	if _, err := FindRoute(context.Background(), view, 1, nil); err != ErrNoPathFound {
		t.Errorf("empty goals: got %v, want ErrNoPathFound", err)
	}
}

func TestFindRoute_CancelledContext(t *testing.T) {
	snap := testGrid(t)
	view := graph.NewWeightedView(snap, flatCost, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := FindRoute(ctx, view, 1, []int64{6}); err != ErrDeadlineExceeded {
		t.Errorf("got %v, want ErrDeadlineExceeded", err)
	}
}
