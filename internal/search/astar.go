// Package search implements the A* route search over a weighted graph view,
// plus penalty-diversified alternative generation and route summarization.
package search

import (
	"container/heap"
	"context"

	"github.com/rotisserie/eris"

	"github.com/urbansafe/evacroute/internal/graph"
	"github.com/urbansafe/evacroute/internal/model"
	"github.com/urbansafe/evacroute/internal/risk"
)

var (
	// ErrNoPathFound means the open set was exhausted before reaching any
	// goal node.
	ErrNoPathFound = eris.New("search: no path found")

	// ErrDeadlineExceeded means the search budget ran out. Callers keep
	// their last-known-good route; a partial path is never returned.
	ErrDeadlineExceeded = eris.New("search: deadline exceeded")
)

// deadlineCheckInterval is how many pops pass between context checks.
const deadlineCheckInterval = 64

// heuristicRate converts great-circle meters into cost units: the distance
// term contributes WeightDistance per DistanceSaturationMeters. Edge costs
// clamp the distance term at 1 while the heuristic does not, so across edges
// longer than the saturation length the estimate can exceed true remaining
// cost. That optimism is accepted: responsiveness over strict optimality.
const heuristicRate = risk.WeightDistance / risk.DistanceSaturationMeters

// Result is a raw search outcome prior to summarization.
type Result struct {
	NodeIDs        []int64
	EdgeIDs        []int64
	Cost           float64
	DistanceMeters float64
	GoalNode       int64
}

type openItem struct {
	node int64
	f    float64
	seq  int // insertion order, FIFO among equal f
}

type openHeap []*openItem

func (h openHeap) Len() int { return len(h) }
func (h openHeap) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	return h[i].seq < h[j].seq
}
func (h openHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *openHeap) Push(x any) { *h = append(*h, x.(*openItem)) }

func (h *openHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

type cameFromEntry struct {
	prevNode int64
	edgeID   int64
}

// FindRoute runs A* from originNode to the nearest member of goalNodes under
// the given weighted view. The context deadline bounds the search.
func FindRoute(ctx context.Context, view *graph.WeightedView, originNode int64, goalNodes []int64) (*Result, error) {
	if len(goalNodes) == 0 {
		return nil, ErrNoPathFound
	}
	if ctx.Err() != nil {
		return nil, ErrDeadlineExceeded
	}
	snap := view.Snapshot()
	if snap.Node(originNode) == nil {
		return nil, eris.Errorf("search: origin node %d not in graph", originNode)
	}

	goals := make(map[int64]bool, len(goalNodes))
	goalLocs := make([]model.LatLng, 0, len(goalNodes))
	for _, id := range goalNodes {
		n := snap.Node(id)
		if n == nil {
			return nil, eris.Errorf("search: goal node %d not in graph", id)
		}
		goals[id] = true
		goalLocs = append(goalLocs, n.Location)
	}

	h := func(nodeID int64) float64 {
		loc := snap.Node(nodeID).Location
		best := model.HaversineMeters(loc, goalLocs[0])
		for _, g := range goalLocs[1:] {
			if d := model.HaversineMeters(loc, g); d < best {
				best = d
			}
		}
		return best * heuristicRate
	}

	gScore := map[int64]float64{originNode: 0}
	cameFrom := make(map[int64]cameFromEntry)
	closed := make(map[int64]bool)

	open := &openHeap{}
	heap.Init(open)
	seq := 0
	heap.Push(open, &openItem{node: originNode, f: h(originNode), seq: seq})

	pops := 0
	for open.Len() > 0 {
		pops++
		if pops%deadlineCheckInterval == 0 {
			if ctx.Err() != nil {
				return nil, ErrDeadlineExceeded
			}
		}

		item := heap.Pop(open).(*openItem)
		current := item.node
		if closed[current] {
			continue
		}
		if goals[current] {
			return reconstruct(snap, cameFrom, current, gScore[current]), nil
		}
		closed[current] = true

		node := snap.Node(current)
		for _, edgeID := range node.Edges {
			e := snap.Edge(edgeID)
			neighbor := e.Other(current)
			if closed[neighbor] {
				continue
			}
			tentative := gScore[current] + view.EdgeCost(e)
			if old, ok := gScore[neighbor]; ok && tentative >= old {
				continue
			}
			gScore[neighbor] = tentative
			cameFrom[neighbor] = cameFromEntry{prevNode: current, edgeID: edgeID}
			seq++
			heap.Push(open, &openItem{node: neighbor, f: tentative + h(neighbor), seq: seq})
		}
	}

	return nil, ErrNoPathFound
}

func reconstruct(snap *graph.Snapshot, cameFrom map[int64]cameFromEntry, goal int64, cost float64) *Result {
	var nodes []int64
	var edges []int64
	var distance float64

	current := goal
	for {
		nodes = append(nodes, current)
		entry, ok := cameFrom[current]
		if !ok {
			break
		}
		edges = append(edges, entry.edgeID)
		distance += snap.Edge(entry.edgeID).LengthMeters
		current = entry.prevNode
	}

	// Reverse into origin-to-goal order.
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}

	return &Result{
		NodeIDs:        nodes,
		EdgeIDs:        edges,
		Cost:           cost,
		DistanceMeters: distance,
		GoalNode:       goal,
	}
}
