package graph

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/urbansafe/evacroute/internal/model"
)

// Node is a walkable intersection. Immutable once loaded.
type Node struct {
	ID       int64
	Location model.LatLng
	Edges    []int64 // adjacent edge ids
}

// Edge is an undirected walkable segment between two nodes. LengthMeters and
// the structural descriptor never change after load; per-search weighting
// lives in call-scoped overlays, never here.
type Edge struct {
	ID           int64
	From, To     int64
	LengthMeters float64
	Structural   *model.StructuralDescriptor
}

// Other returns the endpoint opposite to nodeID.
func (e *Edge) Other(nodeID int64) int64 {
	if e.From == nodeID {
		return e.To
	}
	return e.From
}

// SafeZone is a designated rally point. The NodeID is the nearest graph node,
// resolved once at load time.
type SafeZone struct {
	ID       string       `json:"id" yaml:"id"`
	Location model.LatLng `json:"location" yaml:"location"`
	Capacity int          `json:"capacity,omitempty" yaml:"capacity,omitempty"`
	NodeID   int64        `json:"node_id" yaml:"-"`
}

// Graph is the city's walkable network. The topology is read-only after
// Freeze and safely shared across concurrent calculations.
type Graph struct {
	nodes     map[int64]*Node
	edges     map[int64]*Edge
	safeZones []SafeZone
	frozen    bool
}

// New returns an empty graph ready for loading.
func New() *Graph {
	return &Graph{
		nodes: make(map[int64]*Node),
		edges: make(map[int64]*Edge),
	}
}

// AddNode registers a node. Load-time only.
func (g *Graph) AddNode(id int64, loc model.LatLng) error {
	if g.frozen {
		return eris.New("graph: add node after freeze")
	}
	if _, ok := g.nodes[id]; ok {
		return eris.Errorf("graph: duplicate node %d", id)
	}
	g.nodes[id] = &Node{ID: id, Location: loc}
	return nil
}

// AddEdge registers an undirected edge and wires it into both endpoints'
// adjacency lists. Load-time only.
func (g *Graph) AddEdge(id, from, to int64, lengthMeters float64) error {
	if g.frozen {
		return eris.New("graph: add edge after freeze")
	}
	if _, ok := g.edges[id]; ok {
		return eris.Errorf("graph: duplicate edge %d", id)
	}
	fromNode, ok := g.nodes[from]
	if !ok {
		return eris.Errorf("graph: edge %d references missing node %d", id, from)
	}
	toNode, ok := g.nodes[to]
	if !ok {
		return eris.Errorf("graph: edge %d references missing node %d", id, to)
	}
	if lengthMeters <= 0 {
		lengthMeters = model.HaversineMeters(fromNode.Location, toNode.Location)
	}
	g.edges[id] = &Edge{ID: id, From: from, To: to, LengthMeters: lengthMeters}
	fromNode.Edges = append(fromNode.Edges, id)
	toNode.Edges = append(toNode.Edges, id)
	return nil
}

// SetStructural attaches a structural descriptor to an edge. Load-time only.
func (g *Graph) SetStructural(edgeID int64, d *model.StructuralDescriptor) error {
	if g.frozen {
		return eris.New("graph: set structural after freeze")
	}
	e, ok := g.edges[edgeID]
	if !ok {
		return eris.Errorf("graph: structural descriptor for missing edge %d", edgeID)
	}
	e.Structural = d
	return nil
}

// AddSafeZone registers a safe zone. Its NodeID is resolved during Freeze.
func (g *Graph) AddSafeZone(z SafeZone) error {
	if g.frozen {
		return eris.New("graph: add safe zone after freeze")
	}
	g.safeZones = append(g.safeZones, z)
	return nil
}

// Freeze resolves safe-zone anchor nodes, orders the safe-zone set by id for
// deterministic tie-breaking, and makes the topology immutable.
func (g *Graph) Freeze() error {
	if g.frozen {
		return nil
	}
	for i := range g.safeZones {
		node := g.nearestNode(g.safeZones[i].Location)
		if node == nil {
			return eris.Errorf("graph: safe zone %s has no anchor node", g.safeZones[i].ID)
		}
		g.safeZones[i].NodeID = node.ID
	}
	sort.Slice(g.safeZones, func(i, j int) bool {
		return g.safeZones[i].ID < g.safeZones[j].ID
	})
	g.frozen = true
	return nil
}

// Snapshot returns the immutable read view used by calculations. The graph
// must be frozen first.
func (g *Graph) Snapshot() (*Snapshot, error) {
	if !g.frozen {
		return nil, eris.New("graph: snapshot before freeze")
	}
	return &Snapshot{g: g}, nil
}

func (g *Graph) nearestNode(loc model.LatLng) *Node {
	var best *Node
	bestDist := 0.0
	for _, n := range g.nodes {
		d := model.HaversineMeters(loc, n.Location)
		if best == nil || d < bestDist || (d == bestDist && n.ID < best.ID) {
			best = n
			bestDist = d
		}
	}
	return best
}

// Snapshot is a read-only view of a frozen graph.
type Snapshot struct {
	g *Graph
}

// Node returns the node with the given id, nil when absent.
func (s *Snapshot) Node(id int64) *Node { return s.g.nodes[id] }

// Edge returns the edge with the given id, nil when absent.
func (s *Snapshot) Edge(id int64) *Edge { return s.g.edges[id] }

// NodeCount returns the number of nodes.
func (s *Snapshot) NodeCount() int { return len(s.g.nodes) }

// EdgeCount returns the number of edges.
func (s *Snapshot) EdgeCount() int { return len(s.g.edges) }

// SafeZones returns the safe-zone set ordered by id.
func (s *Snapshot) SafeZones() []SafeZone { return s.g.safeZones }

// NearestNode returns the node closest to loc, or nil for an empty graph.
// Ties break toward the lowest node id.
func (s *Snapshot) NearestNode(loc model.LatLng) *Node {
	return s.g.nearestNode(loc)
}

// NearestSafeZone returns the safe zone closest to loc. The second return is
// false when no safe zones are loaded. Ties break toward the lowest zone id,
// which the ordered set gives for free.
func (s *Snapshot) NearestSafeZone(loc model.LatLng) (SafeZone, bool) {
	if len(s.g.safeZones) == 0 {
		return SafeZone{}, false
	}
	best := s.g.safeZones[0]
	bestDist := model.HaversineMeters(loc, best.Location)
	for _, z := range s.g.safeZones[1:] {
		if d := model.HaversineMeters(loc, z.Location); d < bestDist {
			best = z
			bestDist = d
		}
	}
	return best, true
}
