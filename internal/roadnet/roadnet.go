// Package roadnet provides the road network a route driver follows: junction
// nodes placed on the ground plane, directed roads between them and cached
// shortest-path queries.
package roadnet

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// NodeID, RoadID, PathID are string aliases used as identifiers.
type (
	NodeID = string
	RoadID = string
	PathID = string
)

// ErrNoPath is returned when no directed route joins two nodes.
var ErrNoPath = errors.New("no path")

// Coordinate is a ground-plane position in metres. X is world +x and Z is
// world +z (to the right of a vehicle facing +x).
type Coordinate struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// Vec3 lifts the coordinate into world space at height y.
func (c Coordinate) Vec3(y float64) mgl64.Vec3 { return mgl64.Vec3{c.X, y, c.Z} }

// Sub returns c - o.
func (c Coordinate) Sub(o Coordinate) Coordinate { return Coordinate{c.X - o.X, c.Z - o.Z} }

// Dist returns the straight-line distance to o.
func (c Coordinate) Dist(o Coordinate) float64 { return math.Hypot(c.X-o.X, c.Z-o.Z) }

// Ground projects a world position onto the ground plane.
func Ground(v mgl64.Vec3) Coordinate { return Coordinate{X: v.X(), Z: v.Z()} }

// Node is a junction or waypoint.
type Node struct {
	ID  NodeID     `json:"node_id"`
	Loc Coordinate `json:"loc"`
}

// Road is a straight directed road from U to V. Length defaults to the
// distance between the endpoints. SpeedLimit is optional; nil leaves the
// driver's cruise speed in charge.
type Road struct {
	ID         RoadID   `json:"road_id"`
	U          NodeID   `json:"u"`
	V          NodeID   `json:"v"`
	Length     float64  `json:"length,omitempty"`      // metres
	SpeedLimit *float64 `json:"speed_limit,omitempty"` // m/s
}

// NetworkData is the serialisable form of a road network.
type NetworkData struct {
	Nodes []Node `json:"nodes"`
	Roads []Road `json:"roads"`
}

// Graph is a directed weighted road graph with cached shortest paths.
// It is not safe for concurrent mutation.
type Graph struct {
	nodes       []Node
	roads       []Road
	nodeMap     map[NodeID]Node
	roadMap     map[RoadID]Road
	roadByNodes map[NodeID]map[NodeID]Road // u → v → road

	// Floyd-Warshall tables; nil until first needed.
	dist     map[NodeID]map[NodeID]float64
	nextNode map[NodeID]map[NodeID]NodeID
	// Path cache; cleared whenever the topology changes.
	pathCache map[PathID]Path
}

// NewGraph builds a Graph from NetworkData, returning an error if any node or
// road reference is invalid.
func NewGraph(data NetworkData) (*Graph, error) {
	g := &Graph{
		nodeMap:     make(map[NodeID]Node),
		roadMap:     make(map[RoadID]Road),
		roadByNodes: make(map[NodeID]map[NodeID]Road),
		pathCache:   make(map[PathID]Path),
	}
	for _, n := range data.Nodes {
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
	}
	for _, r := range data.Roads {
		if err := g.AddRoad(r); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// AddNode adds a node. Node IDs must be unique.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return errors.New("node with empty id")
	}
	if _, exists := g.nodeMap[n.ID]; exists {
		return fmt.Errorf("node %q already exists", n.ID)
	}
	g.nodes = append(g.nodes, n)
	g.nodeMap[n.ID] = n
	g.invalidate()
	return nil
}

// AddRoad adds a directed road. Both endpoints must exist; a zero length is
// replaced by the distance between them.
func (g *Graph) AddRoad(r Road) error {
	if _, exists := g.roadMap[r.ID]; exists {
		return fmt.Errorf("road %q already exists", r.ID)
	}
	u, ok := g.nodeMap[r.U]
	if !ok {
		return fmt.Errorf("road %q: source node %q not found", r.ID, r.U)
	}
	v, ok := g.nodeMap[r.V]
	if !ok {
		return fmt.Errorf("road %q: target node %q not found", r.ID, r.V)
	}
	if r.Length < 0 {
		return fmt.Errorf("road %q: negative length %g", r.ID, r.Length)
	}
	if r.Length == 0 {
		r.Length = u.Loc.Dist(v.Loc)
	}
	if r.SpeedLimit != nil && *r.SpeedLimit <= 0 {
		return fmt.Errorf("road %q: speed limit must be positive", r.ID)
	}
	g.roads = append(g.roads, r)
	g.roadMap[r.ID] = r
	if g.roadByNodes[r.U] == nil {
		g.roadByNodes[r.U] = make(map[NodeID]Road)
	}
	g.roadByNodes[r.U][r.V] = r
	g.invalidate()
	return nil
}

func (g *Graph) invalidate() {
	g.dist = nil
	g.nextNode = nil
	g.pathCache = make(map[PathID]Path)
}

// Node looks up a node by ID.
func (g *Graph) Node(id NodeID) (Node, error) {
	n, ok := g.nodeMap[id]
	if !ok {
		return Node{}, fmt.Errorf("node %q not found", id)
	}
	return n, nil
}

// Nodes returns every node in insertion order.
func (g *Graph) Nodes() []Node { return append([]Node(nil), g.nodes...) }

// Roads returns every road in insertion order.
func (g *Graph) Roads() []Road { return append([]Road(nil), g.roads...) }

// RoadByID looks up a road by its ID.
func (g *Graph) RoadByID(id RoadID) (Road, error) {
	r, ok := g.roadMap[id]
	if !ok {
		return Road{}, fmt.Errorf("road %q not found", id)
	}
	return r, nil
}

// Road returns the directed road from u to v.
func (g *Graph) Road(u, v NodeID) (Road, error) {
	if m, ok := g.roadByNodes[u]; ok {
		if r, ok := m[v]; ok {
			return r, nil
		}
	}
	return Road{}, fmt.Errorf("no road from %q to %q", u, v)
}

// NextRoad returns the first road on the shortest path from u toward dest.
func (g *Graph) NextRoad(u, dest NodeID) (Road, error) {
	p, err := g.ShortestPath(u, dest)
	if err != nil {
		return Road{}, err
	}
	if len(p.Route) < 2 {
		return Road{}, fmt.Errorf("already at destination %q", dest)
	}
	return g.Road(p.Route[0], p.Route[1])
}

func pathKey(start, end NodeID) PathID { return start + "->" + end }
