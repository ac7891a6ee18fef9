package roadnet

import (
	"fmt"
	"math"
)

// Path is the result of a shortest-path query.
type Path struct {
	ID     PathID   `json:"path_id"`
	Route  []NodeID `json:"route"`  // ordered node IDs from start to end
	Length float64  `json:"length"` // metres
}

// computeShortestPaths runs Floyd-Warshall over all nodes and roads.
func (g *Graph) computeShortestPaths() {
	ids := make([]NodeID, len(g.nodes))
	for i, n := range g.nodes {
		ids[i] = n.ID
	}

	dist := make(map[NodeID]map[NodeID]float64, len(ids))
	next := make(map[NodeID]map[NodeID]NodeID, len(ids))
	for _, i := range ids {
		dist[i] = make(map[NodeID]float64, len(ids))
		next[i] = make(map[NodeID]NodeID, len(ids))
		for _, j := range ids {
			dist[i][j] = math.Inf(1)
		}
		dist[i][i] = 0
	}
	for _, r := range g.roads {
		if r.Length < dist[r.U][r.V] {
			dist[r.U][r.V] = r.Length
			next[r.U][r.V] = r.V
		}
	}
	for _, k := range ids {
		for _, i := range ids {
			for _, j := range ids {
				if d := dist[i][k] + dist[k][j]; d < dist[i][j] {
					dist[i][j] = d
					next[i][j] = next[i][k]
				}
			}
		}
	}

	g.dist = dist
	g.nextNode = next
	g.pathCache = make(map[PathID]Path)
}

func (g *Graph) reconstructPath(u, v NodeID) []NodeID {
	route := []NodeID{u}
	for u != v {
		n, ok := g.nextNode[u][v]
		if !ok || n == "" {
			return nil
		}
		u = n
		route = append(route, u)
	}
	return route
}

// ShortestPath returns the shortest directed path from start to end. Results
// are cached until the graph changes.
func (g *Graph) ShortestPath(start, end NodeID) (Path, error) {
	if _, ok := g.nodeMap[start]; !ok {
		return Path{}, fmt.Errorf("node %q not found", start)
	}
	if _, ok := g.nodeMap[end]; !ok {
		return Path{}, fmt.Errorf("node %q not found", end)
	}
	key := pathKey(start, end)
	if start == end {
		return Path{ID: key, Route: []NodeID{start}}, nil
	}
	if p, ok := g.pathCache[key]; ok {
		return p, nil
	}
	if g.dist == nil {
		g.computeShortestPaths()
	}
	d := g.dist[start][end]
	if math.IsInf(d, 1) {
		return Path{}, fmt.Errorf("%w from %q to %q", ErrNoPath, start, end)
	}
	p := Path{ID: key, Route: g.reconstructPath(start, end), Length: d}
	g.pathCache[key] = p
	return p, nil
}

// Plan joins the shortest paths between consecutive stops into one path.
func (g *Graph) Plan(stops ...NodeID) (Path, error) {
	if len(stops) == 0 {
		return Path{}, fmt.Errorf("%w: no stops", ErrNoPath)
	}
	out := Path{ID: stops[0], Route: []NodeID{stops[0]}}
	if _, err := g.Node(stops[0]); err != nil {
		return Path{}, err
	}
	for i := 1; i < len(stops); i++ {
		leg, err := g.ShortestPath(stops[i-1], stops[i])
		if err != nil {
			return Path{}, err
		}
		out.ID += "->" + stops[i]
		out.Route = append(out.Route, leg.Route[1:]...)
		out.Length += leg.Length
	}
	return out, nil
}
