package roadnet

import (
	"errors"
	"fmt"
	"math"

	"github.com/peterstace/simplefeatures/geom"
)

// Track is the polyline a path traces on the ground plane, parameterised by
// arc length s from its first point.
type Track struct {
	points []Coordinate
	cum    []float64 // arc length at each point
	limits []float64 // per segment, +Inf when unrestricted
}

// Track lays path out as a polyline. Consecutive coincident nodes are merged.
func (g *Graph) Track(p Path) (*Track, error) {
	if len(p.Route) == 0 {
		return nil, errors.New("empty path")
	}
	first, err := g.Node(p.Route[0])
	if err != nil {
		return nil, err
	}
	t := &Track{points: []Coordinate{first.Loc}, cum: []float64{0}}
	for i := 1; i < len(p.Route); i++ {
		r, err := g.Road(p.Route[i-1], p.Route[i])
		if err != nil {
			return nil, fmt.Errorf("path %q: %w", p.ID, err)
		}
		n := g.nodeMap[r.V]
		limit := math.Inf(1)
		if r.SpeedLimit != nil {
			limit = *r.SpeedLimit
		}
		t.extend(n.Loc, limit)
	}
	return t, nil
}

// NewTrack builds an unrestricted track through points.
func NewTrack(points ...Coordinate) (*Track, error) {
	if len(points) == 0 {
		return nil, errors.New("empty track")
	}
	t := &Track{points: points[:1:1], cum: []float64{0}}
	for _, p := range points[1:] {
		t.extend(p, math.Inf(1))
	}
	return t, nil
}

func (t *Track) extend(p Coordinate, limit float64) {
	last := t.points[len(t.points)-1]
	d := last.Dist(p)
	if d == 0 {
		return
	}
	t.points = append(t.points, p)
	t.cum = append(t.cum, t.cum[len(t.cum)-1]+d)
	t.limits = append(t.limits, limit)
}

// Length is the total arc length in metres.
func (t *Track) Length() float64 { return t.cum[len(t.cum)-1] }

// Points returns the polyline vertices.
func (t *Track) Points() []Coordinate { return append([]Coordinate(nil), t.points...) }

// Segments is the number of straight pieces.
func (t *Track) Segments() int { return len(t.limits) }

// Start returns the first vertex.
func (t *Track) Start() Coordinate { return t.points[0] }

// End returns the last vertex.
func (t *Track) End() Coordinate { return t.points[len(t.points)-1] }

// Project finds the point of the track nearest to c, searching segments from
// index from onward so progress along a self-crossing track never jumps back.
// It returns the arc length of that point and the segment it lies on.
func (t *Track) Project(c Coordinate, from int) (s float64, seg int) {
	if len(t.limits) == 0 {
		return 0, 0
	}
	from = max(0, min(from, len(t.limits)-1))
	best := math.Inf(1)
	for i := from; i < len(t.limits); i++ {
		a, b := t.points[i], t.points[i+1]
		ab := b.Sub(a)
		ac := c.Sub(a)
		l := t.cum[i+1] - t.cum[i]
		u := math.Max(0, math.Min(1, (ac.X*ab.X+ac.Z*ab.Z)/(l*l)))
		p := Coordinate{a.X + u*ab.X, a.Z + u*ab.Z}
		if d := p.Dist(c); d < best {
			best = d
			s = t.cum[i] + u*l
			seg = i
		}
	}
	return s, seg
}

// PointAt returns the point at arc length s, clamped to the track ends.
func (t *Track) PointAt(s float64) Coordinate {
	if s <= 0 || len(t.limits) == 0 {
		return t.points[0]
	}
	if s >= t.Length() {
		return t.End()
	}
	i := t.segmentAt(s)
	a, b := t.points[i], t.points[i+1]
	u := (s - t.cum[i]) / (t.cum[i+1] - t.cum[i])
	return Coordinate{a.X + u*(b.X-a.X), a.Z + u*(b.Z-a.Z)}
}

func (t *Track) segmentAt(s float64) int {
	for i := range t.limits {
		if s < t.cum[i+1] {
			return i
		}
	}
	return len(t.limits) - 1
}

// SpeedLimitAt returns the limit of the segment containing s, or +Inf.
func (t *Track) SpeedLimitAt(s float64) float64 {
	if len(t.limits) == 0 {
		return math.Inf(1)
	}
	return t.limits[t.segmentAt(s)]
}

// SafeSpeed is the highest speed at s from which a vehicle braking at decel
// can honour every speed limit ahead and come to rest at the end of the track.
func (t *Track) SafeSpeed(s, decel float64) float64 {
	safe := math.Sqrt(2 * decel * math.Max(0, t.Length()-s))
	if len(t.limits) == 0 {
		return 0
	}
	cur := t.segmentAt(s)
	safe = math.Min(safe, t.limits[cur])
	for i := cur + 1; i < len(t.limits); i++ {
		ahead := t.cum[i] - s
		safe = math.Min(safe, math.Sqrt(t.limits[i]*t.limits[i]+2*decel*ahead))
	}
	return safe
}

// LineString returns the track as a planar geometry with X=x and Y=z.
func (t *Track) LineString() geom.LineString {
	if len(t.points) < 2 {
		return geom.LineString{}
	}
	coords := make([]float64, 0, 2*len(t.points))
	for _, p := range t.points {
		coords = append(coords, p.X, p.Z)
	}
	return geom.NewLineString(geom.NewSequence(coords, geom.DimXY))
}
