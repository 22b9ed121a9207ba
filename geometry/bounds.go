package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Bounds is an axis aligned box.
type Bounds struct {
	Min r3.Vec `json:"min"`
	Max r3.Vec `json:"max"`
}

// NewBounds returns the box spanning the given intervals, in VTK argument
// order.
func NewBounds(xmin, xmax, ymin, ymax, zmin, zmax float64) Bounds {
	return Bounds{
		Min: r3.Vec{X: xmin, Y: ymin, Z: zmin},
		Max: r3.Vec{X: xmax, Y: ymax, Z: zmax},
	}
}

// EmptyBounds returns an inverted box that any union replaces.
func EmptyBounds() Bounds {
	inf := math.Inf(1)
	return Bounds{
		Min: r3.Vec{X: inf, Y: inf, Z: inf},
		Max: r3.Vec{X: -inf, Y: -inf, Z: -inf},
	}
}

// BoundsOf returns the tight box around the given points.
func BoundsOf(points ...r3.Vec) Bounds {
	b := EmptyBounds()
	for _, p := range points {
		b = b.Add(p)
	}
	return b
}

func (b Bounds) Lo(a Axis) float64 {
	return Coord(b.Min, a)
}

func (b Bounds) Hi(a Axis) float64 {
	return Coord(b.Max, a)
}

func (b *Bounds) SetLo(a Axis, v float64) {
	b.Min = WithCoord(b.Min, a, v)
}

func (b *Bounds) SetHi(a Axis, v float64) {
	b.Max = WithCoord(b.Max, a, v)
}

// Extent returns the width of the box along an axis.
func (b Bounds) Extent(a Axis) float64 {
	return b.Hi(a) - b.Lo(a)
}

// MaxWidth returns the largest extent of the box.
func (b Bounds) MaxWidth() float64 {
	return math.Max(b.Extent(X), math.Max(b.Extent(Y), b.Extent(Z)))
}

// IsEmpty reports whether the box is inverted along any axis.
func (b Bounds) IsEmpty() bool {
	return b.Max.X < b.Min.X || b.Max.Y < b.Min.Y || b.Max.Z < b.Min.Z
}

// Add returns the smallest box containing b and p.
func (b Bounds) Add(p r3.Vec) Bounds {
	b.Min = r3.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
	b.Max = r3.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
	return b
}

// Union returns the smallest box containing both boxes.
func (b Bounds) Union(o Bounds) Bounds {
	if o.IsEmpty() {
		return b
	}
	return b.Add(o.Min).Add(o.Max)
}

func (b Bounds) Center() r3.Vec {
	return r3.Scale(0.5, r3.Add(b.Min, b.Max))
}

// Corners returns the eight corners of the box. Corner i takes the maximum
// along X when bit 0 is set, along Y for bit 1 and along Z for bit 2.
func (b Bounds) Corners() [8]r3.Vec {
	var corners [8]r3.Vec
	for i := range corners {
		c := b.Min
		if i&1 != 0 {
			c.X = b.Max.X
		}
		if i&2 != 0 {
			c.Y = b.Max.Y
		}
		if i&4 != 0 {
			c.Z = b.Max.Z
		}
		corners[i] = c
	}
	return corners
}

var boxEdges = [12][2]int{
	{0, 1}, {2, 3}, {4, 5}, {6, 7},
	{0, 2}, {1, 3}, {4, 6}, {5, 7},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// Edges returns the twelve edges of the box as segments.
func (b Bounds) Edges() [12][2]r3.Vec {
	corners := b.Corners()
	var edges [12][2]r3.Vec
	for i, e := range boxEdges {
		edges[i] = [2]r3.Vec{corners[e[0]], corners[e[1]]}
	}
	return edges
}

// Split cuts the box at coord along the given axis.
func (b Bounds) Split(a Axis, coord float64) (lower, upper Bounds) {
	lower, upper = b, b
	lower.SetHi(a, coord)
	upper.SetLo(a, coord)
	return lower, upper
}

// ContainsPoint reports whether p lies in the half-open box [min, max).
func (b Bounds) ContainsPoint(p r3.Vec) bool {
	return p.X >= b.Min.X && p.X < b.Max.X &&
		p.Y >= b.Min.Y && p.Y < b.Max.Y &&
		p.Z >= b.Min.Z && p.Z < b.Max.Z
}

// ContainsPointClosed reports whether p lies in the closed box.
func (b Bounds) ContainsPointClosed(p r3.Vec) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// IntersectsBox reports whether the closed boxes overlap.
func (b Bounds) IntersectsBox(o Bounds) bool {
	return !(o.Max.X < b.Min.X || o.Min.X > b.Max.X ||
		o.Max.Y < b.Min.Y || o.Min.Y > b.Max.Y ||
		o.Max.Z < b.Min.Z || o.Min.Z > b.Max.Z)
}

// ContainsBox reports whether o lies entirely inside b.
func (b Bounds) ContainsBox(o Bounds) bool {
	return o.Min.X >= b.Min.X && o.Max.X <= b.Max.X &&
		o.Min.Y >= b.Min.Y && o.Max.Y <= b.Max.Y &&
		o.Min.Z >= b.Min.Z && o.Max.Z <= b.Max.Z
}

// ClosestPoint returns the point of the closed box nearest to p.
func (b Bounds) ClosestPoint(p r3.Vec) r3.Vec {
	return r3.Vec{
		X: clamp(p.X, b.Min.X, b.Max.X),
		Y: clamp(p.Y, b.Min.Y, b.Max.Y),
		Z: clamp(p.Z, b.Min.Z, b.Max.Z),
	}
}

// Distance2 returns the squared distance from p to the box, 0 when p is
// inside.
func (b Bounds) Distance2(p r3.Vec) float64 {
	return r3.Norm2(r3.Sub(p, b.ClosestPoint(p)))
}

// MaxDistance2 returns the squared distance from p to the farthest point of
// the box.
func (b Bounds) MaxDistance2(p r3.Vec) float64 {
	var d2 float64
	for _, a := range Axes {
		v := Coord(p, a)
		d := math.Max(math.Abs(v-b.Lo(a)), math.Abs(v-b.Hi(a)))
		d2 += d * d
	}
	return d2
}

// IntersectsSphere2 reports whether the sphere of squared radius r2 centered
// at c touches the box.
func (b Bounds) IntersectsSphere2(c r3.Vec, r2 float64) bool {
	return b.Distance2(c) <= r2
}

// ContainedInSphere2 reports whether the whole box lies inside the sphere of
// squared radius r2 centered at c.
func (b Bounds) ContainedInSphere2(c r3.Vec, r2 float64) bool {
	return b.MaxDistance2(c) <= r2
}

// Distance2ToBoundary returns the squared distance from p to the surface of
// the box. Points outside get their distance to the box.
func (b Bounds) Distance2ToBoundary(p r3.Vec) float64 {
	return b.distance2ToFaces(p, nil)
}

// Distance2ToInnerBoundary is like Distance2ToBoundary but ignores the faces
// lying on the outer bounds, across which there is no neighbouring region.
// It returns +Inf when every face lies on the outer bounds.
func (b Bounds) Distance2ToInnerBoundary(p r3.Vec, outer Bounds) float64 {
	return b.distance2ToFaces(p, &outer)
}

func (b Bounds) distance2ToFaces(p r3.Vec, outer *Bounds) float64 {
	if !b.ContainsPointClosed(p) {
		return b.Distance2(p)
	}

	minDist := math.Inf(1)
	for _, a := range Axes {
		v := Coord(p, a)

		if outer == nil || b.Lo(a) != outer.Lo(a) {
			minDist = math.Min(minDist, v-b.Lo(a))
		}
		if outer == nil || b.Hi(a) != outer.Hi(a) {
			minDist = math.Min(minDist, b.Hi(a)-v)
		}
	}
	return minDist * minDist
}

// Equal reports whether both boxes match within the given tolerance.
func (b Bounds) Equal(o Bounds, tolerance float64) bool {
	return VecEqualWithEpsilon(b.Min, o.Min, tolerance) &&
		VecEqualWithEpsilon(b.Max, o.Max, tolerance)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
