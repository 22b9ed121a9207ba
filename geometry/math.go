package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const intersectionEpsilon = 1e-12

func EqualWithEpsilon(a, b, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

func InRangeWithEpsilon(value, min, max, epsilon float64) bool {
	return value+epsilon >= min && value-epsilon <= max
}

func VecEqualWithEpsilon(v1, v2 r3.Vec, epsilon float64) bool {
	return EqualWithEpsilon(v1.X, v2.X, epsilon) &&
		EqualWithEpsilon(v1.Y, v2.Y, epsilon) &&
		EqualWithEpsilon(v1.Z, v2.Z, epsilon)
}

// SegmentIntersectsBox reports whether the segment [p0, p1] touches the
// closed box.
func SegmentIntersectsBox(p0, p1 r3.Vec, b Bounds) bool {
	t0, t1 := 0.0, 1.0
	dir := r3.Sub(p1, p0)

	for _, a := range Axes {
		origin := Coord(p0, a)
		d := Coord(dir, a)
		lo, hi := b.Lo(a), b.Hi(a)

		if math.Abs(d) < intersectionEpsilon {
			if origin < lo || origin > hi {
				return false
			}
			continue
		}

		near := (lo - origin) / d
		far := (hi - origin) / d
		if near > far {
			near, far = far, near
		}
		t0 = math.Max(t0, near)
		t1 = math.Min(t1, far)
		if t0 > t1 {
			return false
		}
	}
	return true
}

// SegmentIntersectsTriangle reports whether the segment [p0, p1] crosses the
// triangle (a, b, c).
func SegmentIntersectsTriangle(p0, p1, a, b, c r3.Vec) bool {
	dir := r3.Sub(p1, p0)
	e1 := r3.Sub(b, a)
	e2 := r3.Sub(c, a)

	h := r3.Cross(dir, e2)
	det := r3.Dot(e1, h)
	if math.Abs(det) < intersectionEpsilon {
		return segmentIntersectsCoplanarTriangle(p0, p1, a, b, c)
	}

	inv := 1 / det
	s := r3.Sub(p0, a)
	u := inv * r3.Dot(s, h)
	if u < 0 || u > 1 {
		return false
	}

	q := r3.Cross(s, e1)
	v := inv * r3.Dot(dir, q)
	if v < 0 || u+v > 1 {
		return false
	}

	t := inv * r3.Dot(e2, q)
	return t >= 0 && t <= 1
}

// A segment parallel to the triangle plane only crosses it when it lies in
// the plane and hits one of the edges or starts inside.
func segmentIntersectsCoplanarTriangle(p0, p1, a, b, c r3.Vec) bool {
	n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
	if r3.Norm2(n) < intersectionEpsilon {
		return false
	}
	if math.Abs(r3.Dot(r3.Sub(p0, a), r3.Unit(n))) > 1e-9 {
		return false
	}
	if pointInTriangle(p0, a, b, c, n) || pointInTriangle(p1, a, b, c, n) {
		return true
	}
	return segmentsIntersect2D(p0, p1, a, b, n) ||
		segmentsIntersect2D(p0, p1, b, c, n) ||
		segmentsIntersect2D(p0, p1, c, a, n)
}

func pointInTriangle(p, a, b, c, n r3.Vec) bool {
	return r3.Dot(r3.Cross(r3.Sub(b, a), r3.Sub(p, a)), n) >= 0 &&
		r3.Dot(r3.Cross(r3.Sub(c, b), r3.Sub(p, b)), n) >= 0 &&
		r3.Dot(r3.Cross(r3.Sub(a, c), r3.Sub(p, c)), n) >= 0
}

func segmentsIntersect2D(p0, p1, q0, q1, n r3.Vec) bool {
	side := func(a, b, p r3.Vec) float64 {
		return r3.Dot(r3.Cross(r3.Sub(b, a), r3.Sub(p, a)), n)
	}
	d1 := side(q0, q1, p0)
	d2 := side(q0, q1, p1)
	d3 := side(p0, p1, q0)
	d4 := side(p0, p1, q1)
	return d1*d2 <= 0 && d3*d4 <= 0
}

// SegmentIntersectsPolygon reports whether the segment crosses the planar
// polygon, triangulated as a fan around its first vertex.
func SegmentIntersectsPolygon(p0, p1 r3.Vec, polygon []r3.Vec) bool {
	for i := 1; i+1 < len(polygon); i++ {
		if SegmentIntersectsTriangle(p0, p1, polygon[0], polygon[i], polygon[i+1]) {
			return true
		}
	}
	return false
}

// PointInConvexPolyhedron reports whether p lies inside the convex
// polyhedron described by its vertices and faces.
func PointInConvexPolyhedron(p r3.Vec, points []r3.Vec, faces [][]int) bool {
	if len(points) == 0 || len(faces) == 0 {
		return false
	}

	var center r3.Vec
	for _, pt := range points {
		center = r3.Add(center, pt)
	}
	center = r3.Scale(1/float64(len(points)), center)

	for _, face := range faces {
		if len(face) < 3 {
			continue
		}

		origin := points[face[0]]
		n := newellNormal(points, face)
		if r3.Dot(r3.Sub(center, origin), n) > 0 {
			n = r3.Scale(-1, n)
		}
		if r3.Dot(r3.Sub(p, origin), n) > 1e-9 {
			return false
		}
	}
	return true
}

func newellNormal(points []r3.Vec, face []int) r3.Vec {
	var n r3.Vec
	for i := range face {
		cur := points[face[i]]
		next := points[face[(i+1)%len(face)]]
		n.X += (cur.Y - next.Y) * (cur.Z + next.Z)
		n.Y += (cur.Z - next.Z) * (cur.X + next.X)
		n.Z += (cur.X - next.X) * (cur.Y + next.Y)
	}
	return n
}
