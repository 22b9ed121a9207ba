package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestEqualWithEpsilon(t *testing.T) {
	require.True(t, EqualWithEpsilon(0.1, 0.2, 0.11))
	require.False(t, EqualWithEpsilon(0.1, 0.3, 0.11))
}

func TestCoord(t *testing.T) {
	v := r3.Vec{X: 1, Y: 2, Z: 3}
	require.Equal(t, 1.0, Coord(v, X))
	require.Equal(t, 2.0, Coord(v, Y))
	require.Equal(t, 3.0, Coord(v, Z))
	require.Equal(t, r3.Vec{X: 1, Y: 5, Z: 3}, WithCoord(v, Y, 5))
}

func TestSegmentIntersectsBox(t *testing.T) {
	box := NewBounds(0, 1, 0, 1, 0, 1)

	t.Run("crossing segment", func(t *testing.T) {
		require.True(t, SegmentIntersectsBox(r3.Vec{X: -1, Y: 0.5, Z: 0.5}, r3.Vec{X: 2, Y: 0.5, Z: 0.5}, box))
	})

	t.Run("segment inside", func(t *testing.T) {
		require.True(t, SegmentIntersectsBox(r3.Vec{X: 0.2, Y: 0.2, Z: 0.2}, r3.Vec{X: 0.3, Y: 0.3, Z: 0.3}, box))
	})

	t.Run("segment passing by", func(t *testing.T) {
		require.False(t, SegmentIntersectsBox(r3.Vec{X: -1, Y: 2, Z: 0.5}, r3.Vec{X: 2, Y: 2, Z: 0.5}, box))
	})

	t.Run("segment stopping short", func(t *testing.T) {
		require.False(t, SegmentIntersectsBox(r3.Vec{X: -2, Y: 0.5, Z: 0.5}, r3.Vec{X: -1, Y: 0.5, Z: 0.5}, box))
	})
}

func TestSegmentIntersectsTriangle(t *testing.T) {
	a := r3.Vec{X: 0, Y: 0, Z: 0}
	b := r3.Vec{X: 1, Y: 0, Z: 0}
	c := r3.Vec{X: 0, Y: 1, Z: 0}

	require.True(t, SegmentIntersectsTriangle(r3.Vec{X: 0.2, Y: 0.2, Z: -1}, r3.Vec{X: 0.2, Y: 0.2, Z: 1}, a, b, c))
	require.False(t, SegmentIntersectsTriangle(r3.Vec{X: 0.8, Y: 0.8, Z: -1}, r3.Vec{X: 0.8, Y: 0.8, Z: 1}, a, b, c))
	require.False(t, SegmentIntersectsTriangle(r3.Vec{X: 0.2, Y: 0.2, Z: 0.5}, r3.Vec{X: 0.2, Y: 0.2, Z: 1}, a, b, c))
	require.True(t, SegmentIntersectsTriangle(r3.Vec{X: -1, Y: 0.2, Z: 0}, r3.Vec{X: 2, Y: 0.2, Z: 0}, a, b, c))
}

func TestPointInConvexPolyhedron(t *testing.T) {
	points := []r3.Vec{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
		{X: 0, Y: 0, Z: 1},
	}
	faces := [][]int{{0, 1, 3}, {1, 2, 3}, {2, 0, 3}, {0, 2, 1}}

	require.True(t, PointInConvexPolyhedron(r3.Vec{X: 0.1, Y: 0.1, Z: 0.1}, points, faces))
	require.False(t, PointInConvexPolyhedron(r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, points, faces))
	require.False(t, PointInConvexPolyhedron(r3.Vec{X: -0.1, Y: 0.1, Z: 0.1}, points, faces))
}

func TestBounds(t *testing.T) {
	b := NewBounds(0, 2, 0, 1, 0, 4)

	t.Run("extent", func(t *testing.T) {
		require.Equal(t, 2.0, b.Extent(X))
		require.Equal(t, 4.0, b.MaxWidth())
		require.Equal(t, r3.Vec{X: 1, Y: 0.5, Z: 2}, b.Center())
	})

	t.Run("half open containment", func(t *testing.T) {
		require.True(t, b.ContainsPoint(r3.Vec{X: 0, Y: 0, Z: 0}))
		require.False(t, b.ContainsPoint(r3.Vec{X: 2, Y: 0.5, Z: 1}))
		require.True(t, b.ContainsPointClosed(r3.Vec{X: 2, Y: 0.5, Z: 1}))
	})

	t.Run("split", func(t *testing.T) {
		lower, upper := b.Split(X, 0.5)
		require.Equal(t, 0.5, lower.Hi(X))
		require.Equal(t, 0.5, upper.Lo(X))
		require.Equal(t, b.Union(lower), b)
		require.Equal(t, lower.Union(upper), b)
	})

	t.Run("distance", func(t *testing.T) {
		require.Equal(t, 0.0, b.Distance2(r3.Vec{X: 1, Y: 0.5, Z: 1}))
		require.Equal(t, 1.0, b.Distance2(r3.Vec{X: 3, Y: 0.5, Z: 1}))
		require.InDelta(t, 0.01, b.Distance2ToBoundary(r3.Vec{X: 1, Y: 0.9, Z: 2}), 1e-12)
	})

	t.Run("inner boundary ignores outer faces", func(t *testing.T) {
		outer := NewBounds(0, 4, 0, 1, 0, 4)
		p := r3.Vec{X: 1.5, Y: 0.9, Z: 2}
		require.InDelta(t, 0.25, b.Distance2ToInnerBoundary(p, outer), 1e-12)
		require.True(t, math.IsInf(outer.Distance2ToInnerBoundary(p, outer), 1))
	})

	t.Run("sphere", func(t *testing.T) {
		require.True(t, b.IntersectsSphere2(r3.Vec{X: 3, Y: 0, Z: 0}, 1))
		require.False(t, b.IntersectsSphere2(r3.Vec{X: 3, Y: 0, Z: 0}, 0.5))
		require.True(t, b.ContainedInSphere2(r3.Vec{X: 1, Y: 0.5, Z: 2}, 100))
	})

	t.Run("empty", func(t *testing.T) {
		require.True(t, EmptyBounds().IsEmpty())
		require.Equal(t, b, EmptyBounds().Union(b))
		require.Equal(t, NewBounds(0, 1, -1, 2, 0, 0), BoundsOf(r3.Vec{X: 0, Y: 2}, r3.Vec{X: 1, Y: -1}))
	})
}
