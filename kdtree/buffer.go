package kdtree

import (
	"github.com/aukilabs/kdlocator/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

type scalar interface {
	~float32 | ~float64
}

// pointBuffer holds packed x, y, z coordinates and the id of each point.
// Both slices are permuted together while the tree is divided.
type pointBuffer[T scalar] struct {
	coords []T
	ids    []int
}

func newPointBuffer[T scalar](n int) pointBuffer[T] {
	return pointBuffer[T]{
		coords: make([]T, 3*n),
		ids:    make([]int, n),
	}
}

func (b pointBuffer[T]) Len() int {
	return len(b.ids)
}

func (b pointBuffer[T]) value(i int, dim geometry.Axis) T {
	return b.coords[3*i+int(dim)]
}

func (b pointBuffer[T]) point(i int) r3.Vec {
	return r3.Vec{
		X: float64(b.coords[3*i]),
		Y: float64(b.coords[3*i+1]),
		Z: float64(b.coords[3*i+2]),
	}
}

func (b pointBuffer[T]) set(i int, p r3.Vec) {
	b.coords[3*i] = T(p.X)
	b.coords[3*i+1] = T(p.Y)
	b.coords[3*i+2] = T(p.Z)
}

func (b pointBuffer[T]) swap(i, j int) {
	ci, cj := b.coords[3*i:3*i+3], b.coords[3*j:3*j+3]
	ci[0], cj[0] = cj[0], ci[0]
	ci[1], cj[1] = cj[1], ci[1]
	ci[2], cj[2] = cj[2], ci[2]
	b.ids[i], b.ids[j] = b.ids[j], b.ids[i]
}

func (b pointBuffer[T]) slice(lo, hi int) pointBuffer[T] {
	return pointBuffer[T]{
		coords: b.coords[3*lo : 3*hi],
		ids:    b.ids[lo:hi],
	}
}

// bounds returns the tight bounds of the points.
func (b pointBuffer[T]) bounds() geometry.Bounds {
	bounds := geometry.EmptyBounds()
	for i := range b.ids {
		bounds = bounds.Add(b.point(i))
	}
	return bounds
}
