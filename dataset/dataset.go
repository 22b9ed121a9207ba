// Package dataset defines the geometric inputs consumed by the k-d tree and a
// few in-memory implementations of them.
package dataset

import (
	"github.com/aukilabs/kdlocator/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// DataSet is a collection of cells.
type DataSet interface {
	// Returns the number of cells.
	NumberOfCells() int

	// Returns the number of points referenced by the cells.
	NumberOfPoints() int

	// Returns the cell with the given id.
	Cell(id int) Cell

	// Returns the bounds of the points.
	Bounds() geometry.Bounds

	// Brings the dataset up to date before it is read.
	Update()

	// Returns a value that changes each time the geometry is modified.
	GeometryVersion() uint64
}

// Raster is a dataset laid out on a regular grid.
type Raster interface {
	DataSet

	Dimensions() [3]int
	Origin() r3.Vec
	Spacing() r3.Vec
}

// PointSet is a random access sequence of points.
type PointSet interface {
	Len() int
	Point(i int) r3.Vec
}

// Float32PointSet is a point set that exposes its coordinates as a
// contiguous x, y, z buffer.
type Float32PointSet interface {
	PointSet

	Float32s() []float32
}

// Points is a PointSet backed by a slice of vectors.
type Points []r3.Vec

func (p Points) Len() int {
	return len(p)
}

func (p Points) Point(i int) r3.Vec {
	return p[i]
}

// Float32Points is a PointSet backed by packed x, y, z float32 values.
type Float32Points []float32

func (p Float32Points) Len() int {
	return len(p) / 3
}

func (p Float32Points) Point(i int) r3.Vec {
	return r3.Vec{
		X: float64(p[3*i]),
		Y: float64(p[3*i+1]),
		Z: float64(p[3*i+2]),
	}
}

func (p Float32Points) Float32s() []float32 {
	return p[:3*p.Len()]
}
