package dataset

import (
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kdlocator/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	ErrTypeInvalidCell = "invalid-cell"
)

// CellType is the topology of a cell.
type CellType int

const (
	EmptyCell CellType = iota
	Vertex
	Line
	Triangle
	Quad
	Tetra
	Hexahedron
)

var cellTypeNames = map[CellType]string{
	EmptyCell:  "empty",
	Vertex:     "vertex",
	Line:       "line",
	Triangle:   "triangle",
	Quad:       "quad",
	Tetra:      "tetra",
	Hexahedron: "hexahedron",
}

func (t CellType) String() string {
	if name, ok := cellTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseCellType returns the cell type with the given name.
func ParseCellType(s string) (CellType, error) {
	for t, name := range cellTypeNames {
		if t != EmptyCell && name == strings.ToLower(s) {
			return t, nil
		}
	}
	return EmptyCell, errors.New("unknown cell type").
		WithType(ErrTypeInvalidCell).
		WithTag("cell_type", s)
}

// NumberOfPoints returns the number of points a cell of this type is made of.
func (t CellType) NumberOfPoints() int {
	return cellTopologies[t].points
}

// Cell is a primitive of a dataset.
type Cell interface {
	Type() CellType

	// Returns 0 for vertices, 1 for lines, 2 for surfaces and 3 for volumes.
	Dimension() int

	// Returns the world coordinates of the cell points.
	Points() []r3.Vec

	// Returns the edges as pairs of indices into Points.
	Edges() [][2]int

	// Returns the boundary faces as lists of indices into Points. Surface
	// cells return themselves.
	Faces() [][]int

	// Returns the parametric center of the cell.
	ParametricCenter() (subID int, pcoords r3.Vec)

	// Maps parametric coordinates to world coordinates and returns the
	// interpolation weights of the cell points.
	EvaluateLocation(subID int, pcoords r3.Vec) (r3.Vec, []float64)
}

// Centroid returns the parametric center of the cell in world coordinates.
func Centroid(c Cell) r3.Vec {
	subID, pcoords := c.ParametricCenter()
	x, _ := c.EvaluateLocation(subID, pcoords)
	return x
}

// CellBounds returns the bounds of the cell points.
func CellBounds(c Cell) geometry.Bounds {
	return geometry.BoundsOf(c.Points()...)
}

type cellTopology struct {
	points    int
	dimension int
	center    []float64
	edges     [][2]int
	faces     [][]int
	weights   func(r, s, t float64) []float64
}

var cellTopologies = map[CellType]cellTopology{
	EmptyCell: {
		weights: func(r, s, t float64) []float64 { return nil },
	},
	Vertex: {
		points:    1,
		dimension: 0,
		center:    []float64{0, 0, 0},
		weights:   func(r, s, t float64) []float64 { return []float64{1} },
	},
	Line: {
		points:    2,
		dimension: 1,
		center:    []float64{0.5, 0, 0},
		edges:     [][2]int{{0, 1}},
		weights: func(r, s, t float64) []float64 {
			return []float64{1 - r, r}
		},
	},
	Triangle: {
		points:    3,
		dimension: 2,
		center:    []float64{1.0 / 3, 1.0 / 3, 0},
		edges:     [][2]int{{0, 1}, {1, 2}, {2, 0}},
		faces:     [][]int{{0, 1, 2}},
		weights: func(r, s, t float64) []float64 {
			return []float64{1 - r - s, r, s}
		},
	},
	Quad: {
		points:    4,
		dimension: 2,
		center:    []float64{0.5, 0.5, 0},
		edges:     [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}},
		faces:     [][]int{{0, 1, 2, 3}},
		weights: func(r, s, t float64) []float64 {
			return []float64{
				(1 - r) * (1 - s),
				r * (1 - s),
				r * s,
				(1 - r) * s,
			}
		},
	},
	Tetra: {
		points:    4,
		dimension: 3,
		center:    []float64{0.25, 0.25, 0.25},
		edges:     [][2]int{{0, 1}, {1, 2}, {2, 0}, {0, 3}, {1, 3}, {2, 3}},
		faces:     [][]int{{0, 1, 3}, {1, 2, 3}, {2, 0, 3}, {0, 2, 1}},
		weights: func(r, s, t float64) []float64 {
			return []float64{1 - r - s - t, r, s, t}
		},
	},
	Hexahedron: {
		points:    8,
		dimension: 3,
		center:    []float64{0.5, 0.5, 0.5},
		edges: [][2]int{
			{0, 1}, {1, 2}, {3, 2}, {0, 3},
			{4, 5}, {5, 6}, {7, 6}, {4, 7},
			{0, 4}, {1, 5}, {3, 7}, {2, 6},
		},
		faces: [][]int{
			{0, 4, 7, 3}, {1, 2, 6, 5},
			{0, 1, 5, 4}, {3, 7, 6, 2},
			{0, 3, 2, 1}, {4, 5, 6, 7},
		},
		weights: func(r, s, t float64) []float64 {
			rm, sm, tm := 1-r, 1-s, 1-t
			return []float64{
				rm * sm * tm,
				r * sm * tm,
				r * s * tm,
				rm * s * tm,
				rm * sm * t,
				r * sm * t,
				r * s * t,
				rm * s * t,
			}
		},
	},
}

// NewCell returns a cell of the given type made of the given points.
func NewCell(t CellType, points ...r3.Vec) (Cell, error) {
	topology, ok := cellTopologies[t]
	if !ok || t == EmptyCell {
		return nil, errors.New("unsupported cell type").
			WithType(ErrTypeInvalidCell).
			WithTag("cell_type", t.String())
	}

	if len(points) != topology.points {
		return nil, errors.New("wrong number of cell points").
			WithType(ErrTypeInvalidCell).
			WithTag("cell_type", t.String()).
			WithTag("expected", topology.points).
			WithTag("points", len(points))
	}

	return &cell{
		cellType: t,
		topology: topology,
		points:   points,
	}, nil
}

type cell struct {
	cellType CellType
	topology cellTopology
	points   []r3.Vec
}

func (c *cell) Type() CellType {
	return c.cellType
}

func (c *cell) Dimension() int {
	return c.topology.dimension
}

func (c *cell) Points() []r3.Vec {
	return c.points
}

func (c *cell) Edges() [][2]int {
	return c.topology.edges
}

func (c *cell) Faces() [][]int {
	return c.topology.faces
}

func (c *cell) ParametricCenter() (int, r3.Vec) {
	center := c.topology.center
	return 0, r3.Vec{X: center[0], Y: center[1], Z: center[2]}
}

func (c *cell) EvaluateLocation(subID int, pcoords r3.Vec) (r3.Vec, []float64) {
	weights := c.topology.weights(pcoords.X, pcoords.Y, pcoords.Z)

	var x r3.Vec
	for i, w := range weights {
		x = r3.Add(x, r3.Scale(w, c.points[i]))
	}
	return x, weights
}
