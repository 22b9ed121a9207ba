package dataset

import (
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kdlocator/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// UnstructuredGrid is a dataset of explicit cells referencing a shared point
// list.
type UnstructuredGrid struct {
	mutex   sync.RWMutex
	points  []r3.Vec
	cells   []cellRecord
	version uint64
}

type cellRecord struct {
	cellType CellType
	ids      []int
}

// NewUnstructuredGrid returns a grid without cells over the given points.
func NewUnstructuredGrid(points []r3.Vec) *UnstructuredGrid {
	return &UnstructuredGrid{
		points:  points,
		version: 1,
	}
}

// InsertNextCell appends a cell made of the points with the given ids and
// returns its cell id.
func (g *UnstructuredGrid) InsertNextCell(t CellType, ids ...int) (int, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if t == EmptyCell || t.NumberOfPoints() != len(ids) {
		return -1, errors.New("wrong number of cell points").
			WithType(ErrTypeInvalidCell).
			WithTag("cell_type", t.String()).
			WithTag("points", len(ids))
	}

	for _, id := range ids {
		if id < 0 || id >= len(g.points) {
			return -1, errors.New("cell references an unknown point").
				WithType(ErrTypeInvalidCell).
				WithTag("point_id", id)
		}
	}

	g.cells = append(g.cells, cellRecord{
		cellType: t,
		ids:      append([]int(nil), ids...),
	})
	g.version++
	return len(g.cells) - 1, nil
}

// SetPoint moves the point with the given id.
func (g *UnstructuredGrid) SetPoint(id int, p r3.Vec) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if id < 0 || id >= len(g.points) {
		return errors.New("unknown point").
			WithType(ErrTypeInvalidCell).
			WithTag("point_id", id)
	}

	g.points[id] = p
	g.version++
	return nil
}

// Modified marks the geometry as changed.
func (g *UnstructuredGrid) Modified() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.version++
}

func (g *UnstructuredGrid) NumberOfCells() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	return len(g.cells)
}

func (g *UnstructuredGrid) NumberOfPoints() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	return len(g.points)
}

func (g *UnstructuredGrid) Cell(id int) Cell {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	record := g.cells[id]
	points := make([]r3.Vec, len(record.ids))
	for i, pid := range record.ids {
		points[i] = g.points[pid]
	}

	c, _ := NewCell(record.cellType, points...)
	return c
}

func (g *UnstructuredGrid) Bounds() geometry.Bounds {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	return geometry.BoundsOf(g.points...)
}

func (g *UnstructuredGrid) Update() {
}

func (g *UnstructuredGrid) GeometryVersion() uint64 {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	return g.version
}
