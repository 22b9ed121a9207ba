package dataset

import (
	"math"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kdlocator/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// ImageData is a raster dataset: points on a regular lattice and one cell per
// lattice interval. The cell type depends on how many dimensions are larger
// than one: vertex, line, quad or hexahedron.
type ImageData struct {
	mutex   sync.RWMutex
	dims    [3]int
	origin  r3.Vec
	spacing r3.Vec
	version uint64
}

// NewImageData returns a raster with the given point dimensions.
func NewImageData(dims [3]int, origin, spacing r3.Vec) (*ImageData, error) {
	if err := validateDimensions(dims); err != nil {
		return nil, err
	}

	return &ImageData{
		dims:    dims,
		origin:  origin,
		spacing: spacing,
		version: 1,
	}, nil
}

func validateDimensions(dims [3]int) error {
	count := 1
	for _, d := range dims {
		if d < 1 {
			return errors.New("raster dimensions must be positive").
				WithType(ErrTypeInvalidCell).
				WithTag("dimensions", dims)
		}
		if count > math.MaxInt/d {
			return errors.New("raster has too many points").
				WithType(ErrTypeInvalidCell).
				WithTag("dimensions", dims)
		}
		count *= d
	}
	return nil
}

func (img *ImageData) SetDimensions(dims [3]int) error {
	if err := validateDimensions(dims); err != nil {
		return err
	}

	img.mutex.Lock()
	defer img.mutex.Unlock()

	img.dims = dims
	img.version++
	return nil
}

func (img *ImageData) SetOrigin(origin r3.Vec) {
	img.mutex.Lock()
	defer img.mutex.Unlock()

	img.origin = origin
	img.version++
}

func (img *ImageData) SetSpacing(spacing r3.Vec) {
	img.mutex.Lock()
	defer img.mutex.Unlock()

	img.spacing = spacing
	img.version++
}

func (img *ImageData) Dimensions() [3]int {
	img.mutex.RLock()
	defer img.mutex.RUnlock()

	return img.dims
}

func (img *ImageData) Origin() r3.Vec {
	img.mutex.RLock()
	defer img.mutex.RUnlock()

	return img.origin
}

func (img *ImageData) Spacing() r3.Vec {
	img.mutex.RLock()
	defer img.mutex.RUnlock()

	return img.spacing
}

func (img *ImageData) NumberOfPoints() int {
	img.mutex.RLock()
	defer img.mutex.RUnlock()

	return img.dims[0] * img.dims[1] * img.dims[2]
}

func (img *ImageData) NumberOfCells() int {
	img.mutex.RLock()
	defer img.mutex.RUnlock()

	n := 1
	for _, d := range img.dims {
		if d > 1 {
			n *= d - 1
		}
	}
	return n
}

func (img *ImageData) Cell(id int) Cell {
	img.mutex.RLock()
	defer img.mutex.RUnlock()

	var active []geometry.Axis
	var cellDims [3]int
	for i, d := range img.dims {
		cellDims[i] = 1
		if d > 1 {
			cellDims[i] = d - 1
			active = append(active, geometry.Axes[i])
		}
	}

	ijk := [3]int{
		id % cellDims[0],
		(id / cellDims[0]) % cellDims[1],
		id / (cellDims[0] * cellDims[1]),
	}

	offsets := rasterCellOffsets[len(active)]
	points := make([]r3.Vec, len(offsets))
	for i, offset := range offsets {
		idx := ijk
		for j, a := range active {
			idx[a] += offset[j]
		}
		points[i] = img.point(idx)
	}

	c, _ := NewCell(rasterCellTypes[len(active)], points...)
	return c
}

// Point offsets along the active axes, ordered to match the cell type point
// order.
var rasterCellOffsets = [4][][3]int{
	{{0, 0, 0}},
	{{0, 0, 0}, {1, 0, 0}},
	{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
	{
		{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
		{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
	},
}

var rasterCellTypes = [4]CellType{Vertex, Line, Quad, Hexahedron}

func (img *ImageData) point(ijk [3]int) r3.Vec {
	return r3.Vec{
		X: img.origin.X + float64(ijk[0])*img.spacing.X,
		Y: img.origin.Y + float64(ijk[1])*img.spacing.Y,
		Z: img.origin.Z + float64(ijk[2])*img.spacing.Z,
	}
}

func (img *ImageData) Bounds() geometry.Bounds {
	img.mutex.RLock()
	defer img.mutex.RUnlock()

	return geometry.BoundsOf(
		img.origin,
		img.point([3]int{img.dims[0] - 1, img.dims[1] - 1, img.dims[2] - 1}),
	)
}

func (img *ImageData) Update() {
}

func (img *ImageData) GeometryVersion() uint64 {
	img.mutex.RLock()
	defer img.mutex.RUnlock()

	return img.version
}
