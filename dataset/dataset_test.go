package dataset

import (
	"math"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kdlocator/geometry"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestCentroid(t *testing.T) {
	t.Run("triangle", func(t *testing.T) {
		c, err := NewCell(Triangle, r3.Vec{}, r3.Vec{X: 3}, r3.Vec{Y: 3})
		require.NoError(t, err)
		require.True(t, geometry.VecEqualWithEpsilon(r3.Vec{X: 1, Y: 1}, Centroid(c), 1e-12))
	})

	t.Run("hexahedron", func(t *testing.T) {
		img, err := NewImageData([3]int{2, 2, 2}, r3.Vec{}, r3.Vec{X: 1, Y: 2, Z: 4})
		require.NoError(t, err)
		c := img.Cell(0)
		require.Equal(t, Hexahedron, c.Type())
		require.Equal(t, r3.Vec{X: 0.5, Y: 1, Z: 2}, Centroid(c))
	})

	t.Run("weights sum to one", func(t *testing.T) {
		c, err := NewCell(Tetra, r3.Vec{}, r3.Vec{X: 1}, r3.Vec{Y: 1}, r3.Vec{Z: 1})
		require.NoError(t, err)
		subID, pcoords := c.ParametricCenter()
		_, weights := c.EvaluateLocation(subID, pcoords)

		var sum float64
		for _, w := range weights {
			sum += w
		}
		require.InDelta(t, 1, sum, 1e-12)
	})
}

func TestNewCell(t *testing.T) {
	_, err := NewCell(Quad, r3.Vec{})
	require.Error(t, err)
	require.Equal(t, ErrTypeInvalidCell, errors.Type(err))

	ct, err := ParseCellType("Hexahedron")
	require.NoError(t, err)
	require.Equal(t, Hexahedron, ct)

	_, err = ParseCellType("wedge")
	require.Error(t, err)
}

func TestUnstructuredGrid(t *testing.T) {
	g := NewUnstructuredGrid([]r3.Vec{{}, {X: 1}, {Y: 1}, {X: 1, Y: 1}})

	id, err := g.InsertNextCell(Triangle, 0, 1, 2)
	require.NoError(t, err)
	require.Equal(t, 0, id)

	_, err = g.InsertNextCell(Triangle, 0, 1, 9)
	require.Error(t, err)

	_, err = g.InsertNextCell(Line, 0)
	require.Error(t, err)

	version := g.GeometryVersion()
	require.NoError(t, g.SetPoint(3, r3.Vec{X: 2, Y: 2}))
	require.NotEqual(t, version, g.GeometryVersion())
	require.Equal(t, geometry.NewBounds(0, 2, 0, 2, 0, 0), g.Bounds())

	require.Equal(t, 1, g.NumberOfCells())
	require.Equal(t, 4, g.NumberOfPoints())
	require.Equal(t, []r3.Vec{{}, {X: 1}, {Y: 1}}, g.Cell(0).Points())
}

func TestImageData(t *testing.T) {
	t.Run("degenerate dimensions", func(t *testing.T) {
		img, err := NewImageData([3]int{3, 1, 2}, r3.Vec{X: 1}, r3.Vec{X: 1, Y: 1, Z: 1})
		require.NoError(t, err)
		require.Equal(t, 2, img.NumberOfCells())
		require.Equal(t, 6, img.NumberOfPoints())

		c := img.Cell(1)
		require.Equal(t, Quad, c.Type())
		require.Equal(t, []r3.Vec{
			{X: 2, Y: 0, Z: 0},
			{X: 3, Y: 0, Z: 0},
			{X: 3, Y: 0, Z: 1},
			{X: 2, Y: 0, Z: 1},
		}, c.Points())
		require.Equal(t, geometry.NewBounds(1, 3, 0, 0, 0, 1), img.Bounds())
	})

	t.Run("invalid dimensions", func(t *testing.T) {
		_, err := NewImageData([3]int{0, 1, 1}, r3.Vec{}, r3.Vec{})
		require.Error(t, err)
	})

	t.Run("too many points", func(t *testing.T) {
		_, err := NewImageData([3]int{2097153, 2097153, 2097153}, r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
		require.Equal(t, ErrTypeInvalidCell, errors.Type(err))

		img, err := NewImageData([3]int{2, 2, 2}, r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
		require.NoError(t, err)
		require.Error(t, img.SetDimensions([3]int{math.MaxInt, 2, 1}))
		require.Equal(t, [3]int{2, 2, 2}, img.Dimensions())
	})

	t.Run("version changes", func(t *testing.T) {
		img, err := NewImageData([3]int{2, 2, 2}, r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
		require.NoError(t, err)
		version := img.GeometryVersion()
		img.SetSpacing(r3.Vec{X: 2, Y: 2, Z: 2})
		require.NotEqual(t, version, img.GeometryVersion())
	})
}

func TestFloat32Points(t *testing.T) {
	pts := Float32Points{0, 1, 2, 3, 4, 5, 6}
	require.Equal(t, 2, pts.Len())
	require.Equal(t, r3.Vec{X: 3, Y: 4, Z: 5}, pts.Point(1))
	require.Len(t, pts.Float32s(), 6)
}
