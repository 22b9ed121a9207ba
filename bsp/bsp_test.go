package bsp

import (
	"math"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kdlocator/dataset"
	"github.com/aukilabs/kdlocator/geometry"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func newTestCuts(t *testing.T) *Cuts {
	cuts, err := NewCuts([]Node{
		{Bounds: geometry.NewBounds(0, 2, 0, 1, 0, 1), Dim: geometry.X, Coord: 1, Left: 1, Right: 2},
		{Left: -1, Right: -1},
		{Dim: geometry.Y, Coord: 0.5, Left: 3, Right: 4},
		{Left: -1, Right: -1},
		{Left: -1, Right: -1},
	})
	require.NoError(t, err)
	return cuts
}

func TestNewCuts(t *testing.T) {
	t.Run("valid tree", func(t *testing.T) {
		cuts := newTestCuts(t)
		require.Equal(t, 3, cuts.NumberOfRegions())
		require.Equal(t, 2, cuts.NumberOfCuts())
		require.Equal(t, 5, cuts.NumberOfNodes())

		b, err := cuts.RegionBounds(0)
		require.NoError(t, err)
		require.Equal(t, geometry.NewBounds(0, 1, 0, 1, 0, 1), b)

		b, err = cuts.RegionBounds(2)
		require.NoError(t, err)
		require.Equal(t, geometry.NewBounds(1, 2, 0.5, 1, 0, 1), b)

		minID, maxID := cuts.RegionRange(2)
		require.Equal(t, 1, minID)
		require.Equal(t, 2, maxID)
		require.Equal(t, -1, cuts.RegionID(0))
	})

	t.Run("out of range region", func(t *testing.T) {
		_, err := newTestCuts(t).RegionBounds(3)
		require.Error(t, err)
		require.Equal(t, ErrTypeRegionOutOfRange, errors.Type(err))
	})

	t.Run("no nodes", func(t *testing.T) {
		_, err := NewCuts(nil)
		require.Equal(t, ErrTypeNoCuts, errors.Type(err))
	})

	t.Run("single child", func(t *testing.T) {
		_, err := NewCuts([]Node{
			{Bounds: geometry.NewBounds(0, 1, 0, 1, 0, 1), Dim: geometry.X, Coord: 0.5, Left: 1, Right: -1},
			{Left: -1, Right: -1},
		})
		require.Equal(t, ErrTypeInvalidCuts, errors.Type(err))
	})

	t.Run("cut outside of bounds", func(t *testing.T) {
		_, err := NewCuts([]Node{
			{Bounds: geometry.NewBounds(0, 1, 0, 1, 0, 1), Dim: geometry.X, Coord: 2, Left: 1, Right: 2},
			{Left: -1, Right: -1},
			{Left: -1, Right: -1},
		})
		require.Equal(t, ErrTypeInvalidCuts, errors.Type(err))
	})

	t.Run("cut without coordinate", func(t *testing.T) {
		_, err := NewCuts([]Node{
			{Bounds: geometry.NewBounds(0, 1, 0, 1, 0, 1), Dim: geometry.X, Coord: math.NaN(), Left: 1, Right: 2},
			{Left: -1, Right: -1},
			{Left: -1, Right: -1},
		})
		require.Equal(t, ErrTypeInvalidCuts, errors.Type(err))
	})

	t.Run("node referenced twice", func(t *testing.T) {
		_, err := NewCuts([]Node{
			{Bounds: geometry.NewBounds(0, 1, 0, 1, 0, 1), Dim: geometry.X, Coord: 0.5, Left: 1, Right: 1},
			{Left: -1, Right: -1},
		})
		require.Equal(t, ErrTypeInvalidCuts, errors.Type(err))
	})

	t.Run("unreachable node", func(t *testing.T) {
		_, err := NewCuts([]Node{
			{Bounds: geometry.NewBounds(0, 1, 0, 1, 0, 1), Left: -1, Right: -1},
			{Left: -1, Right: -1},
		})
		require.Equal(t, ErrTypeInvalidCuts, errors.Type(err))
	})
}

func TestCutsJSON(t *testing.T) {
	cuts := newTestCuts(t)

	b, err := json.Marshal(cuts)
	require.NoError(t, err)

	var decoded Cuts
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.True(t, cuts.Equals(&decoded, 0))
	require.Equal(t, cuts.NumberOfRegions(), decoded.NumberOfRegions())

	other, err := NewCuts([]Node{
		{Bounds: geometry.NewBounds(0, 2, 0, 1, 0, 1), Dim: geometry.X, Coord: 1.5, Left: 1, Right: 2},
		{Left: -1, Right: -1},
		{Left: -1, Right: -1},
	})
	require.NoError(t, err)
	require.False(t, cuts.Equals(other, 0))
}

func TestIntersections(t *testing.T) {
	in := NewIntersections(newTestCuts(t))

	t.Run("box", func(t *testing.T) {
		regions, err := in.IntersectsBoxRegions(geometry.NewBounds(0.5, 1.5, 0, 0.2, 0, 1))
		require.NoError(t, err)
		require.Equal(t, []int{0, 1}, regions)

		regions, err = in.IntersectsBoxRegions(geometry.NewBounds(0.5, 1.5, 0, 0.2, 0, 1), 1, 2)
		require.NoError(t, err)
		require.Equal(t, []int{1}, regions)

		ok, err := in.IntersectsBox(2, geometry.NewBounds(0.5, 1.5, 0, 0.2, 0, 1))
		require.NoError(t, err)
		require.False(t, ok)

		_, err = in.IntersectsBox(7, geometry.NewBounds(0, 1, 0, 1, 0, 1))
		require.Equal(t, ErrTypeRegionOutOfRange, errors.Type(err))
	})

	t.Run("sphere", func(t *testing.T) {
		regions, err := in.IntersectsSphere2Regions(r3.Vec{X: 1.5, Y: 0.9, Z: 0.5}, 0.01)
		require.NoError(t, err)
		require.Equal(t, []int{2}, regions)

		ok, err := in.IntersectsSphere2(0, r3.Vec{X: 1.5, Y: 0.9, Z: 0.5}, 0.3)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("cell", func(t *testing.T) {
		triangle, err := dataset.NewCell(dataset.Triangle,
			r3.Vec{X: 0.5, Y: 0.9, Z: 0.5},
			r3.Vec{X: 1.5, Y: 0.9, Z: 0.5},
			r3.Vec{X: 1.5, Y: 0.95, Z: 0.5},
		)
		require.NoError(t, err)

		regions, err := in.IntersectsCellRegions(triangle, 2)
		require.NoError(t, err)
		require.Equal(t, []int{0, 2}, regions)

		ok, err := in.IntersectsCell(1, triangle, 2)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("cell enclosing a region", func(t *testing.T) {
		tetra, err := dataset.NewCell(dataset.Tetra,
			r3.Vec{X: -10, Y: -10, Z: -10},
			r3.Vec{X: 30, Y: -10, Z: -10},
			r3.Vec{X: -10, Y: 30, Z: -10},
			r3.Vec{X: -10, Y: -10, Z: 30},
		)
		require.NoError(t, err)

		ok, err := in.IntersectsCell(1, tetra, -1)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("data bounds", func(t *testing.T) {
		nodes := newTestCuts(t).Nodes()
		nodes[1].DataBounds = geometry.NewBounds(0.1, 0.2, 0.1, 0.2, 0.1, 0.2)

		cuts, err := NewCuts(nodes)
		require.NoError(t, err)

		box := geometry.NewBounds(0.5, 0.6, 0.5, 0.6, 0.5, 0.6)
		ok, err := NewIntersections(cuts).IntersectsBox(0, box)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = NewIntersections(cuts).WithDataBounds(true).IntersectsBox(0, box)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("no cuts", func(t *testing.T) {
		_, err := NewIntersections(nil).IntersectsBoxRegions(geometry.NewBounds(0, 1, 0, 1, 0, 1))
		require.Equal(t, ErrTypeNoCuts, errors.Type(err))
	})
}
