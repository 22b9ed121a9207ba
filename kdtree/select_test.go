package kdtree

import (
	"math"
	"slices"
	"testing"

	"github.com/aukilabs/kdlocator/geometry"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastrand"
	"gonum.org/v1/gonum/spatial/r3"
)

func requireSplitAt[T scalar](t *testing.T, buf pointBuffer[T], dim geometry.Axis, mid int, coord float64) {
	for i := 0; i < buf.Len(); i++ {
		v := float64(buf.value(i, dim))
		if i < mid {
			require.Less(t, v, coord, "index %d", i)
		} else {
			require.GreaterOrEqual(t, v, coord, "index %d", i)
		}
	}
}

func TestSelectMedian(t *testing.T) {
	t.Run("random values", func(t *testing.T) {
		var rng fastrand.RNG
		rng.Seed(7)

		for _, n := range []int{1, 2, 3, 17, 600, 601, 1000, 4999, 10000} {
			for _, distinct := range []uint32{3, 50, 1 << 20} {
				buf := newPointBuffer[float32](n)
				for i := 0; i < n; i++ {
					buf.set(i, r3.Vec{
						X: float64(rng.Uint32n(distinct)),
						Y: float64(rng.Uint32n(distinct)),
						Z: float64(rng.Uint32n(distinct)),
					})
					buf.ids[i] = i
				}
				original := slices.Clone(buf.coords)

				values := make([]float32, n)
				for i := range values {
					values[i] = buf.value(i, geometry.Y)
				}
				slices.Sort(values)

				mid, coord, ok := selectMedian(buf, geometry.Y)
				if !ok {
					require.Equal(t, values[0], values[n/2])
					continue
				}

				require.Greater(t, mid, 0)
				require.LessOrEqual(t, mid, n/2)
				requireSplitAt(t, buf, geometry.Y, mid, coord)

				for i, id := range buf.ids {
					require.Equal(t, original[3*id:3*id+3], buf.coords[3*i:3*i+3])
				}
			}
		}
	})

	t.Run("duplicates at the median", func(t *testing.T) {
		buf := newPointBuffer[float64](6)
		for i, x := range []float64{2, 3, 2, 1, 2, 2} {
			buf.set(i, r3.Vec{X: x})
			buf.ids[i] = i
		}

		mid, coord, ok := selectMedian(buf, geometry.X)
		require.True(t, ok)
		require.Equal(t, 1, mid)
		require.Equal(t, 1.5, coord)
		require.Equal(t, 3, buf.ids[0])
	})

	t.Run("all values equal", func(t *testing.T) {
		buf := newPointBuffer[float32](10)
		for i := range buf.ids {
			buf.set(i, r3.Vec{X: 4})
		}

		_, _, ok := selectMedian(buf, geometry.X)
		require.False(t, ok)
	})

	t.Run("adjacent values", func(t *testing.T) {
		lo := 0.1
		hi := math.Nextafter(lo, 1)

		buf := newPointBuffer[float64](2)
		buf.set(0, r3.Vec{Z: hi})
		buf.set(1, r3.Vec{Z: lo})

		mid, coord, ok := selectMedian(buf, geometry.Z)
		require.True(t, ok)
		require.Equal(t, 1, mid)
		requireSplitAt(t, buf, geometry.Z, mid, coord)
	})
}

func TestSelectCutDirection(t *testing.T) {
	b := geometry.NewBounds(0, 1, 0, 3, 0, 3)

	require.Equal(t, geometry.Y, selectCutDirection(b, PartitionAll))
	require.Equal(t, geometry.Z, selectCutDirection(b, OmitY))
	require.Equal(t, geometry.X, selectCutDirection(b, OmitYZ))
	require.Equal(t, geometry.AxisNone, selectCutDirection(b, NoPartitioning))
}

func TestDivideTest(t *testing.T) {
	o := defaultOptions()
	require.True(t, o.divideTest(200, 0))
	require.False(t, o.divideTest(199, 0))
	require.False(t, o.divideTest(1000, DefaultMaxLevel))

	o = defaultOptions()
	WithMinCells(0)(&o)
	WithNumberOfRegionsOrLess(4)(&o)
	require.True(t, o.divideTest(2, 1))
	require.False(t, o.divideTest(2, 2))

	o = defaultOptions()
	WithMinCells(0)(&o)
	WithNumberOfRegionsOrMore(3)(&o)
	require.True(t, o.divideTest(2, 1))
	require.False(t, o.divideTest(2, 2))
	require.False(t, o.divideTest(1, 0))
}
