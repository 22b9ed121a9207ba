package kdtree

import (
	"math"

	"github.com/aukilabs/kdlocator/geometry"
)

// Above this many values, floydRivest narrows the search range on a sample
// before partitioning.
const selectSampleThreshold = 600

// floydRivest rearranges b[left:right+1] so that the value at index k along
// dim is the one a sort would put there, values before it are not greater
// and values after it are not smaller.
func floydRivest[T scalar](b pointBuffer[T], dim geometry.Axis, left, right, k int) {
	for right > left {
		if right-left > selectSampleThreshold {
			n := float64(right - left + 1)
			m := float64(k - left + 1)
			z := math.Log(n)
			s := 0.5 * math.Exp(2*z/3)
			sd := 0.5 * math.Sqrt(z*s*(n-s)/n)
			if m-n/2 < 0 {
				sd = -sd
			}
			newLeft := max(left, int(math.Floor(float64(k)-m*s/n+sd)))
			newRight := min(right, int(math.Floor(float64(k)+(n-m)*s/n+sd)))
			floydRivest(b, dim, newLeft, newRight, k)
		}

		t := b.value(k, dim)
		i, j := left, right

		b.swap(left, k)
		if b.value(right, dim) > t {
			b.swap(left, right)
		}

		for i < j {
			b.swap(i, j)
			i++
			j--
			for b.value(i, dim) < t {
				i++
			}
			for b.value(j, dim) > t {
				j--
			}
		}

		if b.value(left, dim) == t {
			b.swap(left, j)
		} else {
			j++
			b.swap(j, right)
		}

		if j <= k {
			left = j + 1
		}
		if k <= j {
			right = j - 1
		}
	}
}

// selectMedian partitions b along dim around its median. Every point before
// the returned index has a value strictly lower than coord and every point
// from it on has a value greater or equal. ok is false when the points
// cannot be separated, which happens when the median is also the minimum.
func selectMedian[T scalar](b pointBuffer[T], dim geometry.Axis) (mid int, coord float64, ok bool) {
	n := b.Len()
	if n < 2 {
		return 0, 0, false
	}

	mid = n / 2
	floydRivest(b, dim, 0, n-1, mid)
	t := b.value(mid, dim)

	// Gather the values equal to the median right before it so that the
	// division index can be rolled back to its first occurrence.
	first := mid
	for i := mid - 1; i >= 0; i-- {
		if b.value(i, dim) == t {
			first--
			b.swap(i, first)
		}
	}
	mid = first

	if mid == 0 {
		return 0, 0, false
	}

	leftMax := b.value(0, dim)
	for i := 1; i < mid; i++ {
		leftMax = max(leftMax, b.value(i, dim))
	}

	lo, hi := float64(leftMax), float64(t)
	coord = lo/2 + hi/2
	if coord <= lo || coord > hi {
		coord = hi
	}
	return mid, coord, true
}
