package kdtree

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/pbnjay/memory"
)

const (
	// Centroid coordinates, permutation id and region id per cell.
	cellBuildBytes = 3*8 + 8 + 8

	// Locator coordinates, locator id and reverse index per point.
	pointBuildBytes = 3*4 + 8 + 8
)

var totalMemory = memory.TotalMemory

// checkMemory fails when the buffers of a build would not fit in the
// memory of the machine. Negative counts come from overflowed sizes.
func checkMemory(what string, count, bytesPerItem int) error {
	total := totalMemory()

	limit := uint64(math.MaxInt)
	if total != 0 && total < limit {
		limit = total
	}

	if count < 0 || uint64(count) > limit/uint64(bytesPerItem) {
		return errors.New("not enough memory to build the k-d tree").
			WithType(ErrTypeResourceExhausted).
			WithTag("items", what).
			WithTag("count", count).
			WithTag("total_bytes", total)
	}
	return nil
}
