package kdtree

import (
	"github.com/aukilabs/kdlocator/dataset"
	"github.com/aukilabs/kdlocator/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// fingerprint records what the datasets looked like at build time.
type fingerprint []datasetFingerprint

type datasetFingerprint struct {
	set            dataset.DataSet
	version        uint64
	numberOfPoints int
	numberOfCells  int
	bounds         geometry.Bounds
	raster         bool
	dimensions     [3]int
	origin         r3.Vec
	spacing        r3.Vec
}

func takeFingerprint(sets []dataset.DataSet) fingerprint {
	f := make(fingerprint, len(sets))
	for i, set := range sets {
		f[i] = fingerprintOf(set)
	}
	return f
}

func fingerprintOf(set dataset.DataSet) datasetFingerprint {
	f := datasetFingerprint{
		set:            set,
		version:        set.GeometryVersion(),
		numberOfPoints: set.NumberOfPoints(),
		numberOfCells:  set.NumberOfCells(),
		bounds:         set.Bounds(),
	}

	if r, ok := set.(dataset.Raster); ok {
		f.raster = true
		f.dimensions = r.Dimensions()
		f.origin = r.Origin()
		f.spacing = r.Spacing()
	}
	return f
}

// matches reports whether the datasets are the ones fingerprinted and did
// not change since.
func (f fingerprint) matches(sets []dataset.DataSet) bool {
	if f == nil || len(f) != len(sets) {
		return false
	}

	for i, set := range sets {
		if f[i] != fingerprintOf(set) {
			return false
		}
	}
	return true
}
