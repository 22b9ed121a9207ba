package featureflag

type Flag string

const (
	// FlagIncludeBoundaryCells makes cell lists of mesh indexes also hold
	// the cells that only touch a region.
	FlagIncludeBoundaryCells Flag = "INCLUDE_BOUNDARY_CELLS"

	// FlagUseDataBounds makes intersection queries test the tight data
	// bounds of the regions instead of their nominal bounds.
	FlagUseDataBounds Flag = "USE_DATA_BOUNDS"

	// FlagDuplicateMapOnBuild computes the exact duplicate map of point
	// indexes right after they are built and logs how many were found.
	FlagDuplicateMapOnBuild Flag = "DUPLICATE_MAP_ON_BUILD"

	FlagDisableStream Flag = "DISABLE_STREAM"
)

// Flags returns every known flag.
func Flags() []Flag {
	return []Flag{
		FlagIncludeBoundaryCells,
		FlagUseDataBounds,
		FlagDuplicateMapOnBuild,
		FlagDisableStream,
	}
}
