package kdtree

const (
	ErrTypeNotBuilt          = "kdtree-not-built"
	ErrTypeNoCells           = "kdtree-no-cells"
	ErrTypeNoPoints          = "kdtree-no-points"
	ErrTypeNoCellLists       = "kdtree-no-cell-lists"
	ErrTypeInvalidArgument   = "kdtree-invalid-argument"
	ErrTypeRegionOutOfRange  = "kdtree-region-out-of-range"
	ErrTypeResourceExhausted = "kdtree-resource-exhausted"
)
