package kdtree

import (
	"github.com/aukilabs/kdlocator/bsp"
	"github.com/aukilabs/kdlocator/geometry"
)

const (
	DefaultMaxLevel = 20
	DefaultMinCells = 100
)

// Partitioning is a bit mask of the axes a region may be divided along.
type Partitioning uint8

const (
	NoPartitioning Partitioning = 0
	PartitionAll   Partitioning = 1<<geometry.X | 1<<geometry.Y | 1<<geometry.Z
	OmitX                       = PartitionAll &^ (1 << geometry.X)
	OmitY                       = PartitionAll &^ (1 << geometry.Y)
	OmitZ                       = PartitionAll &^ (1 << geometry.Z)
	OmitXY                      = Partitioning(1 << geometry.Z)
	OmitYZ                      = Partitioning(1 << geometry.X)
	OmitZX                      = Partitioning(1 << geometry.Y)
)

// Allows reports whether regions may be cut along the axis.
func (p Partitioning) Allows(a geometry.Axis) bool {
	return a.Valid() && p&(1<<a) != 0
}

// Axes returns the allowed axes in X, Y, Z order.
func (p Partitioning) Axes() []geometry.Axis {
	var axes []geometry.Axis
	for _, a := range geometry.Axes {
		if p.Allows(a) {
			axes = append(axes, a)
		}
	}
	return axes
}

// Observer receives build notifications. Calls happen on the goroutine
// running the build.
type Observer interface {
	BuildStarted(mode Mode)
	BuildProgress(progress float64)
	BuildEnded(mode Mode, err error)
}

// Option configures a tree.
type Option func(*options)

type options struct {
	minCells             int
	maxLevel             int
	regionsOrLess        int
	regionsOrMore        int
	partitioning         Partitioning
	timing               bool
	observer             Observer
	cuts                 *bsp.Cuts
	includeBoundaryCells bool
}

func defaultOptions() options {
	return options{
		minCells:     DefaultMinCells,
		maxLevel:     DefaultMaxLevel,
		partitioning: PartitionAll,
	}
}

// WithMinCells sets the minimum number of cells or points a region must keep
// after a division. Zero disables the limit.
func WithMinCells(n int) Option {
	return func(o *options) {
		o.minCells = max(n, 0)
	}
}

// WithMaxLevel sets the maximum depth of the tree.
func WithMaxLevel(n int) Option {
	return func(o *options) {
		o.maxLevel = max(n, 0)
	}
}

// WithNumberOfRegionsOrLess stops dividing once the next level would
// produce more than n regions. Zero disables the limit.
func WithNumberOfRegionsOrLess(n int) Option {
	return func(o *options) {
		o.regionsOrLess = max(n, 0)
	}
}

// WithNumberOfRegionsOrMore stops dividing once a level holds at least n
// regions. Zero disables the limit.
func WithNumberOfRegionsOrMore(n int) Option {
	return func(o *options) {
		o.regionsOrMore = max(n, 0)
	}
}

func WithPartitioning(p Partitioning) Option {
	return func(o *options) {
		o.partitioning = p & PartitionAll
	}
}

// WithTiming logs the duration of each build step at debug level.
func WithTiming(enabled bool) Option {
	return func(o *options) {
		o.timing = enabled
	}
}

func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithCuts makes cell builds use the given cuts instead of dividing the
// data. A nil value restores data driven builds.
func WithCuts(cuts *bsp.Cuts) Option {
	return func(o *options) {
		o.cuts = cuts
	}
}

// WithIncludeRegionBoundaryCells makes cell lists also record the cells
// that intersect a region without having their centroid in it.
func WithIncludeRegionBoundaryCells(include bool) Option {
	return func(o *options) {
		o.includeBoundaryCells = include
	}
}

// divideTest reports whether a region of the given size at the given level
// may be divided.
func (o *options) divideTest(size, level int) bool {
	if size < 2 || level >= o.maxLevel {
		return false
	}

	if o.minCells > 0 && o.minCells > size/2 {
		return false
	}

	regionsNow := 1 << level
	regionsNext := regionsNow << 1

	if o.regionsOrLess > 0 && regionsNext > o.regionsOrLess {
		return false
	}
	if o.regionsOrMore > 0 && regionsNow >= o.regionsOrMore {
		return false
	}
	return true
}

func (o *options) progress(p float64) {
	if o.observer != nil {
		o.observer.BuildProgress(p)
	}
}
