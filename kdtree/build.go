package kdtree

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/kdlocator/bsp"
	"github.com/aukilabs/kdlocator/dataset"
	"github.com/aukilabs/kdlocator/geometry"
)

// Build divides the cells of the datasets into regions, either around the
// median of the cell centroids or along the cuts set with WithCuts. Nothing
// is done when the tree is already built from unchanged datasets and
// options.
//
// A failed build leaves the tree not built.
func (t *Tree) Build() error {
	for _, set := range t.sets {
		set.Update()
	}

	if t.state != nil && t.state.mode == CellMode && !t.NewGeometry() {
		return nil
	}

	return t.build(CellMode, t.buildCells)
}

// BuildFromPoints divides the given points into regions and builds the
// locator used by point queries. Point ids follow the order of the sets and
// of the points in each set. The tree is always rebuilt.
func (t *Tree) BuildFromPoints(sets ...dataset.PointSet) error {
	return t.build(PointMode, func() (*state, error) {
		return t.buildPoints(sets)
	})
}

func (t *Tree) build(mode Mode, fn func() (*state, error)) error {
	start := time.Now()
	if t.opts.observer != nil {
		t.opts.observer.BuildStarted(mode)
	}
	t.opts.progress(0)

	s, err := fn()
	t.DeleteCellLists()

	regions := 0
	if err != nil {
		t.state = nil
		t.fingerprint = nil
	} else {
		t.state = s
		t.fingerprint = takeFingerprint(t.sets)
		t.modified = false
		regions = len(s.regions)
	}

	instrumentBuild(mode, start, regions, err)

	if t.opts.timing && err == nil {
		logs.WithTag("mode", string(mode)).
			WithTag("duration", time.Since(start)).
			WithTag("regions", regions).
			WithTag("levels", s.level).
			Debug("k-d tree built")
	}

	if err == nil {
		t.opts.progress(1)
	}
	if t.opts.observer != nil {
		t.opts.observer.BuildEnded(mode, err)
	}
	return err
}

func (t *Tree) timeStep(step string, start time.Time) {
	if !t.opts.timing {
		return
	}

	logs.WithTag("step", step).
		WithTag("duration", time.Since(start)).
		Debug("k-d tree build step")
}

func (t *Tree) buildCells() (*state, error) {
	offsets := make([]int, len(t.sets)+1)
	bounds := geometry.EmptyBounds()
	for i, set := range t.sets {
		offsets[i+1] = offsets[i] + set.NumberOfCells()
		bounds = bounds.Union(set.Bounds())
	}

	numberOfCells := offsets[len(t.sets)]
	if numberOfCells == 0 {
		return nil, errors.New("no cells to divide").
			WithType(ErrTypeNoCells).
			WithTag("datasets", len(t.sets))
	}

	if err := checkMemory("cells", numberOfCells, cellBuildBytes); err != nil {
		return nil, err
	}

	volBounds, maxWidth, fudgeFactor := padCellBounds(bounds)
	s := &state{
		mode:        CellMode,
		maxWidth:    maxWidth,
		fudgeFactor: fudgeFactor,
		sets:        append([]dataset.DataSet(nil), t.sets...),
		cellOffsets: offsets,
	}

	start := time.Now()
	centroids := t.computeCentroids(numberOfCells)
	t.timeStep("centroids", start)
	t.opts.progress(0.3)

	start = time.Now()
	s.cellRegions = make([]int, numberOfCells)

	if t.opts.cuts != nil {
		if err := s.processUserDefinedCuts(t.opts.cuts, volBounds); err != nil {
			return nil, err
		}
		s.number()

		for k := 0; k < centroids.Len(); k++ {
			s.cellRegions[centroids.ids[k]] = s.regionContaining(centroids.point(k))
		}
	} else {
		s.nodes = []node{newLeaf(volBounds, volBounds, numberOfCells)}
		divide(s, &t.opts, centroids, 0, 0)
		s.number()

		for id := range s.regions {
			for k := s.regionOffsets[id]; k < s.regionOffsets[id+1]; k++ {
				s.cellRegions[centroids.ids[k]] = id
			}
		}
	}
	t.timeStep("divide", start)

	if err := s.finish(); err != nil {
		return nil, err
	}
	return s, nil
}

func (t *Tree) computeCentroids(numberOfCells int) pointBuffer[float64] {
	buf := newPointBuffer[float64](numberOfCells)

	k := 0
	for _, set := range t.sets {
		n := set.NumberOfCells()
		for c := 0; c < n; c++ {
			buf.set(k, dataset.Centroid(set.Cell(c)))
			buf.ids[k] = k
			k++
		}
	}
	return buf
}

func (t *Tree) buildPoints(sets []dataset.PointSet) (*state, error) {
	numberOfPoints := 0
	for i, set := range sets {
		if set == nil {
			return nil, errors.New("nil point set").
				WithType(ErrTypeInvalidArgument).
				WithTag("index", i)
		}
		numberOfPoints += set.Len()
	}

	if numberOfPoints == 0 {
		return nil, errors.New("no points to divide").
			WithType(ErrTypeNoPoints).
			WithTag("point_sets", len(sets))
	}

	if err := checkMemory("points", numberOfPoints, pointBuildBytes); err != nil {
		return nil, err
	}

	start := time.Now()
	buf := newPointBuffer[float32](numberOfPoints)
	k := 0
	for _, set := range sets {
		if f, ok := set.(dataset.Float32PointSet); ok {
			copy(buf.coords[3*k:], f.Float32s())
			for i := 0; i < set.Len(); i++ {
				buf.ids[k] = k
				k++
			}
			continue
		}

		for i := 0; i < set.Len(); i++ {
			buf.set(k, set.Point(i))
			buf.ids[k] = k
			k++
		}
	}
	t.timeStep("copy points", start)
	t.opts.progress(0.3)

	volBounds, maxWidth, fudgeFactor := padPointBounds(buf.bounds())
	s := &state{
		mode:        PointMode,
		maxWidth:    maxWidth,
		fudgeFactor: fudgeFactor,
		nodes:       []node{newLeaf(volBounds, volBounds, numberOfPoints)},
	}

	start = time.Now()
	divide(s, &t.opts, buf, 0, 0)
	s.number()
	t.timeStep("divide", start)

	s.points = buf.coords
	s.pointIDs = buf.ids
	s.pointIndex = make([]int, numberOfPoints)
	for k, id := range buf.ids {
		s.pointIndex[id] = k
	}

	if err := s.finish(); err != nil {
		return nil, err
	}
	return s, nil
}

// padCellBounds grows the bounds of the cells so that no centroid lies on
// the boundary. Flat axes get a hundredth of the largest width on each
// side.
func padCellBounds(b geometry.Bounds) (padded geometry.Bounds, maxWidth, fudgeFactor float64) {
	maxWidth = b.MaxWidth()
	base := paddingBase(maxWidth)
	fudgeFactor = base * 10e-6
	aLittle := base / 100

	for _, a := range geometry.Axes {
		lo, hi := b.Lo(a), b.Hi(a)
		if hi-lo <= 0 {
			b.SetLo(a, lo-aLittle)
			b.SetHi(a, hi+aLittle)
		} else {
			b.SetLo(a, lo-fudgeFactor)
			b.SetHi(a, hi+fudgeFactor)
		}
	}
	return b, maxWidth, fudgeFactor
}

// padPointBounds grows the bounds of a point cloud. Axes thinner than a
// tenth of the largest width are widened to that tenth on both sides.
func padPointBounds(b geometry.Bounds) (padded geometry.Bounds, maxWidth, fudgeFactor float64) {
	maxWidth = b.MaxWidth()
	base := paddingBase(maxWidth)
	fudgeFactor = base * 10e-6
	aLittle := base * 10e-2

	for _, a := range geometry.Axes {
		lo, hi := b.Lo(a), b.Hi(a)
		if hi-lo < aLittle {
			b.SetLo(a, hi-aLittle)
			b.SetHi(a, lo+aLittle)
		} else {
			b.SetLo(a, lo-fudgeFactor)
			b.SetHi(a, hi+fudgeFactor)
		}
	}
	return b, maxWidth, fudgeFactor
}

func paddingBase(maxWidth float64) float64 {
	if maxWidth > 0 {
		return maxWidth
	}
	return 1
}

// divide recursively splits the region of node ni whose points are in buf.
func divide[T scalar](s *state, o *options, buf pointBuffer[T], ni, level int) {
	if undivided := divideNode(s, o, buf, ni, level); undivided > 0 {
		logs.Warn(errors.New("regions cannot be divided along any permitted axis").
			WithTag("regions", undivided))
	}
}

// divideNode returns the number of regions left whole although the divide
// test asked for a split.
func divideNode[T scalar](s *state, o *options, buf pointBuffer[T], ni, level int) int {
	if !o.divideTest(s.nodes[ni].numberOfPoints, level) {
		return 0
	}

	first := selectCutDirection(s.nodes[ni].dataBounds, o.partitioning)
	if first == geometry.AxisNone {
		return 0
	}

	dims := []geometry.Axis{first}
	for _, a := range o.partitioning.Axes() {
		if a != first {
			dims = append(dims, a)
		}
	}

	for _, dim := range dims {
		mid, coord, ok := selectMedian(buf, dim)
		if !ok {
			continue
		}

		lowerPoints, upperPoints := buf.slice(0, mid), buf.slice(mid, buf.Len())
		lower, upper := s.nodes[ni].bounds.Split(dim, coord)
		s.split(ni, dim, coord,
			newLeaf(lower, lowerPoints.bounds(), lowerPoints.Len()),
			newLeaf(upper, upperPoints.bounds(), upperPoints.Len()),
		)

		left, right := s.nodes[ni].left, s.nodes[ni].right
		return divideNode(s, o, lowerPoints, left, level+1) +
			divideNode(s, o, upperPoints, right, level+1)
	}

	logs.WithTag("points", buf.Len()).
		WithTag("level", level).
		Debug("region cannot be divided along any permitted axis")
	return 1
}

// selectCutDirection returns the permitted axis along which the data bounds
// are the widest, the first one on ties.
func selectCutDirection(dataBounds geometry.Bounds, p Partitioning) geometry.Axis {
	axes := p.Axes()
	switch len(axes) {
	case 0:
		return geometry.AxisNone
	case 1:
		return axes[0]
	}

	best := geometry.AxisNone
	maxDiff := -1.0
	for _, a := range axes {
		if diff := dataBounds.Extent(a); diff > maxDiff {
			maxDiff = diff
			best = a
		}
	}
	return best
}

// processUserDefinedCuts copies the tree described by the cuts. Its bounds
// are expanded to cover the data and the regions get no point counts.
func (s *state) processUserDefinedCuts(cuts *bsp.Cuts, volBounds geometry.Bounds) error {
	if cuts == nil || cuts.NumberOfNodes() == 0 {
		return errors.New("no user defined cuts").WithType(ErrTypeInvalidArgument)
	}

	bounds := cuts.Bounds()
	expanded := bounds.Union(volBounds)
	if expanded != bounds {
		logs.Warn(errors.New("user defined cuts do not cover the data, expanding their bounds").
			WithTag("cuts_bounds", bounds).
			WithTag("data_bounds", volBounds))
	}

	src := cuts.Nodes()
	s.nodes = make([]node, len(src))

	var copyNode func(i int, bounds geometry.Bounds)
	copyNode = func(i int, bounds geometry.Bounds) {
		n := src[i]
		s.nodes[i] = newLeaf(bounds, bounds, 0)
		if n.IsLeaf() {
			return
		}

		s.nodes[i].dim = n.Dim
		s.nodes[i].coord = n.Coord
		s.nodes[i].left = n.Left
		s.nodes[i].right = n.Right

		lower, upper := bounds.Split(n.Dim, n.Coord)
		copyNode(n.Left, lower)
		copyNode(n.Right, upper)
	}
	copyNode(0, expanded)

	return nil
}
