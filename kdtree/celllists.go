package kdtree

import (
	"slices"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kdlocator/dataset"
)

// cellLists holds, for some regions, the ids of the cells of one dataset
// whose centroid lies in the region and optionally the ids of the cells
// that only intersect it.
type cellLists struct {
	state    *state
	setIndex int
	regions  []int
	position []int
	cells    [][]int
	boundary [][]int
}

func (l *cellLists) has(region int) bool {
	return l.position[region] >= 0
}

// CreateCellLists computes the cell lists of a dataset for the given
// regions, or for all regions when none are given. Boundary lists are also
// computed when the tree is configured with WithIncludeRegionBoundaryCells.
// Previous lists are discarded.
func (t *Tree) CreateCellLists(setIndex int, regions ...int) error {
	t.listsMutex.Lock()
	defer t.listsMutex.Unlock()

	lists, err := t.createCellLists(setIndex, regions, t.opts.includeBoundaryCells)
	if err != nil {
		return err
	}

	t.lists = lists
	return nil
}

func (t *Tree) createCellLists(setIndex int, regions []int, includeBoundary bool) (*cellLists, error) {
	s, err := t.builtWith(CellMode)
	if err != nil {
		return nil, err
	}

	if setIndex < 0 || setIndex >= len(s.sets) {
		return nil, errors.New("dataset index out of range").
			WithType(ErrTypeInvalidArgument).
			WithTag("index", setIndex).
			WithTag("datasets", len(s.sets))
	}

	for _, id := range regions {
		if err := s.checkRegion(id); err != nil {
			return nil, err
		}
	}

	if len(regions) == 0 {
		regions = make([]int, len(s.regions))
		for i := range regions {
			regions[i] = i
		}
	} else {
		regions = slices.Clone(regions)
		slices.Sort(regions)
		regions = slices.Compact(regions)
	}

	l := &cellLists{
		state:    s,
		setIndex: setIndex,
		regions:  regions,
		position: make([]int, len(s.regions)),
		cells:    make([][]int, len(regions)),
	}
	for i := range l.position {
		l.position[i] = -1
	}
	for i, id := range regions {
		l.position[id] = i
	}
	if includeBoundary {
		l.boundary = make([][]int, len(regions))
	}

	set := s.sets[setIndex]
	offset := s.cellOffsets[setIndex]
	count := s.cellOffsets[setIndex+1] - offset

	for cellID := 0; cellID < count; cellID++ {
		home := s.cellRegions[offset+cellID]

		if !includeBoundary {
			if pos := l.position[home]; pos >= 0 {
				l.cells[pos] = append(l.cells[pos], cellID)
			}
			continue
		}

		intersected, err := s.intersections.IntersectsCellRegions(set.Cell(cellID), home)
		if err != nil {
			return nil, err
		}

		for _, region := range intersected {
			pos := l.position[region]
			if pos < 0 {
				continue
			}

			if region == home {
				l.cells[pos] = append(l.cells[pos], cellID)
			} else {
				l.boundary[pos] = append(l.boundary[pos], cellID)
			}
		}
	}

	return l, nil
}

// CellList returns the ids of the cells whose centroid lies in a region.
func (t *Tree) CellList(region int) ([]int, error) {
	t.listsMutex.Lock()
	defer t.listsMutex.Unlock()

	l, err := t.currentCellLists(region)
	if err != nil {
		return nil, err
	}
	return slices.Clone(l.cells[l.position[region]]), nil
}

// BoundaryCellList returns the ids of the cells that intersect a region
// without having their centroid in it.
func (t *Tree) BoundaryCellList(region int) ([]int, error) {
	t.listsMutex.Lock()
	defer t.listsMutex.Unlock()

	l, err := t.currentCellLists(region)
	if err != nil {
		return nil, err
	}

	if l.boundary == nil {
		return nil, errors.New("boundary cell lists were not computed").
			WithType(ErrTypeNoCellLists)
	}
	return slices.Clone(l.boundary[l.position[region]]), nil
}

func (t *Tree) currentCellLists(region int) (*cellLists, error) {
	if t.lists == nil || t.lists.state != t.state {
		return nil, errors.New("no cell lists").WithType(ErrTypeNoCellLists)
	}

	if err := t.lists.state.checkRegion(region); err != nil {
		return nil, err
	}

	if !t.lists.has(region) {
		return nil, errors.New("no cell list for region").
			WithType(ErrTypeNoCellLists).
			WithTag("region", region)
	}
	return t.lists, nil
}

// CellLists returns the cells of a dataset whose centroid lies in one of
// the regions and, when boundary is true, the other cells intersecting
// them. Cell lists for every region are created when the current ones do
// not cover the request.
func (t *Tree) CellLists(regions []int, setIndex int, boundary bool) (inRegion, onBoundary []int, err error) {
	t.listsMutex.Lock()
	defer t.listsMutex.Unlock()

	st, err := t.builtWith(CellMode)
	if err != nil {
		return nil, nil, err
	}
	for _, id := range regions {
		if err := st.checkRegion(id); err != nil {
			return nil, nil, err
		}
	}

	if len(regions) == 0 {
		return nil, nil, nil
	}

	l := t.lists
	if !t.cellListsCover(l, regions, setIndex, boundary) {
		if l, err = t.createCellLists(setIndex, nil, t.opts.includeBoundaryCells || boundary); err != nil {
			return nil, nil, err
		}
		t.lists = l
	}

	inSet := make(map[int]struct{})
	for _, id := range regions {
		for _, cellID := range l.cells[l.position[id]] {
			if _, ok := inSet[cellID]; ok {
				continue
			}
			inSet[cellID] = struct{}{}
			inRegion = append(inRegion, cellID)
		}
	}

	if !boundary {
		return inRegion, nil, nil
	}

	onSet := make(map[int]struct{})
	for _, id := range regions {
		for _, cellID := range l.boundary[l.position[id]] {
			if _, ok := inSet[cellID]; ok {
				continue
			}
			if _, ok := onSet[cellID]; ok {
				continue
			}
			onSet[cellID] = struct{}{}
			onBoundary = append(onBoundary, cellID)
		}
	}
	return inRegion, onBoundary, nil
}

func (t *Tree) cellListsCover(l *cellLists, regions []int, setIndex int, boundary bool) bool {
	if l == nil || l.state != t.state || l.setIndex != setIndex {
		return false
	}
	if boundary && l.boundary == nil {
		return false
	}

	for _, id := range regions {
		if !l.has(id) {
			return false
		}
	}
	return true
}

// DeleteCellLists discards the cell lists.
func (t *Tree) DeleteCellLists() {
	t.listsMutex.Lock()
	defer t.listsMutex.Unlock()

	t.lists = nil
}

// DataSetCellLists is a convenience returning the cell lists of a dataset
// given by value rather than by index.
func (t *Tree) DataSetCellLists(regions []int, set dataset.DataSet, boundary bool) (inRegion, onBoundary []int, err error) {
	s, err := t.builtWith(CellMode)
	if err != nil {
		return nil, nil, err
	}

	i := s.dataSetIndex(set)
	if i < 0 {
		return nil, nil, errors.New("dataset is not part of the built tree").
			WithType(ErrTypeInvalidArgument)
	}
	return t.CellLists(regions, i, boundary)
}
