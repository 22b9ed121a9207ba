// Package kdtree divides 3D datasets into spatial regions with a k-d tree and
// answers region, intersection and point location queries over them.
package kdtree

import (
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kdlocator/bsp"
	"github.com/aukilabs/kdlocator/dataset"
)

// Tree is a k-d tree over the cells of a list of datasets, or over point
// sets.
//
// Builds and queries must not run concurrently. Queries may run concurrently
// with each other.
type Tree struct {
	opts        options
	sets        []dataset.DataSet
	state       *state
	fingerprint fingerprint
	modified    bool

	listsMutex sync.Mutex
	lists      *cellLists
}

func New(opts ...Option) *Tree {
	t := &Tree{
		opts:     defaultOptions(),
		modified: true,
	}
	t.Configure(opts...)
	return t
}

// Configure applies options. The next build recomputes the tree.
func (t *Tree) Configure(opts ...Option) {
	for _, opt := range opts {
		opt(&t.opts)
	}
	t.modified = true
}

// SetCuts makes cell builds use the given cuts. A nil value restores data
// driven builds.
func (t *Tree) SetCuts(cuts *bsp.Cuts) {
	t.Configure(WithCuts(cuts))
}

// SetDataSets replaces the datasets whose cells are divided.
func (t *Tree) SetDataSets(sets ...dataset.DataSet) error {
	for i, set := range sets {
		if set == nil {
			return errors.New("nil dataset").
				WithType(ErrTypeInvalidArgument).
				WithTag("index", i)
		}
	}

	t.sets = append([]dataset.DataSet(nil), sets...)
	t.modified = true
	return nil
}

// AddDataSet appends a dataset. Adding a dataset already present does
// nothing.
func (t *Tree) AddDataSet(set dataset.DataSet) error {
	if set == nil {
		return errors.New("nil dataset").WithType(ErrTypeInvalidArgument)
	}
	if t.DataSetIndex(set) >= 0 {
		return nil
	}

	t.sets = append(t.sets, set)
	t.modified = true
	return nil
}

func (t *Tree) RemoveDataSet(set dataset.DataSet) error {
	i := t.DataSetIndex(set)
	if i < 0 {
		return errors.New("dataset not found").WithType(ErrTypeInvalidArgument)
	}

	t.sets = append(t.sets[:i:i], t.sets[i+1:]...)
	t.modified = true
	return nil
}

func (t *Tree) DataSets() []dataset.DataSet {
	return append([]dataset.DataSet(nil), t.sets...)
}

// DataSetIndex returns the position of a dataset, or -1 when it is not part
// of the tree.
func (t *Tree) DataSetIndex(set dataset.DataSet) int {
	for i, s := range t.sets {
		if s == set {
			return i
		}
	}
	return -1
}

// Invalidate forces the next build to recompute the tree even if the
// datasets look unchanged.
func (t *Tree) Invalidate() {
	t.fingerprint = nil
	t.modified = true
}

// NewGeometry reports whether the datasets or options changed since the
// last build.
func (t *Tree) NewGeometry() bool {
	return t.modified || !t.fingerprint.matches(t.sets)
}

func (t *Tree) Built() bool {
	return t.state != nil
}

// Mode returns what the tree was last built from, or an empty mode when it
// is not built.
func (t *Tree) Mode() Mode {
	if t.state == nil {
		return ""
	}
	return t.state.mode
}

func (t *Tree) built() (*state, error) {
	if t.state == nil {
		return nil, errors.New("k-d tree is not built").WithType(ErrTypeNotBuilt)
	}
	return t.state, nil
}

func (t *Tree) builtWith(mode Mode) (*state, error) {
	s, err := t.built()
	if err != nil {
		return nil, err
	}

	if s.mode != mode {
		return nil, errors.Newf("k-d tree is not built from %s", mode).
			WithType(ErrTypeNotBuilt).
			WithTag("mode", string(s.mode))
	}
	return s, nil
}
