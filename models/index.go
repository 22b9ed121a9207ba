package models

import (
	"sort"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kdlocator/kdtree"
	"github.com/google/uuid"
)

const (
	ErrTypeIndexNotFound = "index-not-found"
	ErrTypeInvalidIndex  = "invalid-index"
)

// Index is a named k-d tree held by the service. Queries run under a read
// lock and rebuilds under a write lock.
type Index struct {
	ID        string
	Name      string
	CreatedAt time.Time

	mutex sync.RWMutex
	tree  *kdtree.Tree
}

// NewIndex returns an index with a new uuid wrapping the given tree.
func NewIndex(name string, tree *kdtree.Tree) *Index {
	return &Index{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now(),
		tree:      tree,
	}
}

// Read calls fn with the tree while holding the read lock.
func (i *Index) Read(fn func(*kdtree.Tree) error) error {
	i.mutex.RLock()
	defer i.mutex.RUnlock()

	return fn(i.tree)
}

// Write calls fn with the tree while holding the write lock.
func (i *Index) Write(fn func(*kdtree.Tree) error) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	return fn(i.tree)
}

// Mode returns the mode the tree was built in.
func (i *Index) Mode() kdtree.Mode {
	i.mutex.RLock()
	defer i.mutex.RUnlock()

	return i.tree.Mode()
}

// IndexStore holds the indexes of the service.
type IndexStore struct {
	initOnce sync.Once
	mutex    sync.RWMutex
	indexes  map[string]*Index
}

func (s *IndexStore) init() {
	s.indexes = make(map[string]*Index)
}

// Add creates an index for a built tree and stores it.
func (s *IndexStore) Add(name string, tree *kdtree.Tree) (*Index, error) {
	if tree == nil || !tree.Built() {
		return nil, errors.New("index tree is not built").
			WithType(ErrTypeInvalidIndex).
			WithTag("name", name)
	}

	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	idx := NewIndex(name, tree)
	s.indexes[idx.ID] = idx

	mode := string(tree.Mode())
	instrumentIncreaseIndexGauge(mode)
	instrumentCountIndex(mode)
	return idx, nil
}

func (s *IndexStore) Get(id string) (*Index, error) {
	s.initOnce.Do(s.init)
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	idx, ok := s.indexes[id]
	if !ok {
		return nil, errors.New("index not found").
			WithType(ErrTypeIndexNotFound).
			WithTag("index_id", id)
	}
	return idx, nil
}

func (s *IndexStore) Delete(id string) error {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	idx, ok := s.indexes[id]
	if !ok {
		return errors.New("index not found").
			WithType(ErrTypeIndexNotFound).
			WithTag("index_id", id)
	}

	delete(s.indexes, id)
	instrumentDecreaseIndexGauge(string(idx.Mode()))
	return nil
}

// List returns the indexes ordered by creation time.
func (s *IndexStore) List() []*Index {
	s.initOnce.Do(s.init)
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	indexes := make([]*Index, 0, len(s.indexes))
	for _, idx := range s.indexes {
		indexes = append(indexes, idx)
	}

	sort.Slice(indexes, func(a, b int) bool {
		if indexes[a].CreatedAt.Equal(indexes[b].CreatedAt) {
			return indexes[a].ID < indexes[b].ID
		}
		return indexes[a].CreatedAt.Before(indexes[b].CreatedAt)
	})
	return indexes
}

func (s *IndexStore) Len() int {
	s.initOnce.Do(s.init)
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.indexes)
}
