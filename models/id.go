package models

import (
	"sync"

	"github.com/tidwall/tinyqueue"
)

// SequentialIDGenerator hands out increasing ids starting at 1. Released
// ids are handed out again, smallest first, before new ones.
type SequentialIDGenerator struct {
	mutex    sync.Mutex
	current  uint32
	reusable *tinyqueue.Queue
	released map[uint32]struct{}
}

type reusableID uint32

func (id reusableID) Less(other tinyqueue.Item) bool {
	return id < other.(reusableID)
}

// New returns an id that is not in use.
func (g *SequentialIDGenerator) New() uint32 {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.reusable != nil && g.reusable.Len() != 0 {
		id := uint32(g.reusable.Pop().(reusableID))
		delete(g.released, id)
		return id
	}

	g.current++
	return g.current
}

// Reuse releases an id given by New. Releasing an id twice or an id that
// was never given has no effect.
func (g *SequentialIDGenerator) Reuse(id uint32) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if id == 0 || id > g.current {
		return
	}
	if g.reusable == nil {
		g.reusable = tinyqueue.New(nil)
		g.released = make(map[uint32]struct{})
	}
	if _, ok := g.released[id]; ok {
		return
	}

	g.released[id] = struct{}{}
	g.reusable.Push(reusableID(id))
}

// InUse returns how many ids are currently given.
func (g *SequentialIDGenerator) InUse() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	return int(g.current) - len(g.released)
}
