package models

import (
	"sync"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kdlocator/dataset"
	"github.com/aukilabs/kdlocator/kdtree"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func newPointTree(t *testing.T) *kdtree.Tree {
	tree := kdtree.New(kdtree.WithMinCells(2))
	require.NoError(t, tree.BuildFromPoints(dataset.Points{{}, {X: 1}, {Y: 1}, {Z: 1}, {X: 1, Y: 1, Z: 1}}))
	return tree
}

func TestIndexStore(t *testing.T) {
	t.Run("add get delete", func(t *testing.T) {
		var store IndexStore

		idx, err := store.Add("cloud", newPointTree(t))
		require.NoError(t, err)
		require.NotEmpty(t, idx.ID)
		require.Equal(t, kdtree.PointMode, idx.Mode())
		require.Equal(t, 1, store.Len())

		got, err := store.Get(idx.ID)
		require.NoError(t, err)
		require.Same(t, idx, got)

		require.NoError(t, store.Delete(idx.ID))
		require.Zero(t, store.Len())

		_, err = store.Get(idx.ID)
		require.Equal(t, ErrTypeIndexNotFound, errors.Type(err))

		err = store.Delete(idx.ID)
		require.Equal(t, ErrTypeIndexNotFound, errors.Type(err))
	})

	t.Run("tree not built", func(t *testing.T) {
		var store IndexStore
		_, err := store.Add("empty", kdtree.New())
		require.Equal(t, ErrTypeInvalidIndex, errors.Type(err))
	})

	t.Run("list", func(t *testing.T) {
		var store IndexStore
		for _, name := range []string{"a", "b", "c"} {
			_, err := store.Add(name, newPointTree(t))
			require.NoError(t, err)
		}

		indexes := store.List()
		require.Len(t, indexes, 3)
		for i := 1; i < len(indexes); i++ {
			require.False(t, indexes[i].CreatedAt.Before(indexes[i-1].CreatedAt))
		}
	})

	t.Run("concurrent queries and rebuilds", func(t *testing.T) {
		var store IndexStore
		idx, err := store.Add("cloud", newPointTree(t))
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(2)

			go func() {
				defer wg.Done()
				err := idx.Read(func(tree *kdtree.Tree) error {
					id, _, err := tree.FindClosestPoint(r3.Vec{X: 0.9, Y: 0.9, Z: 0.9})
					require.Equal(t, 4, id)
					return err
				})
				require.NoError(t, err)
			}()

			go func() {
				defer wg.Done()
				err := idx.Write(func(tree *kdtree.Tree) error {
					return tree.BuildFromPoints(dataset.Points{{}, {X: 1}, {Y: 1}, {Z: 1}, {X: 1, Y: 1, Z: 1}})
				})
				require.NoError(t, err)
			}()
		}
		wg.Wait()
	})
}

func TestIndexStoreQuery(t *testing.T) {
	var store IndexStore
	idx, err := store.Add("cloud", newPointTree(t))
	require.NoError(t, err)

	t.Run("closest", func(t *testing.T) {
		res, err := store.Query(Query{Type: QueryClosest, IndexID: idx.ID, Point: Vec{0.9, 0.1, 0}, RequestID: 7})
		require.NoError(t, err)
		require.Equal(t, []int{1}, res.IDs)
		require.InDelta(t, 0.02, res.Distance2, 1e-9)
		require.Equal(t, uint32(7), res.RequestID)
	})

	t.Run("closest within radius", func(t *testing.T) {
		res, err := store.Query(Query{Type: QueryClosest, IndexID: idx.ID, Point: Vec{0.5, 0.5, 0.5}, Radius: 0.1})
		require.NoError(t, err)
		require.Empty(t, res.IDs)
	})

	t.Run("closest n", func(t *testing.T) {
		res, err := store.Query(Query{Type: QueryClosestN, IndexID: idx.ID, Point: Vec{0.1, 0, 0}, N: 2})
		require.NoError(t, err)
		require.Equal(t, []int{0, 1}, res.IDs)
	})

	t.Run("radius and area", func(t *testing.T) {
		res, err := store.Query(Query{Type: QueryRadius, IndexID: idx.ID, Point: Vec{}, Radius: 1})
		require.NoError(t, err)
		require.ElementsMatch(t, []int{0, 1, 2, 3}, res.IDs)

		res, err = store.Query(Query{Type: QueryArea, IndexID: idx.ID, Min: Vec{0.5, 0.5, 0.5}, Max: Vec{2, 2, 2}})
		require.NoError(t, err)
		require.Equal(t, []int{4}, res.IDs)
	})

	t.Run("region", func(t *testing.T) {
		res, err := store.Query(Query{Type: QueryRegion, IndexID: idx.ID, Point: Vec{0.5, 0.5, 0.5}})
		require.NoError(t, err)
		require.GreaterOrEqual(t, res.Region, 0)
		require.NotNil(t, res.Bounds)
		require.True(t, res.Bounds.ContainsPoint(Vec{0.5, 0.5, 0.5}.R3()))

		res, err = store.Query(Query{Type: QueryRegion, IndexID: idx.ID, Point: Vec{5, 5, 5}})
		require.NoError(t, err)
		require.Equal(t, -1, res.Region)
		require.Nil(t, res.Bounds)
	})

	t.Run("view order", func(t *testing.T) {
		res, err := store.Query(Query{Type: QueryViewOrder, IndexID: idx.ID, Direction: &Vec{1, 0, 0}})
		require.NoError(t, err)
		require.NotEmpty(t, res.IDs)

		_, err = store.Query(Query{Type: QueryViewOrder, IndexID: idx.ID})
		require.Equal(t, ErrTypeInvalidQuery, errors.Type(err))
	})

	t.Run("invalid queries", func(t *testing.T) {
		_, err := store.Query(Query{Type: "nope", IndexID: idx.ID})
		require.Equal(t, ErrTypeInvalidQuery, errors.Type(err))

		_, err = store.Query(Query{Type: QueryClosest, IndexID: "missing"})
		require.Equal(t, ErrTypeIndexNotFound, errors.Type(err))

		_, err = store.Query(Query{Type: QueryClosestN, IndexID: idx.ID})
		require.Equal(t, kdtree.ErrTypeInvalidArgument, errors.Type(err))
	})
}
