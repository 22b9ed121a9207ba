package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aukilabs/kdlocator/bsp"
	"github.com/aukilabs/kdlocator/dataset"
	"github.com/aukilabs/kdlocator/featureflag"
	"github.com/aukilabs/kdlocator/kdtree"
	"github.com/aukilabs/kdlocator/models"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

func newTestAPI(flags ...string) (*API, *http.ServeMux) {
	api := &API{
		Store:    &models.IndexStore{},
		Flags:    featureflag.New(flags),
		Defaults: Defaults{MaxPoints: 1000},
	}

	mux := http.NewServeMux()
	api.Register(mux)
	return api, mux
}

func do(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	var b []byte
	switch v := body.(type) {
	case nil:
	case string:
		b = []byte(v)
	default:
		var err error
		b, err = json.Marshal(v)
		require.NoError(t, err)
	}

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(method, path, bytes.NewReader(b)))
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func createPointIndex(t *testing.T, mux *http.ServeMux) IndexInfo {
	w := do(t, mux, http.MethodPost, "/indexes/points", map[string]any{
		"name":      "cloud",
		"min_cells": 2,
		"points":    [][3]float64{{0, 0, 0}, {1, 0, 0}, {0.3, 1, 0}, {0.1, 0.2, 1}, {1, 1, 1}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var info IndexInfo
	decodeBody(t, w, &info)
	return info
}

func TestAPIPointIndex(t *testing.T) {
	_, mux := newTestAPI()
	info := createPointIndex(t, mux)

	require.NotEmpty(t, info.ID)
	require.Equal(t, "cloud", info.Name)
	require.Equal(t, kdtree.PointMode, info.Mode)
	require.Equal(t, 5, info.Points)
	require.Equal(t, 2, info.Regions)

	t.Run("list and get", func(t *testing.T) {
		w := do(t, mux, http.MethodGet, "/indexes", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var infos []IndexInfo
		decodeBody(t, w, &infos)
		require.Len(t, infos, 1)
		require.Equal(t, info.ID, infos[0].ID)

		w = do(t, mux, http.MethodGet, "/indexes/"+info.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("closest", func(t *testing.T) {
		w := do(t, mux, http.MethodPost, "/indexes/"+info.ID+"/closest", `{"point":[0.9,0.1,0]}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var res models.Result
		decodeBody(t, w, &res)
		require.Equal(t, models.QueryClosest, res.Type)
		require.Equal(t, []int{1}, res.IDs)

		w = do(t, mux, http.MethodPost, "/indexes/"+info.ID+"/closest", `{"point":[0.1,0,0],"n":2}`)
		require.Equal(t, http.StatusOK, w.Code)
		decodeBody(t, w, &res)
		require.Equal(t, models.QueryClosestN, res.Type)
		require.Equal(t, []int{0, 1}, res.IDs)
	})

	t.Run("radius and area", func(t *testing.T) {
		w := do(t, mux, http.MethodPost, "/indexes/"+info.ID+"/radius", `{"point":[1,1,1],"radius":0.5}`)
		require.Equal(t, http.StatusOK, w.Code)

		var res models.Result
		decodeBody(t, w, &res)
		require.Equal(t, []int{4}, res.IDs)

		w = do(t, mux, http.MethodPost, "/indexes/"+info.ID+"/area", `{"min":[-1,-1,-1],"max":[0.5,0.5,2]}`)
		require.Equal(t, http.StatusOK, w.Code)
		decodeBody(t, w, &res)
		require.ElementsMatch(t, []int{0, 3}, res.IDs)

		w = do(t, mux, http.MethodPost, "/indexes/"+info.ID+"/radius", `{"point":[1,1,1],"radius":-1}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("region and view order", func(t *testing.T) {
		w := do(t, mux, http.MethodPost, "/indexes/"+info.ID+"/region", `{"point":[0.5,0.5,0.5]}`)
		require.Equal(t, http.StatusOK, w.Code)

		var res models.Result
		decodeBody(t, w, &res)
		require.GreaterOrEqual(t, res.Region, 0)
		require.NotNil(t, res.Bounds)

		w = do(t, mux, http.MethodPost, "/indexes/"+info.ID+"/view-order", `{"position":[5,5,5]}`)
		require.Equal(t, http.StatusOK, w.Code)
		decodeBody(t, w, &res)
		require.Len(t, res.IDs, info.Regions)
	})

	t.Run("duplicates", func(t *testing.T) {
		w := do(t, mux, http.MethodPost, "/indexes/"+info.ID+"/duplicates", `{"tolerance":0}`)
		require.Equal(t, http.StatusOK, w.Code)

		var res struct {
			Map []int `json:"map"`
		}
		decodeBody(t, w, &res)
		require.Equal(t, []int{0, 1, 2, 3, 4}, res.Map)
	})

	t.Run("cuts and nodes", func(t *testing.T) {
		w := do(t, mux, http.MethodGet, "/indexes/"+info.ID+"/cuts", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var cuts bsp.Cuts
		decodeBody(t, w, &cuts)
		require.Equal(t, info.Regions, cuts.NumberOfRegions())

		w = do(t, mux, http.MethodGet, "/indexes/"+info.ID+"/nodes", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var nodes []kdtree.Node
		decodeBody(t, w, &nodes)
		require.Equal(t, cuts.NumberOfNodes(), len(nodes))
	})

	t.Run("cell lists need a mesh", func(t *testing.T) {
		w := do(t, mux, http.MethodPost, "/indexes/"+info.ID+"/cell-lists", `{"regions":[0]}`)
		require.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		w := do(t, mux, http.MethodDelete, "/indexes/"+info.ID, nil)
		require.Equal(t, http.StatusNoContent, w.Code)

		w = do(t, mux, http.MethodGet, "/indexes/"+info.ID, nil)
		require.Equal(t, http.StatusNotFound, w.Code)

		var res errorResponse
		decodeBody(t, w, &res)
		require.Equal(t, models.ErrTypeIndexNotFound, res.Type)
	})
}

func TestAPIMeshIndex(t *testing.T) {
	_, mux := newTestAPI(string(featureflag.FlagIncludeBoundaryCells))

	w := do(t, mux, http.MethodPost, "/indexes/mesh", map[string]any{
		"name":      "voxels",
		"min_cells": 1,
		"image": map[string]any{
			"dimensions": [3]int{3, 3, 3},
			"origin":     [3]float64{0, 0, 0},
			"spacing":    [3]float64{0.5, 0.5, 0.5},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var info IndexInfo
	decodeBody(t, w, &info)
	require.Equal(t, kdtree.CellMode, info.Mode)
	require.Equal(t, 8, info.Regions)

	t.Run("cell lists", func(t *testing.T) {
		w := do(t, mux, http.MethodPost, "/indexes/"+info.ID+"/cell-lists", `{"regions":[0],"boundary":true}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var res cellListsResponse
		decodeBody(t, w, &res)
		require.Len(t, res.Cells, 1)
		require.Len(t, res.Boundary, 7)
	})

	t.Run("intersect", func(t *testing.T) {
		w := do(t, mux, http.MethodPost, "/indexes/"+info.ID+"/intersect", `{"min":[0,0,0],"max":[0.1,0.1,0.1]}`)
		require.Equal(t, http.StatusOK, w.Code)

		var res regionList
		decodeBody(t, w, &res)
		require.Len(t, res.Regions, 1)

		w = do(t, mux, http.MethodPost, "/indexes/"+info.ID+"/intersect", `{"center":[0.5,0.5,0.5],"radius":0.01}`)
		require.Equal(t, http.StatusOK, w.Code)
		decodeBody(t, w, &res)
		require.Len(t, res.Regions, 8)

		w = do(t, mux, http.MethodPost, "/indexes/"+info.ID+"/intersect", `{}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("convex sub regions", func(t *testing.T) {
		w := do(t, mux, http.MethodPost, "/indexes/"+info.ID+"/convex", `{"regions":[0,1,2,3,4,5,6,7]}`)
		require.Equal(t, http.StatusOK, w.Code)

		var res convexResponse
		decodeBody(t, w, &res)
		require.Len(t, res.Boxes, 1)
	})
}

func TestAPIInvalidRequests(t *testing.T) {
	_, mux := newTestAPI()

	t.Run("malformed body", func(t *testing.T) {
		w := do(t, mux, http.MethodPost, "/indexes/points", `{"points":`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no points", func(t *testing.T) {
		w := do(t, mux, http.MethodPost, "/indexes/points", `{"points":[]}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("too many points", func(t *testing.T) {
		points := make([][3]float64, 1001)
		w := do(t, mux, http.MethodPost, "/indexes/points", map[string]any{"points": points})
		require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("unknown cell type", func(t *testing.T) {
		w := do(t, mux, http.MethodPost, "/indexes/mesh", `{"points":[[0,0,0],[1,0,0],[0,1,0]],"cells":[{"type":"wedge","points":[0,1,2]}]}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("cell referencing a missing point", func(t *testing.T) {
		w := do(t, mux, http.MethodPost, "/indexes/mesh", `{"points":[[0,0,0],[1,0,0],[0,1,0]],"cells":[{"type":"triangle","points":[0,1,7]}]}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("raster dimensions overflowing", func(t *testing.T) {
		w := do(t, mux, http.MethodPost, "/indexes/mesh", `{"image":{"dimensions":[2097153,2097153,2097153],"origin":[0,0,0],"spacing":[1,1,1]}}`)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var res errorResponse
		decodeBody(t, w, &res)
		require.Equal(t, dataset.ErrTypeInvalidCell, res.Type)
	})

	t.Run("raster with too many cells", func(t *testing.T) {
		w := do(t, mux, http.MethodPost, "/indexes/mesh", `{"image":{"dimensions":[1048576,1048576,1048576],"origin":[0,0,0],"spacing":[1,1,1]}}`)
		require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("unknown index", func(t *testing.T) {
		w := do(t, mux, http.MethodPost, "/indexes/nope/closest", `{"point":[0,0,0]}`)
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}
