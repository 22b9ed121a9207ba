package http

import (
	"io"
	"net/http"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/kdlocator/bsp"
	"github.com/aukilabs/kdlocator/dataset"
	"github.com/aukilabs/kdlocator/featureflag"
	"github.com/aukilabs/kdlocator/geometry"
	"github.com/aukilabs/kdlocator/kdtree"
	"github.com/aukilabs/kdlocator/models"
	"github.com/segmentio/encoding/json"
)

const (
	ErrTypeBadRequest      = "bad-request"
	ErrTypeTooManyPoints   = "too-many-points"
	defaultMaxRequestBytes = 256 << 20
)

// Defaults are the build parameters used when a request does not set them.
type Defaults struct {
	MinCells        int
	MaxLevel        int
	MaxPoints       int
	MaxRequestBytes int64
}

// API serves the REST interface of the index store.
type API struct {
	Store    *models.IndexStore
	Flags    featureflag.FeatureFlag
	Defaults Defaults
}

func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /indexes/points", a.handleCreatePoints)
	mux.HandleFunc("POST /indexes/mesh", a.handleCreateMesh)
	mux.HandleFunc("GET /indexes", a.handleList)
	mux.HandleFunc("GET /indexes/{id}", a.handleGet)
	mux.HandleFunc("DELETE /indexes/{id}", a.handleDelete)
	mux.HandleFunc("GET /indexes/{id}/cuts", a.handleCuts)
	mux.HandleFunc("GET /indexes/{id}/nodes", a.handleNodes)
	mux.HandleFunc("POST /indexes/{id}/closest", a.handleClosest)
	mux.HandleFunc("POST /indexes/{id}/radius", a.handleQuery(models.QueryRadius))
	mux.HandleFunc("POST /indexes/{id}/area", a.handleQuery(models.QueryArea))
	mux.HandleFunc("POST /indexes/{id}/region", a.handleQuery(models.QueryRegion))
	mux.HandleFunc("POST /indexes/{id}/view-order", a.handleQuery(models.QueryViewOrder))
	mux.HandleFunc("POST /indexes/{id}/duplicates", a.handleDuplicates)
	mux.HandleFunc("POST /indexes/{id}/intersect", a.handleIntersect)
	mux.HandleFunc("POST /indexes/{id}/cell-lists", a.handleCellLists)
	mux.HandleFunc("POST /indexes/{id}/convex", a.handleConvex)
}

// IndexInfo describes an index.
type IndexInfo struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Mode      kdtree.Mode     `json:"mode"`
	Regions   int             `json:"regions"`
	Levels    int             `json:"levels"`
	Points    int             `json:"points,omitempty"`
	Bounds    geometry.Bounds `json:"bounds"`
	CreatedAt time.Time       `json:"created_at"`
}

func indexInfo(idx *models.Index) IndexInfo {
	info := IndexInfo{
		ID:        idx.ID,
		Name:      idx.Name,
		CreatedAt: idx.CreatedAt,
	}

	idx.Read(func(tree *kdtree.Tree) error {
		info.Mode = tree.Mode()
		info.Regions = tree.NumberOfRegions()
		info.Levels = tree.Level()
		info.Points = tree.NumberOfPoints()
		info.Bounds, _ = tree.Bounds()
		return nil
	})
	return info
}

type buildParams struct {
	MinCells int `json:"min_cells"`
	MaxLevel int `json:"max_level"`
}

func (a *API) treeOptions(p buildParams) []kdtree.Option {
	var opts []kdtree.Option

	if minCells := orDefault(p.MinCells, a.Defaults.MinCells); minCells > 0 {
		opts = append(opts, kdtree.WithMinCells(minCells))
	}
	if maxLevel := orDefault(p.MaxLevel, a.Defaults.MaxLevel); maxLevel > 0 {
		opts = append(opts, kdtree.WithMaxLevel(maxLevel))
	}

	a.Flags.IfSet(featureflag.FlagIncludeBoundaryCells, func() {
		opts = append(opts, kdtree.WithIncludeRegionBoundaryCells(true))
	})
	return opts
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func (a *API) checkPointCount(n int) error {
	if a.Defaults.MaxPoints > 0 && n > a.Defaults.MaxPoints {
		return errors.New("too many points").
			WithType(ErrTypeTooManyPoints).
			WithTag("points", n).
			WithTag("max_points", a.Defaults.MaxPoints)
	}
	return nil
}

type createPointsRequest struct {
	buildParams
	Name   string       `json:"name"`
	Points []models.Vec `json:"points"`
}

func (a *API) handleCreatePoints(w http.ResponseWriter, r *http.Request) {
	var req createPointsRequest
	if err := a.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := a.checkPointCount(len(req.Points)); err != nil {
		writeError(w, err)
		return
	}

	points := make(dataset.Points, len(req.Points))
	for i, p := range req.Points {
		points[i] = p.R3()
	}

	tree := kdtree.New(a.treeOptions(req.buildParams)...)
	if err := tree.BuildFromPoints(points); err != nil {
		writeError(w, err)
		return
	}

	a.Flags.IfSet(featureflag.FlagDuplicateMapOnBuild, func() {
		logDuplicates(req.Name, tree)
	})

	a.addIndex(w, req.Name, tree)
}

func logDuplicates(name string, tree *kdtree.Tree) {
	canonical, err := tree.BuildMapForDuplicatePoints(0)
	if err != nil {
		logs.Warn(errors.New("computing duplicate points failed").
			WithTag("name", name).
			Wrap(err))
		return
	}

	var duplicates int
	for id, c := range canonical {
		if id != c {
			duplicates++
		}
	}

	logs.WithTag("name", name).
		WithTag("points", len(canonical)).
		WithTag("duplicates", duplicates).
		Info("point index duplicates")
}

type cellRequest struct {
	Type   string `json:"type"`
	Points []int  `json:"points"`
}

type imageRequest struct {
	Dimensions [3]int     `json:"dimensions"`
	Origin     models.Vec `json:"origin"`
	Spacing    models.Vec `json:"spacing"`
}

type createMeshRequest struct {
	buildParams
	Name   string        `json:"name"`
	Points []models.Vec  `json:"points"`
	Cells  []cellRequest `json:"cells"`
	Image  *imageRequest `json:"image"`
	Cuts   *bsp.Cuts     `json:"cuts"`
}

func (req createMeshRequest) dataSet() (dataset.DataSet, error) {
	if req.Image != nil {
		return dataset.NewImageData(req.Image.Dimensions, req.Image.Origin.R3(), req.Image.Spacing.R3())
	}

	points := make(dataset.Points, len(req.Points))
	for i, p := range req.Points {
		points[i] = p.R3()
	}

	grid := dataset.NewUnstructuredGrid(points)
	for i, c := range req.Cells {
		ct, err := dataset.ParseCellType(c.Type)
		if err != nil {
			return nil, err
		}
		if _, err := grid.InsertNextCell(ct, c.Points...); err != nil {
			return nil, errors.New("invalid cell").
				WithType(dataset.ErrTypeInvalidCell).
				WithTag("cell", i).
				Wrap(err)
		}
	}
	return grid, nil
}

func (a *API) handleCreateMesh(w http.ResponseWriter, r *http.Request) {
	var req createMeshRequest
	if err := a.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	set, err := req.dataSet()
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.checkPointCount(set.NumberOfCells()); err != nil {
		writeError(w, err)
		return
	}

	opts := a.treeOptions(req.buildParams)
	if req.Cuts != nil {
		opts = append(opts, kdtree.WithCuts(req.Cuts))
	}

	tree := kdtree.New(opts...)
	if err := tree.SetDataSets(set); err != nil {
		writeError(w, err)
		return
	}
	if err := tree.Build(); err != nil {
		writeError(w, err)
		return
	}

	a.addIndex(w, req.Name, tree)
}

func (a *API) addIndex(w http.ResponseWriter, name string, tree *kdtree.Tree) {
	idx, err := a.Store.Add(name, tree)
	if err != nil {
		writeError(w, err)
		return
	}

	logs.WithTag("index_id", idx.ID).
		WithTag("name", name).
		WithTag("mode", string(tree.Mode())).
		WithTag("regions", tree.NumberOfRegions()).
		Info("index created")

	writeJSON(w, http.StatusCreated, indexInfo(idx))
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	indexes := a.Store.List()

	infos := make([]IndexInfo, len(indexes))
	for i, idx := range indexes {
		infos[i] = indexInfo(idx)
	}
	writeJSON(w, http.StatusOK, infos)
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	idx, err := a.Store.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, indexInfo(idx))
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.Store.Delete(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}

	logs.WithTag("index_id", r.PathValue("id")).Info("index deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleCuts(w http.ResponseWriter, r *http.Request) {
	a.withTree(w, r, func(tree *kdtree.Tree) (any, error) {
		return tree.Cuts()
	})
}

func (a *API) handleNodes(w http.ResponseWriter, r *http.Request) {
	a.withTree(w, r, func(tree *kdtree.Tree) (any, error) {
		return tree.Nodes()
	})
}

// withTree runs fn on the tree of the index named in the path, under its
// read lock, and writes its result.
func (a *API) withTree(w http.ResponseWriter, r *http.Request, fn func(*kdtree.Tree) (any, error)) {
	idx, err := a.Store.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var res any
	err = idx.Read(func(tree *kdtree.Tree) error {
		var ferr error
		res, ferr = fn(tree)
		return ferr
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleClosest(w http.ResponseWriter, r *http.Request) {
	var q models.Query
	if err := a.decode(r, &q); err != nil {
		writeError(w, err)
		return
	}

	q.Type = models.QueryClosest
	if q.N > 0 {
		q.Type = models.QueryClosestN
	}
	a.runQuery(w, r, q)
}

func (a *API) handleQuery(queryType models.QueryType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q models.Query
		if err := a.decode(r, &q); err != nil {
			writeError(w, err)
			return
		}

		q.Type = queryType
		a.runQuery(w, r, q)
	}
}

func (a *API) runQuery(w http.ResponseWriter, r *http.Request, q models.Query) {
	q.IndexID = r.PathValue("id")

	res, err := a.Store.Query(q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type duplicatesRequest struct {
	Tolerance float64 `json:"tolerance"`
}

func (a *API) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	var req duplicatesRequest
	if err := a.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	a.withTree(w, r, func(tree *kdtree.Tree) (any, error) {
		canonical, err := tree.BuildMapForDuplicatePoints(req.Tolerance)
		if err != nil {
			return nil, err
		}
		return struct {
			Map []int `json:"map"`
		}{Map: canonical}, nil
	})
}

type intersectRequest struct {
	Min           *models.Vec `json:"min"`
	Max           *models.Vec `json:"max"`
	Center        *models.Vec `json:"center"`
	Radius        float64     `json:"radius"`
	Cell          *cellShape  `json:"cell"`
	UseDataBounds *bool       `json:"use_data_bounds"`
	Regions       []int       `json:"regions"`
}

type cellShape struct {
	Type   string       `json:"type"`
	Points []models.Vec `json:"points"`
}

func (a *API) handleIntersect(w http.ResponseWriter, r *http.Request) {
	var req intersectRequest
	if err := a.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	useDataBounds := a.Flags.IsSet(featureflag.FlagUseDataBounds)
	if req.UseDataBounds != nil {
		useDataBounds = *req.UseDataBounds
	}

	a.withTree(w, r, func(tree *kdtree.Tree) (any, error) {
		var regions []int
		var err error

		switch {
		case req.Min != nil && req.Max != nil:
			box := geometry.BoundsOf(req.Min.R3(), req.Max.R3())
			regions, err = tree.IntersectsBoxRegions(box, useDataBounds, req.Regions...)

		case req.Center != nil:
			regions, err = tree.IntersectsSphere2Regions(req.Center.R3(), req.Radius*req.Radius, useDataBounds, req.Regions...)

		case req.Cell != nil:
			var cell dataset.Cell
			if cell, err = req.Cell.cell(); err != nil {
				return nil, err
			}
			regions, err = tree.IntersectsCellRegions(cell, -1, useDataBounds, req.Regions...)

		default:
			return nil, errors.New("intersection needs a box, a sphere or a cell").
				WithType(ErrTypeBadRequest)
		}

		if err != nil {
			return nil, err
		}
		return regionList{Regions: nonNil(regions)}, nil
	})
}

func (c cellShape) cell() (dataset.Cell, error) {
	ct, err := dataset.ParseCellType(c.Type)
	if err != nil {
		return nil, err
	}

	points := make(dataset.Points, len(c.Points))
	for i, p := range c.Points {
		points[i] = p.R3()
	}
	return dataset.NewCell(ct, points...)
}

type regionList struct {
	Regions []int `json:"regions"`
}

type cellListsRequest struct {
	Regions  []int `json:"regions"`
	Boundary bool  `json:"boundary"`
}

type cellListsResponse struct {
	Cells    []int `json:"cells"`
	Boundary []int `json:"boundary,omitempty"`
}

func (a *API) handleCellLists(w http.ResponseWriter, r *http.Request) {
	var req cellListsRequest
	if err := a.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	idx, err := a.Store.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	// Cell lists are cached in the tree.
	var res cellListsResponse
	err = idx.Write(func(tree *kdtree.Tree) error {
		var lerr error
		res.Cells, res.Boundary, lerr = tree.CellLists(req.Regions, 0, req.Boundary)
		return lerr
	})
	if err != nil {
		writeError(w, err)
		return
	}

	res.Cells = nonNil(res.Cells)
	writeJSON(w, http.StatusOK, res)
}

type convexResponse struct {
	Boxes []geometry.Bounds `json:"boxes"`
}

func (a *API) handleConvex(w http.ResponseWriter, r *http.Request) {
	var req regionList
	if err := a.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	a.withTree(w, r, func(tree *kdtree.Tree) (any, error) {
		boxes, err := tree.MinimalNumberOfConvexSubRegions(req.Regions)
		if err != nil {
			return nil, err
		}
		return convexResponse{Boxes: boxes}, nil
	})
}

func nonNil(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return ids
}

func (a *API) decode(r *http.Request, v any) error {
	limit := a.Defaults.MaxRequestBytes
	if limit <= 0 {
		limit = defaultMaxRequestBytes
	}

	if err := json.NewDecoder(io.LimitReader(r.Body, limit)).Decode(v); err != nil {
		return errors.New("decoding request body failed").
			WithType(ErrTypeBadRequest).
			Wrap(err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logs.Error(errors.New("encoding response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	status := statusCode(err)
	if status >= http.StatusInternalServerError {
		logs.Error(err)
	} else {
		logs.WithTag("status", status).Debug(err)
	}

	writeJSON(w, status, errorResponse{
		Error: err.Error(),
		Type:  errors.Type(err),
	})
}

func statusCode(err error) int {
	switch errors.Type(err) {
	case models.ErrTypeIndexNotFound:
		return http.StatusNotFound

	case ErrTypeBadRequest,
		models.ErrTypeInvalidQuery,
		models.ErrTypeInvalidIndex,
		dataset.ErrTypeInvalidCell,
		bsp.ErrTypeInvalidCuts,
		bsp.ErrTypeNoCuts,
		bsp.ErrTypeRegionOutOfRange,
		kdtree.ErrTypeInvalidArgument,
		kdtree.ErrTypeRegionOutOfRange,
		kdtree.ErrTypeNoCells,
		kdtree.ErrTypeNoPoints:
		return http.StatusBadRequest

	case kdtree.ErrTypeNotBuilt, kdtree.ErrTypeNoCellLists:
		return http.StatusConflict

	case ErrTypeTooManyPoints:
		return http.StatusRequestEntityTooLarge

	case kdtree.ErrTypeResourceExhausted:
		return http.StatusInsufficientStorage

	default:
		return http.StatusInternalServerError
	}
}
