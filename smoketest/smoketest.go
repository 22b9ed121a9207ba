// Package smoketest checks that k-d tree queries agree with a brute force
// search on a random point cloud.
package smoketest

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/kdlocator/dataset"
	"github.com/aukilabs/kdlocator/kdtree"
	"github.com/segmentio/encoding/json"
	"github.com/valyala/fastrand"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	ErrTypeMismatch = "smoke-test-mismatch"

	StatusSuccess = "success"
	StatusFailed  = "failed"

	defaultPoints   = 10000
	defaultQueries  = 200
	defaultMinCells = 16
	defaultN        = 5
	maxPoints       = 1000000
	maxQueries      = 100000

	distanceTolerance = 1e-9
)

type Options struct {
	// The number of random points indexed.
	Points int `json:"points"`

	// The number of random queries checked.
	Queries int `json:"queries"`

	// The number of points per region.
	MinCells int `json:"min_cells"`

	// The random seed. 0 picks a random one.
	Seed uint32 `json:"seed"`

	// Stops the test when elapsed. 0 means no timeout.
	Timeout time.Duration `json:"timeout"`
}

func (o Options) withDefaults() Options {
	if o.Points <= 0 {
		o.Points = defaultPoints
	}
	if o.Points > maxPoints {
		o.Points = maxPoints
	}
	if o.Queries <= 0 {
		o.Queries = defaultQueries
	}
	if o.Queries > maxQueries {
		o.Queries = maxQueries
	}
	if o.MinCells <= 0 {
		o.MinCells = defaultMinCells
	}
	if o.Seed == 0 {
		o.Seed = fastrand.Uint32()
	}
	return o
}

type Result struct {
	Status          string  `json:"status"`
	Seed            uint32  `json:"seed"`
	Points          int     `json:"points"`
	Queries         int     `json:"queries"`
	Regions         int     `json:"regions"`
	Levels          int     `json:"levels"`
	Mismatches      int     `json:"mismatches"`
	BuildMilliSec   float64 `json:"build_ms"`
	LatencyMilliSec float64 `json:"latency_ms"`
	Error           string  `json:"error,omitempty"`
}

// Run builds an index over random points and checks closest point, closest
// N points and radius queries against a brute force search.
func Run(ctx context.Context, opts Options) (Result, error) {
	opts = opts.withDefaults()
	if opts.Timeout > 0 {
		var cancel func()
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	res := Result{
		Status:  StatusFailed,
		Seed:    opts.Seed,
		Points:  opts.Points,
		Queries: opts.Queries,
	}

	var rng fastrand.RNG
	rng.Seed(opts.Seed)

	points := make(dataset.Float32Points, 0, 3*opts.Points)
	for i := 0; i < opts.Points; i++ {
		points = append(points, randomFloat(&rng), randomFloat(&rng), randomFloat(&rng))
	}

	tree := kdtree.New(kdtree.WithMinCells(opts.MinCells))

	start := time.Now()
	if err := tree.BuildFromPoints(points); err != nil {
		return res, fail(&res, errors.New("building smoke test index failed").Wrap(err))
	}
	res.BuildMilliSec = milliseconds(time.Since(start))
	res.Regions = tree.NumberOfRegions()
	res.Levels = tree.Level()

	var queryTime time.Duration
	for i := 0; i < opts.Queries; i++ {
		if err := ctx.Err(); err != nil {
			return res, fail(&res, errors.New("smoke test interrupted").
				WithTag("queries_done", i).
				Wrap(err))
		}

		p := r3.Vec{
			X: 1.2*float64(randomFloat(&rng)) - 0.1,
			Y: 1.2*float64(randomFloat(&rng)) - 0.1,
			Z: 1.2*float64(randomFloat(&rng)) - 0.1,
		}
		radius := 0.05 * float64(randomFloat(&rng))

		start := time.Now()
		ok, err := check(tree, points, p, radius)
		queryTime += time.Since(start)
		if err != nil {
			return res, fail(&res, err)
		}
		if !ok {
			res.Mismatches++
			logs.WithTag("seed", opts.Seed).
				WithTag("query", p).
				WithTag("radius", radius).
				Debug("smoke test mismatch")
		}
	}

	res.LatencyMilliSec = milliseconds(queryTime) / float64(opts.Queries)

	if res.Mismatches != 0 {
		return res, fail(&res, errors.New("index disagrees with brute force").
			WithType(ErrTypeMismatch).
			WithTag("seed", opts.Seed).
			WithTag("mismatches", res.Mismatches))
	}

	res.Status = StatusSuccess
	return res, nil
}

func fail(res *Result, err error) error {
	res.Status = StatusFailed
	res.Error = err.Error()
	return err
}

func check(tree *kdtree.Tree, points dataset.PointSet, p r3.Vec, radius float64) (bool, error) {
	dists := make([]float64, points.Len())
	minDist := math.Inf(1)
	for i := range dists {
		dists[i] = r3.Norm2(r3.Sub(points.Point(i), p))
		minDist = math.Min(minDist, dists[i])
	}

	_, dist2, err := tree.FindClosestPoint(p)
	if err != nil {
		return false, err
	}
	if math.Abs(dist2-minDist) > distanceTolerance {
		return false, nil
	}

	closest, err := tree.FindClosestNPoints(defaultN, p)
	if err != nil {
		return false, err
	}
	if len(closest) != min(defaultN, len(dists)) {
		return false, nil
	}
	for i := 1; i < len(closest); i++ {
		if dists[closest[i]] < dists[closest[i-1]] {
			return false, nil
		}
	}
	var closer int
	for _, d := range dists {
		if d < dists[closest[len(closest)-1]] {
			closer++
		}
	}
	if closer >= len(closest) {
		return false, nil
	}

	inRadius, err := tree.FindPointsWithinRadius(radius, p)
	if err != nil {
		return false, err
	}
	var expected int
	for _, d := range dists {
		if d <= radius*radius {
			expected++
		}
	}
	return len(inRadius) == expected, nil
}

func randomFloat(rng *fastrand.RNG) float32 {
	return float32(rng.Uint32n(1<<24)) / (1 << 24)
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// HandleSmokeTest runs a smoke test with the options found in the request
// body, defaults otherwise, and writes the JSON result.
func HandleSmokeTest(ctx context.Context, defaults Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := defaults
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(Result{
					Status: StatusFailed,
					Error:  errors.New("decoding smoke test options failed").Wrap(err).Error(),
				})
				return
			}
		}

		res, err := Run(ctx, opts)
		status := http.StatusOK
		if err != nil {
			logs.WithTag("seed", res.Seed).
				WithTag("points", res.Points).
				Warn(errors.New("smoke test failed").Wrap(err))
			status = http.StatusInternalServerError
		} else {
			logs.WithTag("seed", res.Seed).
				WithTag("points", res.Points).
				WithTag("regions", res.Regions).
				WithTag("build_ms", res.BuildMilliSec).
				WithTag("latency_ms", res.LatencyMilliSec).
				Info("smoke test succeeded")
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(res)
	}
}
