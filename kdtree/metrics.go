package kdtree

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	modeLabel    = "mode"
	errTypeLabel = "error_type"
)

var (
	builds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kdtree_builds",
		Help: "The number of k-d tree builds.",
	}, []string{
		modeLabel,
		errTypeLabel,
	})

	buildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "kdtree_build_duration_seconds",
		Help: "The time taken to build k-d trees.",
	}, []string{
		modeLabel,
	})

	buildRegions = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kdtree_regions",
		Help:    "The number of regions of built k-d trees.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 16),
	}, []string{
		modeLabel,
	})
)

func instrumentBuild(mode Mode, start time.Time, regions int, err error) {
	if err != nil {
		builds.With(prometheus.Labels{
			modeLabel:    string(mode),
			errTypeLabel: errors.Type(err),
		}).Inc()
		return
	}

	builds.With(prometheus.Labels{
		modeLabel:    string(mode),
		errTypeLabel: "",
	}).Inc()

	buildDuration.With(prometheus.Labels{
		modeLabel: string(mode),
	}).Observe(time.Since(start).Seconds())

	buildRegions.With(prometheus.Labels{
		modeLabel: string(mode),
	}).Observe(float64(regions))
}
