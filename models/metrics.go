package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	modeLabel = "mode"
)

var (
	indexCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "indexes",
		Help: "The number of indexes.",
	}, []string{modeLabel})

	indexCountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexes_total",
		Help: "The total number of indexes created.",
	}, []string{modeLabel})
)

func instrumentIncreaseIndexGauge(mode string) {
	indexCount.
		With(prometheus.Labels{modeLabel: mode}).
		Inc()
}

func instrumentDecreaseIndexGauge(mode string) {
	indexCount.
		With(prometheus.Labels{modeLabel: mode}).
		Dec()
}

func instrumentCountIndex(mode string) {
	indexCountTotal.
		With(prometheus.Labels{modeLabel: mode}).
		Inc()
}
