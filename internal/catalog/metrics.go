package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bhajanbook_catalog_queries_total",
		Help: "Catalog queries by the source that answered them",
	}, []string{"source"})

	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bhajanbook_snapshot_downloads_total",
		Help: "Offline snapshot downloads by result",
	}, []string{"result"})

	snapshotSongs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bhajanbook_snapshot_songs",
		Help: "Number of songs in the most recently downloaded snapshot",
	})
)
