package playlist

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var persistsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bhajanbook_playlist_persists_total",
	Help: "Background playlist persists by result",
}, []string{"result"})
