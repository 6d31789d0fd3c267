package importer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	importsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bhajanbook_imports_total",
		Help: "Finished import jobs by final status",
	}, []string{"status"})

	itemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bhajanbook_import_items_total",
		Help: "Processed manifest items by result",
	}, []string{"result"})
)
