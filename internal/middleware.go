package internal

import (
	"context"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/bhajanbook/internal/ctxhelper"
	"github.com/derWhity/bhajanbook/internal/log"
)

var (
	endpointCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bhajanbook_endpoint_calls_total",
		Help: "Number of API endpoint calls by endpoint and result",
	}, []string{"endpoint", "result"})
	endpointDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bhajanbook_endpoint_duration_seconds",
		Help:    "Time spent inside the API endpoints",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)

// Instrumented is a middleware that logs every call of the wrapped endpoint and records its duration and result
func Instrumented(name string) endpoint.Middleware {
	return func(next endpoint.Endpoint) endpoint.Endpoint {
		return func(ctx context.Context, request interface{}) (response interface{}, err error) {
			logger := ctxhelper.LoggerOr(ctx, logrus.NewEntry(logrus.StandardLogger())).WithField(log.FldEndpoint, name)
			ctx = ctxhelper.WithLogger(ctx, logger)
			defer func(begin time.Time) {
				took := time.Since(begin)
				endpointDuration.WithLabelValues(name).Observe(took.Seconds())
				result := "ok"
				if err != nil {
					result = "error"
				}
				endpointCalls.WithLabelValues(name, result).Inc()
				entry := logger.WithFields(logrus.Fields{"took": took, "result": result})
				if err != nil {
					entry.WithError(err).Debug("Endpoint call failed")
				} else {
					entry.Debug("Endpoint called")
				}
			}(time.Now())
			return next(ctx, request)
		}
	}
}
