package server

import (
	"context"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

var (
	httpMetricsOnce sync.Once
	httpRequests    otelmetric.Int64Counter
	httpLatency     otelmetric.Float64Histogram
	jobsAccepted    otelmetric.Int64Counter
)

func initHTTPMetrics(log *zap.Logger) {
	meter := otel.Meter("tosclarity/server")
	var err error
	httpRequests, err = meter.Int64Counter(
		"tosclarity_http_requests_total",
		otelmetric.WithDescription("HTTP requests by method, route and status"),
	)
	if err != nil {
		log.Warn("http metrics init", zap.String("instrument", "tosclarity_http_requests_total"), zap.Error(err))
	}
	httpLatency, err = meter.Float64Histogram(
		"tosclarity_http_request_duration",
		otelmetric.WithDescription("HTTP request latency by method and route"),
		otelmetric.WithUnit("s"),
	)
	if err != nil {
		log.Warn("http metrics init", zap.String("instrument", "tosclarity_http_request_duration"), zap.Error(err))
	}
	jobsAccepted, err = meter.Int64Counter(
		"tosclarity_jobs_accepted_total",
		otelmetric.WithDescription("Analysis jobs accepted for processing"),
	)
	if err != nil {
		log.Warn("http metrics init", zap.String("instrument", "tosclarity_jobs_accepted_total"), zap.Error(err))
	}
}

func recordJobAccepted(ctx context.Context) {
	if jobsAccepted != nil {
		jobsAccepted.Add(ctx, 1)
	}
}

// instrument records request counts and latency by route template so that
// path parameters do not explode label cardinality.
func instrument(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		ctx := c.Request().Context()
		method := attribute.String("method", c.Request().Method)
		if httpRequests != nil {
			httpRequests.Add(ctx, 1, otelmetric.WithAttributes(
				method, attribute.String("route", route), attribute.Int("status", c.Response().Status)))
		}
		if httpLatency != nil {
			httpLatency.Record(ctx, time.Since(start).Seconds(), otelmetric.WithAttributes(
				method, attribute.String("route", route)))
		}
		return nil
	}
}
