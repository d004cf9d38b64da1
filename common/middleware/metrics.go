package middleware

import (
	"context"
	"time"

	awspkg "storefront-gateway/pkg/aws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MetricsMiddleware publishes request count, latency and error counters for
// every request, keyed by route template. Publishing happens off the request
// path.
func MetricsMiddleware(metrics *awspkg.MetricsClient, serviceName string) gin.HandlerFunc {
	if !metrics.IsEnabled() {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		data := requestMetrics(serviceName, c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metrics.Put(ctx, data...); err != nil {
				zap.L().Debug("HTTP metrics not published", zap.Error(err))
			}
		}()
	}
}

func requestMetrics(service, method, route string, status int, d time.Duration) []awspkg.Datum {
	if route == "" {
		route = "unmatched"
	}
	dims := map[string]string{
		"Service": service,
		"Method":  method,
		"Path":    route,
		"Status":  statusCodeToRange(status),
	}

	data := []awspkg.Datum{
		awspkg.Count(awspkg.MetricHTTPRequests, dims),
		awspkg.Latency(awspkg.MetricHTTPLatency, d, dims),
	}
	switch {
	case status >= 500:
		data = append(data, awspkg.Count(awspkg.MetricHTTPErrors, dims), awspkg.Count(awspkg.MetricHTTP5xx, dims))
	case status >= 400:
		data = append(data, awspkg.Count(awspkg.MetricHTTPErrors, dims), awspkg.Count(awspkg.MetricHTTP4xx, dims))
	}
	return data
}

func statusCodeToRange(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "unknown"
	}
}
