package middleware

import (
	"time"

	"github.com/MacJediWizard/orgwarden/internal/metrics"
	"github.com/gin-gonic/gin"
)

// HTTPMetrics records request counts and latency per route template, so
// path parameters do not explode label cardinality.
func HTTPMetrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
