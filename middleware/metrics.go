package middleware

import (
	"time"

	"github.com/anisha-singhal/Lumera-sub000/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics records request counts and latency. The route template is used as
// the path label so order numbers do not explode cardinality.
func Metrics(rec *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		rec.ObserveHTTP(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
