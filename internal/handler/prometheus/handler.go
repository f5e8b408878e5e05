package prometheus

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/humanplus/posture-console/pkg/metrics"
)

type Handler struct {
	gatherer prometheus.Gatherer
	metrics  *metrics.Metrics
}

func New(gatherer prometheus.Gatherer, m *metrics.Metrics) *Handler {
	return &Handler{gatherer: gatherer, metrics: m}
}

// Middleware records request count, latency and errors per route template.
func (h *Handler) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		code := c.Writer.Status()
		status := strconv.Itoa(code)
		method := c.Request.Method

		h.metrics.HTTPRequests.WithLabelValues(method, path, status).Inc()
		h.metrics.HTTPDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		if code >= 500 {
			h.metrics.HTTPErrors.WithLabelValues(method, path, "5xx").Inc()
		} else if code >= 400 {
			h.metrics.HTTPErrors.WithLabelValues(method, path, "4xx").Inc()
		}
	}
}

func (h *Handler) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
}
