package instrument

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Middleware propagates (or generates) an X-Trace-ID, puts it into the
// request context, and records request count and latency per route.
func Middleware(m *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		traceID := c.Get("X-Trace-ID")
		if traceID == "" {
			traceID = newTraceID()
		}
		c.SetUserContext(WithTraceID(c.UserContext(), traceID))
		c.Set("X-Trace-ID", traceID)

		err := c.Next()

		if m != nil {
			status := c.Response().StatusCode()
			if err != nil {
				status = fiber.StatusInternalServerError
				if se, ok := err.(interface{ StatusCode() int }); ok {
					status = se.StatusCode()
				} else if fe, ok := err.(*fiber.Error); ok {
					status = fe.Code
				}
			}
			route := c.Route().Path
			m.requests.WithLabelValues(c.Method(), route, resultLabel(status)).Inc()
			m.latency.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		}
		return err
	}
}

// Handler exposes the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
