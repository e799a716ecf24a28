package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/developer-yasir/support-panel/internal/observability"
)

// ClientCounter reports connected push clients.
type ClientCounter interface {
	Count() int
}

// MetricsHandler exposes the in-memory counters.
type MetricsHandler struct {
	metrics *observability.Metrics
	push    ClientCounter
}

// NewMetricsHandler constructs handler. push may be nil.
func NewMetricsHandler(metrics *observability.Metrics, push ClientCounter) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, push: push}
}

// Get returns a snapshot of every counter.
func (h *MetricsHandler) Get(c *fiber.Ctx) error {
	resp := fiber.Map{"metrics": h.metrics.Snapshot()}
	if h.push != nil {
		resp["pushClients"] = h.push.Count()
	}
	return c.JSON(resp)
}
