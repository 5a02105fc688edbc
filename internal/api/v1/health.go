// internal/api/v1/health.go
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// initHealthRoutes registers the liveness and readiness probes on the
// root of the server, outside the versioned group.
func (c *Controller) initHealthRoutes() {
	c.Echo.GET("/health", c.Health)
	c.Echo.GET("/ready", c.Ready)
}

// Health handles GET /health. It always reports healthy while the
// process is serving.
func (c *Controller) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready handles GET /ready. Readiness requires a reachable database.
func (c *Controller) Ready(ctx echo.Context) error {
	if _, err := c.DS.CountVotes(0); err != nil {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  "database not reachable",
		})
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
