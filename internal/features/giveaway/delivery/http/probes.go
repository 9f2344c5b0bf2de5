package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// KeepAliveText is served at "/" so uptime pingers see a live process.
const KeepAliveText = "Giveaway bot is running"

// RegisterProbes mounts the keep-alive page and health probes. ready is
// called with a short timeout on every /ready request.
func RegisterProbes(router *gin.Engine, service string, ready func(ctx context.Context) error) {
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, KeepAliveText)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   service,
		})
	})

	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := ready(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unready",
				"error":   "store unavailable",
				"details": err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
			"service":   service,
		})
	})
}
