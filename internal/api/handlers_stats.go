package api

import (
	"net/http"

	"hexauth-server/internal/cache"
	"hexauth-server/internal/database"

	"github.com/gin-gonic/gin"
)

// handleStats serves the public platform counters. The snapshot is
// cached for an hour; a cold or unavailable cache falls through to the
// database.
func (s *Server) handleStats(c *gin.Context) {
	ctx := c.Request.Context()

	if s.cache != nil {
		var cached database.PlatformStats
		if err := s.cache.GetJSON(ctx, cache.StatsKey(), &cached); err == nil {
			c.JSON(http.StatusOK, gin.H{"success": true, "stats": cached})
			return
		}
	}

	stats, err := s.repo.GetPlatformStats(ctx)
	if err != nil {
		s.log.WithError(err).Error("stats query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}

	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, cache.StatsKey(), stats, cache.DefaultStatsTTL)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}
