package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"devdash/internal/analytics"
	"devdash/internal/apperror"
	"devdash/internal/models"
)

func currentUser(c *gin.Context) *models.User {
	v, ok := c.Get("user")
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// respondError maps the error taxonomy onto status codes and the standard
// error envelope.
func (s *Server) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_parameter", "message": err.Error()}})
	case errors.Is(err, apperror.ErrBadCredential):
		c.JSON(http.StatusBadGateway, gin.H{"error": gin.H{"code": "github_unauthorized", "message": "github rejected the stored access token; re-authenticate"}})
	case errors.Is(err, apperror.ErrUpstreamUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": gin.H{"code": "upstream_unavailable", "message": "github api request failed"}})
	case errors.Is(err, apperror.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "unauthorized", "message": "authentication required"}})
	case errors.Is(err, apperror.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "not_found", "message": err.Error()}})
	default:
		s.log.Error("request_failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "internal_error", "message": "internal error"}})
	}
}

func (s *Server) getMe(c *gin.Context) {
	user := currentUser(c)
	c.JSON(http.StatusOK, user.Response())
}

func (s *Server) refreshData(c *gin.Context) {
	user := currentUser(c)

	ctx, cancel := s.ctx(c)
	defer cancel()

	deleted, err := s.analytics.Refresh(ctx, user.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"deleted": deleted,
		"message": fmt.Sprintf("Cache cleared. %d entries deleted.", deleted),
	})
}

func (s *Server) getStats(c *gin.Context) {
	user := currentUser(c)

	ctx, cancel := s.aggCtx(c)
	defer cancel()

	stats, err := s.analytics.Stats(ctx, user)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) getContributions(c *gin.Context) {
	user := currentUser(c)

	days := analytics.DefaultDays
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(c, apperror.Validation("days", "must be an integer"))
			return
		}
		days = parsed
	}

	ctx, cancel := s.aggCtx(c)
	defer cancel()

	points, err := s.analytics.Contributions(ctx, user, days)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, points)
}

func (s *Server) getLanguages(c *gin.Context) {
	user := currentUser(c)

	ctx, cancel := s.aggCtx(c)
	defer cancel()

	breakdown, err := s.analytics.Languages(ctx, user)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, breakdown)
}

func (s *Server) getRepositories(c *gin.Context) {
	user := currentUser(c)

	limit := analytics.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(c, apperror.Validation("limit", "must be an integer"))
			return
		}
		limit = parsed
	}

	ctx, cancel := s.aggCtx(c)
	defer cancel()

	repos, err := s.analytics.TopRepositories(ctx, user, limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, repos)
}

func (s *Server) getHeatmap(c *gin.Context) {
	user := currentUser(c)

	ctx, cancel := s.aggCtx(c)
	defer cancel()

	points, err := s.analytics.Heatmap(ctx, user)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, points)
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	dbStatus := "connected"
	if err := s.db.Pool.Ping(ctx); err != nil {
		dbStatus = "disconnected"
	}

	redisStatus := "connected"
	if err := s.redis.RDB().Ping(ctx).Err(); err != nil {
		redisStatus = "disconnected"
	}

	// requests served today (redis counter, best effort)
	var requestsToday int64
	requestsKey := fmt.Sprintf("requests:served:%s", time.Now().UTC().Format("2006-01-02"))
	if count, err := s.redis.GetInt(ctx, requestsKey); err == nil {
		requestsToday = count
	}

	status := "healthy"
	if dbStatus != "connected" {
		status = "unhealthy"
	}

	response := gin.H{
		"status":         status,
		"database":       dbStatus,
		"redis":          redisStatus,
		"github_breaker": s.gh.BreakerState(),
		"requests_today": requestsToday,
	}

	if status == "unhealthy" {
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}
