package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"devdash/internal/analytics"
	"devdash/internal/auth"
	"devdash/internal/config"
	"devdash/internal/db"
	"devdash/internal/github"
	"devdash/internal/redis"
)

type Server struct {
	log       *slog.Logger
	db        *db.DB
	redis     *redis.Client
	cfg       config.Config
	router    *gin.Engine
	oauth     *auth.GitHubProvider
	tokens    *auth.TokenService
	users     *auth.UserStore
	gh        *github.Client
	analytics *analytics.Service
}

func NewServer(
	log *slog.Logger,
	dbConn *db.DB,
	redisClient *redis.Client,
	cfg config.Config,
	oauthProvider *auth.GitHubProvider,
	tokenService *auth.TokenService,
	userStore *auth.UserStore,
	ghClient *github.Client,
	analyticsService *analytics.Service,
) *Server {
	// the mode must be set before the engine is constructed; tests pin
	// TestMode themselves
	if gin.Mode() != gin.TestMode {
		gin.SetMode(ginModeFor(cfg.LogLevel))
	}

	s := &Server{
		log:       log,
		db:        dbConn,
		redis:     redisClient,
		cfg:       cfg,
		router:    gin.New(),
		oauth:     oauthProvider,
		tokens:    tokenService,
		users:     userStore,
		gh:        ghClient,
		analytics: analyticsService,
	}

	r := s.router
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())
	r.Use(s.loggingMiddleware())
	r.Use(s.inputValidationMiddleware())
	r.Use(s.rateLimitMiddleware())

	authRoutes := r.Group("/api/auth")
	{
		authRoutes.GET("/github", s.githubLogin)
		authRoutes.GET("/callback", s.githubCallback)
		authRoutes.POST("/logout", s.logout)
		authRoutes.GET("/status", s.authStatus)
	}

	users := r.Group("/api/users")
	users.Use(s.authMiddleware())
	{
		users.GET("/me", s.getMe)
		users.POST("/me/refresh", s.refreshData)
	}

	an := r.Group("/api/analytics")
	an.Use(s.authMiddleware())
	{
		an.GET("/stats", s.getStats)
		an.GET("/contributions", s.getContributions)
		an.GET("/languages", s.getLanguages)
		an.GET("/repositories", s.getRepositories)
		an.GET("/heatmap", s.getHeatmap)
	}

	r.GET("/api/v1/health", s.health)
	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	return s
}

// ginModeFor keeps gin's request dumps out of production logs unless the
// service itself is running at debug level.
func ginModeFor(logLevel string) string {
	if strings.EqualFold(strings.TrimSpace(logLevel), "debug") {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 10*time.Second)
}

// aggregation requests fan out into many paginated upstream calls
func (s *Server) aggCtx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 2*time.Minute)
}
