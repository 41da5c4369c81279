package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hexauth-server/config"
	"hexauth-server/internal/auth"
	"hexauth-server/internal/database"
	"hexauth-server/internal/events"
	"hexauth-server/internal/guard"
	"hexauth-server/internal/identity"
	"hexauth-server/internal/license"
	"hexauth-server/internal/logging"
	"hexauth-server/internal/session"
	"hexauth-server/internal/subscription"
	"hexauth-server/internal/webhook"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Directory is the persisted lookup surface the handlers use directly,
// outside of what the domain services already wrap. *database.Repository
// satisfies it.
type Directory interface {
	GetApplication(ctx context.Context, ownerID, name string) (*database.Application, error)
	CreateApplication(ctx context.Context, ownerID, name, secret string) (*database.Application, error)
	ListApplicationsByOwner(ctx context.Context, ownerID string) ([]*database.Application, error)
	UpdateApplicationSettings(ctx context.Context, app *database.Application) error
	CountAppUsers(ctx context.Context, appID string) (int, error)
	CountLicenses(ctx context.Context, appID string) (int, error)

	GetAppVariable(ctx context.Context, appID, name string) (*database.AppVariable, error)
	SetAppVariable(ctx context.Context, appID, name, data string) error
	GetUserVariable(ctx context.Context, userID, appID, name string) (*database.UserVariable, error)
	SetUserVariable(ctx context.Context, userID, appID, name, data string) (bool, error)

	GetFile(ctx context.Context, appID, fileID string) (*database.File, error)
	CreateFile(ctx context.Context, appID, fileID, url string) (*database.File, error)
	GetWebhookEndpoint(ctx context.Context, appID, webhookID string) (*database.WebhookEndpoint, error)
	CreateWebhookEndpoint(ctx context.Context, appID, webhookID, url string, userAgent *string) (*database.WebhookEndpoint, error)

	GetChatChannel(ctx context.Context, appID, name string) (*database.ChatChannel, error)
	CreateChatChannel(ctx context.Context, appID, name string, delaySecs int) (*database.ChatChannel, error)
	ListChatMessages(ctx context.Context, channelID string, limit int) ([]*database.ChatMessage, error)
	LastChatMessageAt(ctx context.Context, channelID, author string) (*time.Time, error)
	AddChatMessage(ctx context.Context, channelID, author, message string) error

	AddUserLog(ctx context.Context, appID string, credential, pcUser *string, message string) error
	ListUserLogs(ctx context.Context, appID string, limit int) ([]*database.UserLog, error)

	AddBlacklistEntry(ctx context.Context, appID string, ip, hwid, reason *string) error
	AddWhitelistEntry(ctx context.Context, appID, ip string) error
	UnbanAppUser(ctx context.Context, userID string) error
	ResetUserHWID(ctx context.Context, userID string, cooldownUntil time.Time) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)

	GetPlatformStats(ctx context.Context) (*database.PlatformStats, error)
}

// StatsCache is the shared cache surface used for the public stats
// snapshot and chat-send throttling. *cache.CacheService satisfies it.
type StatsCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Ping(ctx context.Context) error
}

// Deps bundles everything the server routes requests into
type Deps struct {
	Repo          Directory
	DB            *database.DB // may be nil in tests; health reports degraded
	Cache         StatsCache
	Guard         *guard.Guard
	Identity      *identity.Service
	Licenses      *license.Service
	Subscriptions *subscription.Service
	Sessions      *session.Manager
	AuthService   *auth.Service
	JWTManager    *auth.JWTManager
	Sender        *webhook.Sender
	EventBus      *events.EventBus
}

// Server is the HTTP API server: the legacy client wire protocol, the
// public stats endpoint, the admin API and the live activity feed.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	cfg        config.ServerConfig
	log        *logging.Logger

	repo     Directory
	db       *database.DB
	cache    StatsCache
	guard    *guard.Guard
	identity *identity.Service
	licenses *license.Service
	subs     *subscription.Service
	sessions *session.Manager
	authSvc  *auth.Service
	jwt      *auth.JWTManager
	sender   *webhook.Sender
	eventBus *events.EventBus
	wsHub    *WSHub
}

// NewServer wires the router and middleware
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins == "" || cfg.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:   router,
		cfg:      cfg,
		log:      logging.WithComponent("api"),
		repo:     deps.Repo,
		db:       deps.DB,
		cache:    deps.Cache,
		guard:    deps.Guard,
		identity: deps.Identity,
		licenses: deps.Licenses,
		subs:     deps.Subscriptions,
		sessions: deps.Sessions,
		authSvc:  deps.AuthService,
		jwt:      deps.JWTManager,
		sender:   deps.Sender,
		eventBus: deps.EventBus,
		wsHub:    NewWSHub(),
	}

	go server.wsHub.Run()
	if deps.EventBus != nil {
		server.wsHub.AttachBus(deps.EventBus)
	}

	server.setupRoutes()

	return server
}

// Router exposes the underlying gin engine for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("", s.rateLimitMiddleware("client"), s.handleClient)
		v1.GET("/stats", s.rateLimitMiddleware("stats"), s.handleStats)
		v1.GET("/live", s.handleLive)
	}

	authGroup := s.router.Group("/api/auth")
	authGroup.Use(s.rateLimitMiddleware("auth"))
	{
		authGroup.POST("/register", s.handleOwnerRegister)
		authGroup.POST("/login", s.handleOwnerLogin)
	}

	admin := s.router.Group("/api/admin")
	admin.Use(s.rateLimitMiddleware("admin"), auth.Middleware(s.jwt))
	{
		admin.GET("/me", s.handleOwnerAccount)
		admin.PUT("/me/password", s.handleChangePassword)

		admin.POST("/apps", s.handleCreateApp)
		admin.GET("/apps", s.handleListApps)
		admin.GET("/apps/:name", s.handleGetApp)
		admin.PATCH("/apps/:name", s.handleUpdateApp)

		admin.POST("/apps/:name/licenses", s.handleGenerateLicenses)
		admin.GET("/apps/:name/licenses", s.handleListLicenses)
		admin.DELETE("/apps/:name/licenses/:key", s.handleDeleteLicense)
		admin.POST("/apps/:name/licenses/:key/ban", s.handleBanLicense)
		admin.POST("/apps/:name/licenses/:key/unban", s.handleUnbanLicense)

		admin.POST("/apps/:name/plans", s.handleCreatePlan)
		admin.GET("/apps/:name/plans", s.handleListPlans)

		admin.GET("/apps/:name/users/:username", s.handleGetUser)
		admin.POST("/apps/:name/users/:username/ban", s.handleBanUser)
		admin.POST("/apps/:name/users/:username/unban", s.handleUnbanUser)
		admin.POST("/apps/:name/users/:username/reset-hwid", s.handleResetHWID)
		admin.GET("/apps/:name/users/:username/subscriptions", s.handleListUserSubs)
		admin.POST("/apps/:name/subscriptions/:grant/pause", s.handlePauseGrant)
		admin.POST("/apps/:name/subscriptions/:grant/unpause", s.handleUnpauseGrant)
		admin.DELETE("/apps/:name/subscriptions/:grant", s.handleRevokeGrant)

		admin.POST("/apps/:name/blacklist", s.handleAddBlacklist)
		admin.POST("/apps/:name/whitelist", s.handleAddWhitelist)

		admin.POST("/apps/:name/variables", s.handleSetAppVariable)
		admin.POST("/apps/:name/files", s.handleCreateFile)
		admin.POST("/apps/:name/webhooks", s.handleCreateWebhook)
		admin.POST("/apps/:name/channels", s.handleCreateChannel)

		admin.GET("/apps/:name/logs", s.handleListLogs)
		admin.GET("/apps/:name/online", s.handleListOnline)
		// the sweep crosses tenants, so plain owners are kept out
		admin.DELETE("/sessions/expired", auth.RequireAdmin(), s.handlePurgeSessions)
	}
}

// rateLimitMiddleware rejects requests over the fixed window for the
// endpoint group. The limiter fails open when the counter store is down.
func (s *Server) rateLimitMiddleware(group string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.guard != nil && s.guard.RateLimited(c.Request.Context(), group, c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": "Too many requests",
			})
			return
		}
		c.Next()
	}
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info("API server listening", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "ok"
	if s.db == nil {
		dbStatus = "unavailable"
	} else if err := s.db.HealthCheck(ctx); err != nil {
		dbStatus = "error"
	}

	cacheStatus := "ok"
	if s.cache == nil {
		cacheStatus = "disabled"
	} else if err := s.cache.Ping(ctx); err != nil {
		cacheStatus = "error"
	}

	status := http.StatusOK
	if dbStatus == "error" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":   "ok",
		"database": dbStatus,
		"cache":    cacheStatus,
	})
}
