package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hexauth-server/config"
	"hexauth-server/internal/api"
	"hexauth-server/internal/auth"
	"hexauth-server/internal/cache"
	"hexauth-server/internal/database"
	"hexauth-server/internal/events"
	"hexauth-server/internal/guard"
	"hexauth-server/internal/identity"
	"hexauth-server/internal/license"
	"hexauth-server/internal/logging"
	"hexauth-server/internal/session"
	"hexauth-server/internal/subscription"
	"hexauth-server/internal/vault"
	"hexauth-server/internal/webhook"
)

const sessionSweepInterval = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(&logging.Config{
		Level:      cfg.LoggingConfig.Level,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
		Component:  "main",
	})
	logging.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Vault supplies secret material when enabled; config values are the
	// fallback so local setups run without it
	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		logger.Fatal("Failed to initialize vault client", "error", err.Error())
	}
	if vaultClient.IsEnabled() {
		if cfg.DatabaseConfig.Password, err = vaultClient.GetSecret(ctx, "db_password", cfg.DatabaseConfig.Password); err != nil {
			logger.Warn("Vault lookup for db_password failed", "error", err.Error())
		}
		if cfg.AdminConfig.JWTSecret, err = vaultClient.GetSecret(ctx, "jwt_secret", cfg.AdminConfig.JWTSecret); err != nil {
			logger.Warn("Vault lookup for jwt_secret failed", "error", err.Error())
		}
		if cfg.RedisConfig.Password, err = vaultClient.GetSecret(ctx, "redis_password", cfg.RedisConfig.Password); err != nil {
			logger.Warn("Vault lookup for redis_password failed", "error", err.Error())
		}
	}
	if cfg.AdminConfig.JWTSecret == "" {
		logger.Fatal("No admin JWT secret configured; set ADMIN_JWT_SECRET or store jwt_secret in vault")
	}

	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err.Error())
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal("Failed to run migrations", "error", err.Error())
	}

	// The cache degrades rather than blocking startup: rate limits and
	// lookup caches fail open without it
	cacheService, err := cache.NewCacheService(cfg.RedisConfig)
	if err != nil {
		logger.Warn("Cache unavailable, running degraded", "error", err.Error())
	}
	// Typed-nil guard: hand out the cache interfaces only when the
	// service actually exists
	var counters guard.Counters
	var statsCache api.StatsCache
	if cacheService != nil {
		counters = cacheService
		statsCache = cacheService
	}

	repo := database.NewRepository(db)
	eventBus := events.NewEventBus()

	sender := webhook.NewSender()
	sender.AttachBus(eventBus, repo)

	identitySvc := identity.NewService(repo)
	licenseSvc := license.NewService(repo)
	subscriptionSvc := subscription.NewService(repo)
	sessionMgr := session.NewManager(repo)
	sessionMgr.StartSweeper(ctx, sessionSweepInterval)

	abuseGuard := guard.New(repo, counters, cfg.GuardConfig, cfg.RateLimitConfig)

	jwtManager := auth.NewJWTManager(cfg.AdminConfig.JWTSecret, cfg.AdminConfig.AccessTokenDuration)
	passwordManager := auth.NewPasswordManager(auth.DefaultBcryptCost, cfg.AdminConfig.MinPasswordLength)
	authService := auth.NewService(repo, jwtManager, passwordManager)

	server := api.NewServer(cfg.ServerConfig, api.Deps{
		Repo:          repo,
		DB:            db,
		Cache:         statsCache,
		Guard:         abuseGuard,
		Identity:      identitySvc,
		Licenses:      licenseSvc,
		Subscriptions: subscriptionSvc,
		Sessions:      sessionMgr,
		AuthService:   authService,
		JWTManager:    jwtManager,
		Sender:        sender,
		EventBus:      eventBus,
	})

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Server failed", "error", err.Error())
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err.Error())
	}
	if cacheService != nil {
		if err := cacheService.Close(); err != nil {
			logger.Warn("Cache close failed", "error", err.Error())
		}
	}
	logger.Info("Shutdown complete")
}
