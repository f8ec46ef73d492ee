package main

import (
	"context"                               // context package is needed for Redis operations
	"merit_system/internal/api"             // Custom package for API handlers
	"merit_system/internal/config"          // Custom package for configuration
	"merit_system/internal/db"              // Database connection
	"merit_system/internal/engine"          // Allocation engine
	"merit_system/internal/store/gormstore" // MySQL backed store

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if !cfg.IsProd {
		logrus.SetLevel(logrus.DebugLevel)
	}

	conn, err := db.Open(cfg.DSN())
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})

	// Test Redis connection
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	eng := engine.New(gormstore.New(conn),
		engine.WithRedis(redisClient),
		engine.WithDefaults(cfg.CommunityDefaults()),
		engine.WithLocation(cfg.QuotaLocation),
		engine.WithCacheTTL(cfg.CacheTTL),
		engine.WithClaimTTL(cfg.IdempotencyTTL),
		engine.WithLogger(logrus.StandardLogger()),
	)

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default() // Gin router instance

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	api.RegisterRoutes(r, eng, cfg.JWTSecret)

	logrus.Info("Server running on " + cfg.AppPort) // Log server start
	if err := r.Run(":" + cfg.AppPort); err != nil {
		logrus.Fatalf("server stopped: %v", err)
	}
}
