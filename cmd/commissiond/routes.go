package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"regionmart/internal/gateway/handlers"
	"regionmart/internal/gateway/middleware"
)

func newRouter(handler *handlers.CommissionHTTPHandler, db *gorm.DB, redisClient *redis.Client) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORS())
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit("60-M"))

	// --- Public API Group ---
	public := r.Group("/api/v1")
	{
		// Transaction completion events come from the order pipeline, which
		// authenticates with the same bearer tokens the admin surface uses.
		transactions := public.Group("/transactions")
		transactions.Use(middleware.JWTAuth())
		{
			transactions.POST("/complete", handler.CompleteTransaction)
		}
	}

	// --- Protected API Group ---
	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth())
	{
		configs := protected.Group("/commission-configs")
		{
			configs.POST("", handler.CreateConfig)
			configs.GET("", handler.ListConfigs)
			configs.GET("/resolve", handler.ResolveConfig)
			configs.GET("/:id", handler.GetConfig)
			configs.PUT("/:id", handler.UpdateConfig)
			configs.DELETE("/:id", handler.DeactivateConfig)
		}

		commissions := protected.Group("/commissions")
		{
			commissions.GET("/pending", handler.ListPendingCommissions)
			commissions.GET("/transaction/:id", handler.ListCommissionsByTransaction)
			commissions.GET("/user/:id", handler.ListCommissionsByUser)
			commissions.POST("/mark-paid", handler.MarkPaid)
		}

		users := protected.Group("/users")
		{
			users.GET("/:id/stats", handler.GetUserStats)
			users.GET("/:id/hierarchy", handler.GetUserHierarchy)
		}

		failures := protected.Group("/commission-failures")
		{
			failures.GET("", handler.ListFailures)
			failures.POST("/:id/retry", handler.RetryFailure)
			failures.POST("/:id/resolve", handler.ResolveFailure)
		}
	}

	r.GET("/health", healthCheckHandler(db, redisClient))

	return r
}

func healthCheckHandler(db *gorm.DB, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		status := "healthy"
		httpStatus := http.StatusOK
		services := map[string]string{
			"database": "healthy",
			"redis":    "healthy",
		}

		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			services["database"] = "unavailable"
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			services["redis"] = "unavailable"
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}

		c.JSON(httpStatus, gin.H{
			"status":    status,
			"services":  services,
			"timestamp": time.Now(),
		})
	}
}
