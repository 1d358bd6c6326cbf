package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ecotrace/footprint-backend/internal/handlers"
	"github.com/ecotrace/footprint-backend/internal/middleware"
)

type RouterConfig struct {
	AuthMiddleware     *middleware.AuthMiddleware
	ProductsHandler    *handlers.ProductsHandler
	JobsHandler        *handlers.JobsHandler
	EmissionsHandler   *handlers.EmissionsHandler
	ActivityHandler    *handlers.ActivityHandler
	ConsistencyHandler *handlers.ConsistencyHandler
	AllowedOrigins     []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", handlers.HealthCheck)

	// Protected
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	// Products
	api.GET("/products/:id/footprint", cfg.ProductsHandler.GetFootprint)
	api.POST("/products/:id/calculate", cfg.JobsHandler.Submit)
	api.GET("/products/:id/jobs", cfg.JobsHandler.History)
	api.POST("/products/:id/sync", cfg.ConsistencyHandler.Sync)
	api.POST("/products/:id/recover", cfg.ConsistencyHandler.Recover)

	// Jobs
	api.GET("/jobs/:id", cfg.JobsHandler.Status)
	api.POST("/jobs/:id/cancel", cfg.JobsHandler.Cancel)

	// Companies
	api.GET("/companies/:id/emissions", cfg.EmissionsHandler.GetCompanyEmissions)
	api.GET("/companies/:id/activity", cfg.ActivityHandler.List)
	api.POST("/companies/:id/activity", cfg.ActivityHandler.Record)
	api.GET("/companies/:id/alerts", cfg.ConsistencyHandler.ListAlerts)

	// Activity
	api.POST("/activity/:id/recompute", cfg.ActivityHandler.Recompute)

	// Consistency
	api.POST("/consistency/audit", cfg.ConsistencyHandler.Audit)

	return router
}
