package app

import (
	"github.com/gin-gonic/gin"

	"github.com/ecotrace/footprint-backend/internal/middleware"
	"github.com/ecotrace/footprint-backend/internal/server"
)

func wireRouter(cfg Config, handlerset Handlers, auth *middleware.AuthMiddleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		AuthMiddleware:     auth,
		ProductsHandler:    handlerset.Products,
		JobsHandler:        handlerset.Jobs,
		EmissionsHandler:   handlerset.Emissions,
		ActivityHandler:    handlerset.Activity,
		ConsistencyHandler: handlerset.Consistency,
		AllowedOrigins:     cfg.AllowedOrigins,
	})
}
