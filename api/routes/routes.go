package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/ArowuTest/xoso-live-backend/internal/config"
	"github.com/ArowuTest/xoso-live-backend/internal/handlers"
	"github.com/ArowuTest/xoso-live-backend/internal/middleware"
)

// HandlerDependencies gathers the handlers wired in main
type HandlerDependencies struct {
	ResultHandler *handlers.ResultHandler
	PollHandler   *handlers.PollHandler
}

// SetupRouter sets up the router
func SetupRouter(cfg *config.Config, logger *slog.Logger, deps HandlerDependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(middleware.CORSMiddleware(cfg))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(logger))

	// Public routes
	public := router.Group("/api/v1")
	{
		public.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "ok",
			})
		})

		results := public.Group("/results")
		{
			results.GET("/live", deps.ResultHandler.Live)
			results.GET("/current", deps.ResultHandler.Current)
			results.GET("/:date", deps.ResultHandler.History)
		}
	}

	// Protected routes
	protected := router.Group("/api/v1")
	protected.Use(middleware.JWTAuthMiddleware(cfg))
	{
		polls := protected.Group("/polls")
		{
			polls.GET("", deps.PollHandler.List)
			polls.POST("/start", deps.PollHandler.Start)
			polls.POST("/stop", deps.PollHandler.Stop)
		}
	}

	return router
}
