package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/grantforge/backend/config"
	"github.com/grantforge/backend/internal/handler"
	"github.com/grantforge/backend/internal/middleware"
	"github.com/grantforge/backend/internal/service"
)

func Setup(
	cfg *config.Config,
	agencyHandler *handler.AgencyHandler,
	runHandler *handler.RunHandler,
	eventsHandler *handler.EventsHandler,
	accessKeyHandler *handler.AccessKeyHandler,
	accessKeys service.AccessKeyService,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
	}))

	// Event streams are excluded: SSE frames must reach the client as
	// they are written, not sit in a compression buffer.
	r.Use(gzip.Gzip(gzip.BestCompression, gzip.WithExcludedPathsRegexs([]string{`^/api/runs/[^/]+/events$`})))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(middleware.AccessKeyAuth(cfg.Auth.Enabled, accessKeys))
	{
		agencies := api.Group("/agencies")
		{
			agencies.GET("", agencyHandler.List)
			agencies.GET("/:code", agencyHandler.Get)
		}

		runs := api.Group("/runs")
		{
			runs.POST("", runHandler.Create)
			runs.GET("", runHandler.List)
			runs.GET("/status", runHandler.QueueStatus)
			runs.POST("/cleanup", runHandler.CleanupStuck)
			runs.GET("/:id", runHandler.Get)
			runs.POST("/:id/cancel", runHandler.Cancel)
			runs.GET("/:id/events", eventsHandler.Stream)
			runs.GET("/:id/proposal", runHandler.Proposal)
			runs.GET("/:id/proposal/markdown", runHandler.ProposalMarkdown)
			runs.POST("/:id/validate", runHandler.Validate)
			runs.GET("/:id/usage", runHandler.Usage)
		}

		// Key administration sits behind the same auth as the rest of the
		// API. Mint the first key before enabling auth.
		accessKeyHandler.RegisterRoutes(api)
	}

	return r
}
