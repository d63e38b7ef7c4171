package router

import (
	"github.com/cuongbtq/trendrider/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// Options controls optional parts of the router.
type Options struct {
	// MediaDir, when set, is served under /media for the filesystem blob store.
	MediaDir string
}

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, opts Options) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())
	r.Use(IdentityMiddleware())

	h := handler.NewHandler(deps)

	r.GET("/health", h.Health)

	if opts.MediaDir != "" {
		r.Static("/media", opts.MediaDir)
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/categories", h.ListCategories)

		effects := v1.Group("/effects")
		{
			effects.GET("", h.ListEffects)
			effects.GET("/:effect_id", h.GetEffect)
		}

		uploads := v1.Group("/uploads")
		{
			uploads.POST("", h.CreateUpload)
			uploads.POST("/:upload_id/apply-effect", h.ApplyEffect)
		}

		jobs := v1.Group("/jobs")
		{
			jobs.GET("", h.ListJobs)
			jobs.GET("/:job_id", h.GetJob)
		}

		v1.GET("/usage/me", h.GetMyUsage)
	}

	return r
}
