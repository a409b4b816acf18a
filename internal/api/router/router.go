package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/readstack/reader-be/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "reader-api-service",
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	jobHandler := handler.NewJobHandler(deps)

	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - idempotent enqueue
			jobs.POST("", jobHandler.EnqueueJob)

			// GET /api/v1/jobs/status?jobId=...|jobKey=...
			jobs.GET("/status", jobHandler.GetJobStatus)
		}

		textbooks := v1.Group("/textbooks")
		{
			// POST /api/v1/textbooks/:textbook_id/pages/generate
			textbooks.POST("/:textbook_id/pages/generate", jobHandler.GeneratePages)
		}
	}

	return r
}
