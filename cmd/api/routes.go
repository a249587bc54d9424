package main

import (
	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/middleware"
)

func setupRouter(api *API) *gin.Engine {
	router := gin.New()

	// Apply global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(api.log))
	if api.rateLimiter != nil {
		router.Use(middleware.RateLimit(api.rateLimiter))
	}

	// Health check
	router.GET("/health", api.healthCheck)

	v1 := router.Group("/api/v1")
	{
		// Questions
		v1.POST("/questions", api.createQuestion)
		v1.GET("/questions", api.listUnusedQuestions)
		v1.GET("/questions/:id", api.getQuestion)
		v1.POST("/questions/:id/script", api.saveScript)
		v1.GET("/questions/:id/job", api.getQuestionJob)

		// Previews
		v1.POST("/scripts/preview", api.previewScript)
		v1.POST("/captions/preview", api.previewCaptions)
		v1.GET("/templates/scripts", api.listScriptTemplates)
		v1.GET("/templates/visuals", api.listVisualTemplates)

		// Jobs
		v1.POST("/jobs", api.createJob)
		v1.GET("/jobs", api.listJobs)
		v1.GET("/jobs/:id", api.getJob)
		v1.GET("/jobs/:id/progress", api.getJobProgress)
		v1.GET("/jobs/:id/frames/:frame", api.previewFrame)

		// Stages run inline
		v1.POST("/jobs/:id/script", api.generateScript)
		v1.POST("/jobs/:id/audio", api.runStage(api.pipeline.GenerateAudio))
		v1.POST("/jobs/:id/captions", api.runStage(api.pipeline.GenerateCaptions))
		v1.POST("/jobs/:id/video", api.runStage(api.pipeline.RenderVideo))
		v1.POST("/jobs/:id/advance", api.runStage(api.pipeline.Advance))

		// Stages handed to workers
		v1.POST("/jobs/:id/stages/:stage", api.queueStage)
		v1.POST("/jobs/:id/run", api.queueRun)

		// Webhooks
		v1.POST("/webhooks", api.createWebhook)
		v1.GET("/webhooks/:id", api.getWebhook)
		v1.DELETE("/webhooks/:id", api.deleteWebhook)

		// Stats
		v1.GET("/stats/jobs", api.getJobStats)
		v1.GET("/stats/queue", api.getQueueStats)
		v1.GET("/stats/system", api.getSystemStats)
		v1.POST("/stats/queue/requeue", api.requeueDeadLetters)
	}

	return router
}
