package main

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/metrics"
	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true
	for name, check := range api.health {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "checks": checks})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "healthy", "checks": checks})
}

// Question handlers

func (api *API) createQuestion(c *gin.Context) {
	var q models.Question
	if err := c.ShouldBindJSON(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := q.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	q.ID = ""
	q.UsedInVideo = false
	if err := api.questions.CreateQuestion(c.Request.Context(), &q); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create question"})
		return
	}

	c.JSON(http.StatusCreated, q)
}

func (api *API) getQuestion(c *gin.Context) {
	q, err := api.questions.GetQuestion(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, q)
}

func (api *API) listUnusedQuestions(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
		return
	}

	questions, err := api.questions.ListUnusedQuestions(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"questions": questions, "limit": limit})
}

// Webhook handlers

func (api *API) createWebhook(c *gin.Context) {
	var req struct {
		URL    string               `json:"url" binding:"required,url"`
		Events models.WebhookEvents `json:"events" binding:"required"`
		Secret string               `json:"secret"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	webhook := &models.Webhook{
		URL:      req.URL,
		Events:   req.Events,
		Secret:   req.Secret,
		IsActive: true,
	}

	if err := api.webhooks.CreateWebhook(c.Request.Context(), webhook); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create webhook"})
		return
	}

	c.JSON(http.StatusCreated, webhook)
}

func (api *API) getWebhook(c *gin.Context) {
	webhook, err := api.webhooks.GetWebhook(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, webhook)
}

func (api *API) deleteWebhook(c *gin.Context) {
	if err := api.webhooks.DeleteWebhook(c.Request.Context(), c.Param("id")); err != nil {
		errorResponse(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Queue handlers

func (api *API) getQueueStats(c *gin.Context) {
	queueDepth, err := api.queue.GetQueueDepth()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get queue depth"})
		return
	}

	dlqDepth, err := api.queue.GetDLQDepth()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get DLQ depth"})
		return
	}

	metrics.UpdateQueueMetrics(queueDepth, dlqDepth)

	c.JSON(http.StatusOK, gin.H{
		"queue_depth": queueDepth,
		"dlq_depth":   dlqDepth,
	})
}

func (api *API) getJobStats(c *gin.Context) {
	counts, err := api.jobs.CountRenderJobsByStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count jobs"})
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	c.JSON(http.StatusOK, gin.H{"by_status": counts, "total": total})
}

func (api *API) getSystemStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"health":  api.monitor.GetSystemHealth(),
		"alerts":  api.monitor.GetAlerts(),
		"metrics": api.monitor.GetSnapshot(),
	})
}

func (api *API) requeueDeadLetters(c *gin.Context) {
	max, err := strconv.Atoi(c.DefaultQuery("max", "10"))
	if err != nil || max <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max must be a positive integer"})
		return
	}

	letters, err := api.queue.RequeueDeadLetters(c.Request.Context(), max)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	type requeued struct {
		Body     string `json:"body"`
		Reason   string `json:"reason"`
		FailedAt string `json:"failed_at"`
	}
	out := make([]requeued, len(letters))
	for i, l := range letters {
		out[i] = requeued{Body: string(l.Body), Reason: l.Reason, FailedAt: l.FailedAt}
	}

	c.JSON(http.StatusOK, gin.H{"requeued": out, "count": len(out)})
}
