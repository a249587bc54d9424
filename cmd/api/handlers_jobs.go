package main

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/pipeline"
	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

// Job handlers

func (api *API) createJob(c *gin.Context) {
	var req struct {
		QuestionID string `json:"question_id" binding:"required"`
		TemplateID int    `json:"template_id"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := api.pipeline.CreateJob(c.Request.Context(), req.QuestionID, req.TemplateID)
	if err != nil {
		errorResponse(c, err)
		return
	}

	c.JSON(http.StatusCreated, job)
}

// saveScript stores a reviewed script for a question and starts a job at
// the script_generated stage
func (api *API) saveScript(c *gin.Context) {
	var req struct {
		Script           string `json:"script" binding:"required"`
		ScriptTemplateID int    `json:"script_template_id"`
		TemplateID       int    `json:"template_id"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := api.pipeline.AcceptScript(c.Request.Context(), c.Param("id"), req.Script, req.ScriptTemplateID, req.TemplateID)
	if err != nil {
		errorResponse(c, err)
		return
	}

	c.JSON(http.StatusCreated, job)
}

func (api *API) getJob(c *gin.Context) {
	job, err := api.pipeline.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

func (api *API) listJobs(c *gin.Context) {
	status := models.Stage(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must not be negative"})
		return
	}

	jobs, err := api.jobs.ListRenderJobs(c.Request.Context(), status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":   jobs,
		"limit":  limit,
		"offset": offset,
	})
}

func (api *API) getQuestionJob(c *gin.Context) {
	job, err := api.pipeline.GetJobByQuestion(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

func (api *API) getJobProgress(c *gin.Context) {
	jobID := c.Param("id")

	job, err := api.pipeline.GetJob(c.Request.Context(), jobID)
	if err != nil {
		errorResponse(c, err)
		return
	}

	progress := 0.0
	if job.Status == models.StageVideoRendered {
		progress = 100
	} else if api.progress != nil {
		p, ok, err := api.progress.GetJobProgress(c.Request.Context(), jobID)
		if err != nil {
			errorResponse(c, err)
			return
		}
		if ok {
			progress = p
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":   jobID,
		"status":   job.Status,
		"progress": progress,
	})
}

// Synchronous stage handlers run the stage inside the request

type stageRunner func(ctx context.Context, jobID string) (*models.RenderJob, error)

func (api *API) runStage(run stageRunner) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := run(c.Request.Context(), c.Param("id"))
		if err != nil {
			errorResponse(c, err)
			return
		}
		c.JSON(http.StatusOK, job)
	}
}

func (api *API) generateScript(c *gin.Context) {
	var req pipeline.ScriptRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	job, err := api.pipeline.GenerateScript(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		errorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// Queued stage handlers hand the stage to a worker

func (api *API) queueStage(c *gin.Context) {
	step, err := models.ParseStep(c.Param("stage"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var opts pipeline.ScriptRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	api.enqueue(c, &models.StageRequest{
		JobID:      c.Param("id"),
		Step:       step,
		UseLLM:     opts.UseLLM,
		TemplateID: opts.TemplateID,
	})
}

func (api *API) queueRun(c *gin.Context) {
	var opts pipeline.ScriptRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	api.enqueue(c, &models.StageRequest{
		JobID:      c.Param("id"),
		RunAll:     true,
		UseLLM:     opts.UseLLM,
		TemplateID: opts.TemplateID,
	})
}

func (api *API) enqueue(c *gin.Context, req *models.StageRequest) {
	job, err := api.pipeline.GetJob(c.Request.Context(), req.JobID)
	if err != nil {
		errorResponse(c, err)
		return
	}
	if job.Status.Terminal() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job is already complete"})
		return
	}

	req.RequestedAt = time.Now()
	if err := api.queue.PublishStage(c.Request.Context(), req); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue stage"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":  req.JobID,
		"step":    req.Step,
		"run_all": req.RunAll,
		"status":  job.Status,
	})
}
