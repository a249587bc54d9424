package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/compositor"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/raster"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/script"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/timeline"
	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

// Preview handlers compute artifacts without touching any job

func (api *API) previewScript(c *gin.Context) {
	var req struct {
		QuestionID string           `json:"question_id"`
		Question   *models.Question `json:"question"`
		TemplateID int              `json:"template_id"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	q := req.Question
	if req.QuestionID != "" {
		var err error
		q, err = api.questions.GetQuestion(c.Request.Context(), req.QuestionID)
		if err != nil {
			errorResponse(c, err)
			return
		}
	}
	if q == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question_id or question is required"})
		return
	}
	if err := q.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := api.pipeline.Scripts().Synthesize(script.InputFromQuestion(q, req.TemplateID))
	if errors.Is(err, script.ErrUnknownTemplate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		errorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (api *API) previewCaptions(c *gin.Context) {
	var req struct {
		Text           string  `json:"text" binding:"required"`
		WordsPerSecond float64 `json:"words_per_second"`
		Duration       float64 `json:"duration"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.WordsPerSecond < 0 || req.Duration < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "words_per_second and duration must not be negative"})
		return
	}

	opts := api.pipeline.TimelineOptions()
	if req.WordsPerSecond > 0 {
		opts.WordsPerSecond = req.WordsPerSecond
	}

	tl := timeline.Segment(req.Text, opts)
	if req.Duration > 0 {
		tl = timeline.Rescale(tl, req.Duration)
	}

	c.JSON(http.StatusOK, tl)
}

// previewFrame rasterizes one frame of a captioned job as PNG
func (api *API) previewFrame(c *gin.Context) {
	index, err := strconv.Atoi(strings.TrimSuffix(c.Param("frame"), ".png"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "frame must be a non-negative index"})
		return
	}

	job, err := api.pipeline.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err)
		return
	}

	sb, tmpl, err := api.pipeline.Storyboard(c.Request.Context(), job)
	if err != nil {
		errorResponse(c, err)
		return
	}

	n := compositor.FrameCount(sb.Timeline.TotalDuration, api.frames.FPS)
	if index >= n {
		c.JSON(http.StatusBadRequest, gin.H{"error": "frame index out of range", "frames": n})
		return
	}

	frame := compositor.Render(sb, compositor.FrameTime(index, api.frames.FPS), tmpl, api.fonts)

	r := raster.New(api.frames.Width, api.frames.Height, api.fonts)
	defer r.Close()

	c.Header("Content-Type", "image/png")
	c.Status(http.StatusOK)
	if err := r.EncodePNG(c.Writer, frame); err != nil {
		api.log.WithJobID(job.ID).ErrorWithErr("Failed to encode frame preview", err)
	}
}

// Template catalogs

func (api *API) listScriptTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"templates": api.pipeline.Scripts().Catalog().All()})
}

func (api *API) listVisualTemplates(c *gin.Context) {
	type summary struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	all := api.pipeline.Visuals().All()
	out := make([]summary, len(all))
	for i, t := range all {
		out[i] = summary{ID: t.ID, Name: t.Name}
	}

	c.JSON(http.StatusOK, gin.H{"templates": out})
}
