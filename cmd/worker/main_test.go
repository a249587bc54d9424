package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/database"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/logging"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/pipeline"
	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

type jobStore struct {
	jobs map[string]*models.RenderJob
}

func (s *jobStore) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	return &models.Question{
		ID:           id,
		ExamName:     "GATE",
		CourseName:   "CS",
		Statement:    "What is 2^3?",
		QuestionType: "NAT",
		Answer:       "8",
	}, nil
}

func (s *jobStore) MarkQuestionUsed(ctx context.Context, id string) error { return nil }

func (s *jobStore) CreateRenderJob(ctx context.Context, job *models.RenderJob) error {
	s.jobs[job.ID] = job
	return nil
}

func (s *jobStore) GetRenderJob(ctx context.Context, id string) (*models.RenderJob, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("render job %s: %w", id, database.ErrNotFound)
	}
	cp := *job
	return &cp, nil
}

func (s *jobStore) GetRenderJobByQuestion(ctx context.Context, questionID string) (*models.RenderJob, error) {
	return nil, database.ErrNotFound
}

func (s *jobStore) AdvanceRenderJob(ctx context.Context, job *models.RenderJob, expected models.Stage) error {
	if s.jobs[job.ID].Status != expected {
		return database.ErrStaleStatus
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *jobStore) RecordJobError(ctx context.Context, id, message string) error {
	s.jobs[id].LastError = message
	return nil
}

type downSpeech struct{}

func (downSpeech) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return nil, errors.New("service unavailable")
}

func newHandler(t *testing.T) (*jobStore, func(context.Context, *models.StageRequest) error) {
	t.Helper()
	store := &jobStore{jobs: map[string]*models.RenderJob{
		"fresh":  {ID: "fresh", QuestionID: "q1", VisualTemplateID: 1, Status: models.StageCreated},
		"voiced": {ID: "voiced", QuestionID: "q1", VisualTemplateID: 1, Script: "Hello there.", Status: models.StageScriptGenerated},
	}}
	log := logging.New(io.Discard, logging.Config{Level: "error"})
	orch := pipeline.New(pipeline.Deps{Store: store, Speech: downSpeech{}, Logger: log}, pipeline.Options{})
	return store, stageHandler(orch, log)
}

func TestStageHandlerRunsStep(t *testing.T) {
	store, handle := newHandler(t)

	err := handle(context.Background(), &models.StageRequest{JobID: "fresh", Step: models.StepScript, TemplateID: 2})
	require.NoError(t, err)
	assert.Equal(t, models.StageScriptGenerated, store.jobs["fresh"].Status)
	assert.Equal(t, 2, store.jobs["fresh"].ScriptTemplateID)
}

func TestStageHandlerDropsRejectedRequests(t *testing.T) {
	_, handle := newHandler(t)

	err := handle(context.Background(), &models.StageRequest{JobID: "fresh", Step: models.StepVideo})
	assert.NoError(t, err)

	err = handle(context.Background(), &models.StageRequest{JobID: "missing", Step: models.StepAudio})
	assert.NoError(t, err)
}

func TestStageHandlerReturnsExternalFailures(t *testing.T) {
	store, handle := newHandler(t)

	err := handle(context.Background(), &models.StageRequest{JobID: "voiced", Step: models.StepAudio})
	require.Error(t, err)
	assert.True(t, pipeline.IsExternal(err))
	assert.Contains(t, store.jobs["voiced"].LastError, "service unavailable")
}

func TestStageHandlerRunAllStopsAtFailure(t *testing.T) {
	store, handle := newHandler(t)

	err := handle(context.Background(), &models.StageRequest{JobID: "fresh", RunAll: true})
	require.Error(t, err)
	assert.Equal(t, models.StageScriptGenerated, store.jobs["fresh"].Status)
}
