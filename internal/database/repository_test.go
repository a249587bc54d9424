package database

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/config"
	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

func TestEventField(t *testing.T) {
	tests := []struct {
		event string
		want  string
	}{
		{models.WebhookEventStageCompleted, "stage_completed"},
		{models.WebhookEventStageFailed, "stage_failed"},
		{models.WebhookEventRenderPending, "render_pending"},
	}

	for _, tt := range tests {
		got, err := eventField(tt.event)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := eventField("job.exploded")
	assert.Error(t, err)
}

func TestSchemaCoversTables(t *testing.T) {
	for _, table := range []string{"questions", "render_jobs", "webhooks", "webhook_deliveries"} {
		assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
}

// testRepository connects to the database named by QUIZREEL_TEST_DB_HOST
// and skips the test when it is unset.
func testRepository(t *testing.T) *Repository {
	t.Helper()

	host := os.Getenv("QUIZREEL_TEST_DB_HOST")
	if host == "" {
		t.Skip("Skipping integration test - QUIZREEL_TEST_DB_HOST not set")
	}

	db, err := New(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		DBName:   "quizreel_test",
		SSLMode:  "disable",
		MaxConns: 4,
		MinConns: 1,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.InitSchema(context.Background()))
	return NewRepository(db)
}

func TestRenderJobLifecycle(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	q := &models.Question{
		ExamName:     "GATE",
		CourseName:   "CS",
		Statement:    "What is 2^3?",
		QuestionType: models.QuestionTypeMCQ,
		Options:      models.Options{"A": "8", "B": "9"},
		Answer:       "A",
	}
	require.NoError(t, repo.CreateQuestion(ctx, q))

	job := &models.RenderJob{QuestionID: q.ID, VisualTemplateID: 1}
	require.NoError(t, repo.CreateRenderJob(ctx, job))
	assert.Equal(t, models.StageCreated, job.Status)

	job.Script = "Hello. 5... 4... 3... 2... 1... It is A."
	job.Status = models.StageScriptGenerated
	require.NoError(t, repo.AdvanceRenderJob(ctx, job, models.StageCreated))

	// A second writer still expecting "created" loses.
	err := repo.AdvanceRenderJob(ctx, job, models.StageCreated)
	assert.True(t, errors.Is(err, ErrStaleStatus))

	require.NoError(t, repo.RecordJobError(ctx, job.ID, "quota exceeded"))

	got, err := repo.GetRenderJobByQuestion(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, models.StageScriptGenerated, got.Status)
	assert.Equal(t, "quota exceeded", got.LastError)
	assert.Nil(t, got.Timeline)

	require.NoError(t, repo.MarkQuestionUsed(ctx, q.ID))
	stored, err := repo.GetQuestion(ctx, q.ID)
	require.NoError(t, err)
	assert.True(t, stored.UsedInVideo)
	assert.Equal(t, "8", stored.Options["A"])

	_, err = repo.GetRenderJob(ctx, "00000000-0000-0000-0000-000000000000")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, strings.Contains(err.Error(), "not found"))
}
