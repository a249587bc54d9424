package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

// Repository provides database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Questions

const questionColumns = `id, exam_name, course_name, question_statement, question_type, options,
		       answer, solution, used_in_video, created_at, updated_at`

func scanQuestion(row pgx.Row) (*models.Question, error) {
	var q models.Question
	err := row.Scan(
		&q.ID, &q.ExamName, &q.CourseName, &q.Statement, &q.QuestionType, &q.Options,
		&q.Answer, &q.Solution, &q.UsedInVideo, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// CreateQuestion inserts a question
func (r *Repository) CreateQuestion(ctx context.Context, q *models.Question) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}

	query := `
		INSERT INTO questions (id, exam_name, course_name, question_statement, question_type,
		                       options, answer, solution, used_in_video)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		q.ID, q.ExamName, q.CourseName, q.Statement, q.QuestionType,
		q.Options, q.Answer, q.Solution, q.UsedInVideo,
	).Scan(&q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}

	return nil
}

// GetQuestion retrieves a question by ID
func (r *Repository) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE id = $1`

	q, err := scanQuestion(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("question %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	return q, nil
}

// ListUnusedQuestions returns the oldest questions no reel has used yet
func (r *Repository) ListUnusedQuestions(ctx context.Context, limit int) ([]*models.Question, error) {
	query := `SELECT ` + questionColumns + `
		FROM questions
		WHERE used_in_video = false
		ORDER BY created_at ASC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	var questions []*models.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}

	return questions, rows.Err()
}

// MarkQuestionUsed flags a question as consumed by a reel
func (r *Repository) MarkQuestionUsed(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE questions SET used_in_video = true, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark question used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("question %s: %w", id, ErrNotFound)
	}
	return nil
}

// Render jobs

const renderJobColumns = `id, question_id, script, script_template_id, template_id,
		       audio_key, audio_url, audio_duration, captions_data, video_key, video_url,
		       status, last_error, created_at, updated_at`

func scanRenderJob(row pgx.Row) (*models.RenderJob, error) {
	var job models.RenderJob
	err := row.Scan(
		&job.ID, &job.QuestionID, &job.Script, &job.ScriptTemplateID, &job.VisualTemplateID,
		&job.AudioKey, &job.AudioURL, &job.AudioDuration, &job.Timeline, &job.VideoKey, &job.VideoURL,
		&job.Status, &job.LastError, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateRenderJob inserts a render job
func (r *Repository) CreateRenderJob(ctx context.Context, job *models.RenderJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = models.StageCreated
	}

	query := `
		INSERT INTO render_jobs (id, question_id, script, script_template_id, template_id,
		                         audio_key, audio_url, audio_duration, captions_data,
		                         video_key, video_url, status, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		job.ID, job.QuestionID, job.Script, job.ScriptTemplateID, job.VisualTemplateID,
		job.AudioKey, job.AudioURL, job.AudioDuration, job.Timeline,
		job.VideoKey, job.VideoURL, job.Status, job.LastError,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create render job: %w", err)
	}

	return nil
}

// GetRenderJob retrieves a render job by ID
func (r *Repository) GetRenderJob(ctx context.Context, id string) (*models.RenderJob, error) {
	query := `SELECT ` + renderJobColumns + ` FROM render_jobs WHERE id = $1`

	job, err := scanRenderJob(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("render job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get render job: %w", err)
	}

	return job, nil
}

// GetRenderJobByQuestion retrieves the newest render job for a question
func (r *Repository) GetRenderJobByQuestion(ctx context.Context, questionID string) (*models.RenderJob, error) {
	query := `SELECT ` + renderJobColumns + `
		FROM render_jobs
		WHERE question_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	job, err := scanRenderJob(r.db.Pool.QueryRow(ctx, query, questionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("render job for question %s: %w", questionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get render job: %w", err)
	}

	return job, nil
}

// ListRenderJobs lists render jobs, optionally filtered by status
func (r *Repository) ListRenderJobs(ctx context.Context, status models.Stage, limit, offset int) ([]*models.RenderJob, error) {
	query := `SELECT ` + renderJobColumns + `
		FROM render_jobs
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list render jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.RenderJob
	for rows.Next() {
		job, err := scanRenderJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan render job: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// AdvanceRenderJob writes the job's artifacts and status only if the stored
// status still equals expected. The last error is cleared on success.
func (r *Repository) AdvanceRenderJob(ctx context.Context, job *models.RenderJob, expected models.Stage) error {
	query := `
		UPDATE render_jobs
		SET script = $3, script_template_id = $4, template_id = $5,
		    audio_key = $6, audio_url = $7, audio_duration = $8, captions_data = $9,
		    video_key = $10, video_url = $11, status = $12, last_error = '', updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		job.ID, expected,
		job.Script, job.ScriptTemplateID, job.VisualTemplateID,
		job.AudioKey, job.AudioURL, job.AudioDuration, job.Timeline,
		job.VideoKey, job.VideoURL, job.Status,
	).Scan(&job.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("render job %s not in status %s: %w", job.ID, expected, ErrStaleStatus)
	}
	if err != nil {
		return fmt.Errorf("failed to advance render job: %w", err)
	}

	job.LastError = ""
	return nil
}

// RecordJobError stores the failure message of the last stage attempt
func (r *Repository) RecordJobError(ctx context.Context, id, message string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE render_jobs SET last_error = $2, updated_at = NOW() WHERE id = $1`, id, message)
	if err != nil {
		return fmt.Errorf("failed to record job error: %w", err)
	}
	return nil
}

// CountRenderJobsByStatus returns the number of jobs in each status
func (r *Repository) CountRenderJobsByStatus(ctx context.Context) (map[models.Stage]int, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT status, COUNT(*) FROM render_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count render jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Stage]int)
	for rows.Next() {
		var status models.Stage
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = n
	}

	return counts, rows.Err()
}
