package models

import (
	"fmt"
	"time"
)

// Stage is the persisted status of a render job
type Stage string

// Stage values in lifecycle order
const (
	StageCreated           Stage = "created"
	StageScriptGenerated   Stage = "script_generated"
	StageAudioGenerated    Stage = "audio_generated"
	StageCaptionsGenerated Stage = "captions_generated"
	StageRenderPending     Stage = "render_pending"
	StageVideoRendered     Stage = "video_rendered"
)

// Rank orders stages; status may only move to a higher rank
func (s Stage) Rank() int {
	switch s {
	case StageCreated:
		return 0
	case StageScriptGenerated:
		return 1
	case StageAudioGenerated:
		return 2
	case StageCaptionsGenerated:
		return 3
	case StageRenderPending:
		return 4
	case StageVideoRendered:
		return 5
	default:
		return -1
	}
}

// Valid reports whether s is a known stage
func (s Stage) Valid() bool {
	return s.Rank() >= 0
}

// Terminal reports whether no further stage can run
func (s Stage) Terminal() bool {
	return s == StageVideoRendered
}

// Step names a stage operation that can be requested
type Step string

// Step values
const (
	StepScript   Step = "script"
	StepAudio    Step = "audio"
	StepCaptions Step = "captions"
	StepVideo    Step = "video"
)

// ParseStep converts a request path value into a Step
func ParseStep(s string) (Step, error) {
	switch Step(s) {
	case StepScript, StepAudio, StepCaptions, StepVideo:
		return Step(s), nil
	default:
		return "", fmt.Errorf("unknown step %q", s)
	}
}

// RenderJob is the persisted record driving a reel through its stages
type RenderJob struct {
	ID               string    `json:"id" db:"id"`
	QuestionID       string    `json:"question_id" db:"question_id"`
	Script           string    `json:"script,omitempty" db:"script"`
	ScriptTemplateID int       `json:"script_template_id,omitempty" db:"script_template_id"`
	VisualTemplateID int       `json:"template_id" db:"template_id"`
	AudioKey         string    `json:"-" db:"audio_key"`
	AudioURL         string    `json:"audio_url,omitempty" db:"audio_url"`
	AudioDuration    float64   `json:"audio_duration,omitempty" db:"audio_duration"`
	Timeline         *Timeline `json:"captions_data,omitempty" db:"captions_data"`
	VideoKey         string    `json:"-" db:"video_key"`
	VideoURL         string    `json:"video_url,omitempty" db:"video_url"`
	Status           Stage     `json:"status" db:"status"`
	LastError        string    `json:"last_error,omitempty" db:"last_error"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// HasScript reports whether the script artifact exists
func (j *RenderJob) HasScript() bool {
	return j.Script != ""
}

// HasAudio reports whether the audio artifact exists
func (j *RenderJob) HasAudio() bool {
	return j.AudioKey != "" && j.AudioDuration > 0
}

// HasTimeline reports whether the caption artifact exists
func (j *RenderJob) HasTimeline() bool {
	return j.Timeline != nil && !j.Timeline.Empty()
}

// HasVideo reports whether the rendered artifact exists
func (j *RenderJob) HasVideo() bool {
	return j.VideoKey != ""
}

// StageRequest is the queue message asking a worker to run a step
type StageRequest struct {
	JobID       string    `json:"job_id"`
	Step        Step      `json:"step,omitempty"`
	RunAll      bool      `json:"run_all,omitempty"`
	UseLLM      bool      `json:"use_llm,omitempty"`
	TemplateID  int       `json:"template_id,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}
