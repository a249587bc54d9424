package script

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

const (
	defaultExamName   = "this exam"
	defaultCourseName = "this course"
)

// Input carries the question data a narration is built from.
// TemplateID zero means pick a template at random.
type Input struct {
	ExamName     string
	CourseName   string
	Statement    string
	QuestionType string
	Options      models.Options
	Answer       string
	Solution     string
	TemplateID   int
}

// InputFromQuestion adapts a stored question
func InputFromQuestion(q *models.Question, templateID int) Input {
	return Input{
		ExamName:     q.ExamName,
		CourseName:   q.CourseName,
		Statement:    q.Statement,
		QuestionType: q.QuestionType,
		Options:      q.Options,
		Answer:       q.Answer,
		Solution:     q.Solution,
		TemplateID:   templateID,
	}
}

// Result is a synthesized narration and the template that produced it
type Result struct {
	Script     string `json:"script"`
	TemplateID int    `json:"template_id"`
}

// Synthesizer builds narration scripts from a template catalog.
// It is safe for concurrent use.
type Synthesizer struct {
	catalog *Catalog

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSynthesizer creates a synthesizer. A nil rng is seeded from the clock,
// so callers that need reproducible picks must pass their own source.
func NewSynthesizer(catalog *Catalog, rng *rand.Rand) *Synthesizer {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return &Synthesizer{catalog: catalog, rng: rng}
}

// Catalog returns the templates this synthesizer draws from
func (s *Synthesizer) Catalog() *Catalog {
	return s.catalog
}

// Synthesize assembles the narration for in.
func (s *Synthesizer) Synthesize(in Input) (Result, error) {
	tmpl, err := s.selectTemplate(in.TemplateID)
	if err != nil {
		return Result{}, err
	}

	vars := Vars{
		ExamName:   in.ExamName,
		CourseName: in.CourseName,
		Statement:  SpeakMath(in.Statement),
		Options:    FormatOptions(in.Options, in.QuestionType),
	}

	return Result{Script: Assemble(tmpl, vars), TemplateID: tmpl.ID}, nil
}

func (s *Synthesizer) selectTemplate(id int) (Template, error) {
	if id != 0 {
		tmpl, ok := s.catalog.Get(id)
		if !ok {
			return Template{}, fmt.Errorf("%w: %d", ErrUnknownTemplate, id)
		}
		return tmpl, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.Pick(s.rng), nil
}

// Vars holds the placeholder values substituted into a template
type Vars struct {
	ExamName   string
	CourseName string
	Statement  string
	Options    string
}

// Fill substitutes placeholders in pattern. Substitution is a single literal
// pass; values that themselves look like placeholders are left alone.
func Fill(pattern string, vars Vars) string {
	exam := vars.ExamName
	if strings.TrimSpace(exam) == "" {
		exam = defaultExamName
	}
	course := vars.CourseName
	if strings.TrimSpace(course) == "" {
		course = defaultCourseName
	}

	r := strings.NewReplacer(
		PlaceholderExamName, exam,
		PlaceholderCourse, course,
		PlaceholderStatement, vars.Statement,
		PlaceholderOptions, vars.Options,
	)
	return r.Replace(pattern)
}

// Assemble joins the filled sections of tmpl into one narration.
func Assemble(tmpl Template, vars Vars) string {
	sections := []string{tmpl.Intro, tmpl.Question, tmpl.Countdown, tmpl.Reveal, tmpl.Outro}

	parts := make([]string, 0, len(sections))
	for _, section := range sections {
		filled := strings.TrimSpace(Fill(section, vars))
		if filled != "" {
			parts = append(parts, filled)
		}
	}

	return strings.TrimSpace(strings.Join(parts, " "))
}
