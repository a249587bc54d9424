package llm

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/therealutkarshpriyadarshi/quizreel/internal/script"
	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

const promptText = `You write the voice-over for a short vertical quiz video about {{.ExamName}} {{.CourseName}}.

Write 80 to 130 words of plain spoken English, as one paragraph, in this order:
1. A one-sentence hook that names the exam and the course.
2. The question read aloud{{if .Options}}, followed by every option as "Option A: ...", "Option B: ..."{{end}}.
3. An invitation to pause and solve it, ending with exactly this countdown: {{.Countdown}}...
4. One sentence saying the answer is now on screen. Do not state the answer.
5. A short call to follow for more {{.ExamName}} practice.

Read math aloud the way a tutor would ("x squared", "one-half", "square root of").
No markdown, no emojis, no stage directions, no headings.

Question: {{.Statement}}
{{- range .Options}}
Option {{.Letter}}: {{.Text}}
{{- end}}
`

var promptTemplate = template.Must(template.New("script").Parse(promptText))

type promptData struct {
	ExamName   string
	CourseName string
	Statement  string
	Options    []models.Option
	Countdown  string
}

// BuildPrompt renders the script-writing prompt for q
func BuildPrompt(in script.Input) (string, error) {
	data := promptData{
		ExamName:   orDefault(in.ExamName, "this exam"),
		CourseName: orDefault(in.CourseName, "this course"),
		Statement:  strings.TrimSpace(in.Statement),
		Countdown:  models.CountdownMarker,
	}
	if models.IsChoice(in.QuestionType) {
		data.Options = in.Options.Ordered()
	}

	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return buf.String(), nil
}

// ScriptWriter turns questions into narration using a TextGenerator
type ScriptWriter struct {
	gen TextGenerator
}

// NewScriptWriter creates a ScriptWriter
func NewScriptWriter(gen TextGenerator) *ScriptWriter {
	return &ScriptWriter{gen: gen}
}

// Write generates narration for in. When the model leaves out the countdown,
// fallback (a template's countdown sentence) is inserted before the last
// sentence so the timeline still has a timer phase.
func (w *ScriptWriter) Write(ctx context.Context, in script.Input, fallback string) (string, error) {
	prompt, err := BuildPrompt(in)
	if err != nil {
		return "", err
	}

	text, err := w.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	text = Normalize(text)
	if text == "" {
		return "", ErrEmptyResponse
	}

	if !script.ContainsCountdown(text) {
		text = insertCountdown(text, fallback)
	}
	return text, nil
}

var (
	markdown   = regexp.MustCompile("[*_`#]+")
	whitespace = regexp.MustCompile(`\s+`)
)

// Normalize flattens model output into a single spoken paragraph
func Normalize(text string) string {
	text = markdown.ReplaceAllString(text, "")
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

func insertCountdown(text, countdown string) string {
	countdown = strings.TrimSpace(countdown)
	if countdown == "" {
		countdown = models.CountdownMarker + "..."
	}

	cut := lastSentenceStart(text)
	if cut <= 0 {
		return text + " " + countdown
	}
	return strings.TrimSpace(text[:cut]) + " " + countdown + " " + strings.TrimSpace(text[cut:])
}

// lastSentenceStart returns the byte offset of the final sentence, or -1
// when text is a single sentence.
func lastSentenceStart(text string) int {
	body := strings.TrimRight(text, " .!?")
	for i := len(body) - 1; i > 0; i-- {
		switch body[i] {
		case '.', '!', '?':
			if i+1 < len(body) && body[i+1] == ' ' {
				return i + 1
			}
		}
	}
	return -1
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
