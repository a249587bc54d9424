package script

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

// Placeholder tokens substituted into template patterns
const (
	PlaceholderExamName  = "{exam_name}"
	PlaceholderCourse    = "{course_name}"
	PlaceholderStatement = "{question_statement}"
	PlaceholderOptions   = "{options_text}"
)

// CountdownMarker is re-exported for template authors
const CountdownMarker = models.CountdownMarker

// ErrUnknownTemplate is returned when an explicit template id is not in the catalog
var ErrUnknownTemplate = errors.New("unknown script template")

// Template is one narration style
type Template struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Intro     string `json:"intro"`
	Question  string `json:"question"`
	Countdown string `json:"countdown"`
	Reveal    string `json:"reveal"`
	Outro     string `json:"outro"`
}

// Catalog is an immutable set of narration templates
type Catalog struct {
	templates []Template
	byID      map[int]int
}

// NewCatalog builds a catalog; ids must be positive and unique.
func NewCatalog(templates ...Template) (*Catalog, error) {
	if len(templates) == 0 {
		return nil, fmt.Errorf("catalog needs at least one template")
	}

	c := &Catalog{
		templates: make([]Template, len(templates)),
		byID:      make(map[int]int, len(templates)),
	}
	for i, t := range templates {
		if t.ID <= 0 {
			return nil, fmt.Errorf("template %q has invalid id %d", t.Name, t.ID)
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate template id %d", t.ID)
		}
		c.templates[i] = t
		c.byID[t.ID] = i
	}

	return c, nil
}

// Get returns the template with the given id
func (c *Catalog) Get(id int) (Template, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Template{}, false
	}
	return c.templates[i], true
}

// All returns a copy of every template in catalog order
func (c *Catalog) All() []Template {
	out := make([]Template, len(c.templates))
	copy(out, c.templates)
	return out
}

// Len returns the number of templates
func (c *Catalog) Len() int {
	return len(c.templates)
}

// Pick chooses a template uniformly at random from rng
func (c *Catalog) Pick(rng *rand.Rand) Template {
	return c.templates[rng.IntN(len(c.templates))]
}

// ContainsCountdown reports whether text carries the countdown marker
func ContainsCountdown(text string) bool {
	return strings.Contains(text, CountdownMarker)
}

// DefaultCatalog returns the built-in narration styles.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultTemplates...)
	if err != nil {
		panic(err)
	}
	return c
}

var defaultTemplates = []Template{
	{
		ID:        1,
		Name:      "Engaging Classroom Style",
		Intro:     "Hey everyone! Today we are solving a question from {exam_name} for {course_name}.",
		Question:  "So the question says: {question_statement}. {options_text}",
		Countdown: "I want you to try this yourself. Take 5 seconds. Ready? 5... 4... 3... 2... 1...",
		Reveal:    "Okay, time is up! The answer and solution are on your screen.",
		Outro:     `If you want a complete roadmap for {exam_name} {course_name}, follow and comment "roadmap" and it will be in your DMs.`,
	},
	{
		ID:        2,
		Name:      "Direct and Clear Style",
		Intro:     "Hello! Quick question for {exam_name} {course_name} today.",
		Question:  "The question is: {question_statement}. {options_text}",
		Countdown: "Try it yourself! You have 5 seconds. 5... 4... 3... 2... 1... Done!",
		Reveal:    "Time up! Here is the answer on your screen.",
		Outro:     `For complete {exam_name} {course_name} preparation guide, follow and comment "guide". Check your DMs!`,
	},
	{
		ID:        3,
		Name:      "Motivational Style",
		Intro:     "What is up! Ready for a {exam_name} {course_name} challenge today?",
		Question:  "Here is the question: {question_statement}. {options_text}",
		Countdown: "Think you can solve it? Let me see! 5 seconds starting now... 5... 4... 3... 2... 1... Let us check!",
		Reveal:    "And the answer is revealed on your screen!",
		Outro:     `Want to master {exam_name} {course_name}? Follow me and drop "roadmap" for the complete preparation guide in your DMs!`,
	},
	{
		ID:        4,
		Name:      "Professional Academic Style",
		Intro:     "Welcome. Today we will solve a question from {exam_name} for {course_name}.",
		Question:  "The question states: {question_statement}. {options_text}",
		Countdown: "Attempt this problem independently. 5 seconds. 5... 4... 3... 2... 1... Proceed.",
		Reveal:    "The correct answer is now displayed on screen.",
		Outro:     `For comprehensive {exam_name} {course_name} preparation resources, follow and comment "roadmap".`,
	},
	{
		ID:        5,
		Name:      "Friendly Tutor Style",
		Intro:     "Hey there! Got an interesting {exam_name} {course_name} question for you today.",
		Question:  "Let us read it: {question_statement}. {options_text}",
		Countdown: "Give it a shot! I will wait 5 seconds. 5... 4... 3... 2... 1... Okay!",
		Reveal:    "Here is the answer on your screen!",
		Outro:     `Need more practice with {exam_name} {course_name}? Hit follow and comment "roadmap" for the complete guide!`,
	},
}
