package script

import (
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

func TestSpeakMath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"half", "1/2", "one-half"},
		{"third", "1/3", "one-third"},
		{"fourth", "1/4", "one-fourth"},
		{"two thirds", "2/3", "two-thirds"},
		{"three fourths", "3/4", "three-fourths"},
		{"generic fraction", "3/5", "3 by 5"},
		{"squared", "x^2", "x squared"},
		{"cubed", "y^3", "y cubed"},
		{"higher power", "z^7", "z raised to power 7"},
		{"multi digit power", "x^10", "x raised to power 10"},
		{"equation", "a=b", "a equals b"},
		{"inequality", "x≤5", "x less than or equal to 5"},
		{"not equal", "a ≠ b", "a not equals b"},
		{"product", "2*3", "2 times 3"},
		{"division", "6÷2", "6 divided by 2"},
		{"root", "√4", "square root of 4"},
		{"constants", "π and ∞", "pi and infinity"},
		{"sum and integral", "∑ ∫", "sum of integral of"},
		{"comparisons", "1<2>0", "1 less than 2 greater than 0"},
		{"matrix", "[1,2;3,4]", "a matrix of 2 by 2 with elements 1 and 2 next row 3 and 4"},
		{"single row bracket", "[1,2,3]", "[1,2,3]"},
		{"latex wrapper", `\text{speed}`, "speed"},
		{"dollar markup", "$x^2$", "x squared"},
		{"whitespace", "  a   b \n c ", "a b c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SpeakMath(tt.in))
		})
	}
}

func TestFormatOptions(t *testing.T) {
	opts := models.Options{"A": "0", "B": "1/2", "C": "∞", "D": "Does not exist"}

	got := FormatOptions(opts, "mcq")
	assert.Equal(t, "The options are: Option A: 0. Option B: one-half. Option C: infinity. Option D: Does not exist.", got)

	assert.Equal(t, got, FormatOptions(opts, "MSQ"))
	assert.Empty(t, FormatOptions(opts, "nat"))
	assert.Empty(t, FormatOptions(nil, "mcq"))
}

func TestFillPlaceholders(t *testing.T) {
	got := Fill("Hey {exam_name} {course_name}", Vars{ExamName: "GATE", CourseName: "CS"})
	assert.Equal(t, "Hey GATE CS", got)
}

func TestFillDefaultsAndLiteralValues(t *testing.T) {
	got := Fill("{exam_name} / {course_name}", Vars{})
	assert.Equal(t, "this exam / this course", got)

	got = Fill("Q: {question_statement}", Vars{Statement: "what is {exam_name}?", ExamName: "JEE"})
	assert.Equal(t, "Q: what is {exam_name}?", got)
}

func TestSynthesizeExplicitTemplateIsDeterministic(t *testing.T) {
	s := NewSynthesizer(DefaultCatalog(), nil)

	in := Input{
		ExamName:     "IIT JAM",
		CourseName:   "Mathematics",
		Statement:    "What is the value of x^2 when x=1/2",
		QuestionType: "mcq",
		Options:      models.Options{"A": "1/4", "B": "1"},
		Answer:       "A",
		TemplateID:   2,
	}

	first, err := s.Synthesize(in)
	require.NoError(t, err)
	second, err := s.Synthesize(in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, first.TemplateID)
	assert.Equal(t,
		"Hello! Quick question for IIT JAM Mathematics today. "+
			"The question is: What is the value of x squared when x equals one-half. "+
			"The options are: Option A: one-fourth. Option B: 1. "+
			"Try it yourself! You have 5 seconds. 5... 4... 3... 2... 1... Done! "+
			"Time up! Here is the answer on your screen. "+
			`For complete IIT JAM Mathematics preparation guide, follow and comment "guide". Check your DMs!`,
		first.Script)
}

func TestSynthesizeNonChoiceOmitsOptions(t *testing.T) {
	s := NewSynthesizer(DefaultCatalog(), nil)

	res, err := s.Synthesize(Input{
		ExamName:     "GATE",
		CourseName:   "CS",
		Statement:    "How many edges does a tree with 10 nodes have?",
		QuestionType: "nat",
		Options:      models.Options{"A": "9"},
		TemplateID:   4,
	})
	require.NoError(t, err)

	assert.NotContains(t, res.Script, "Option")
	assert.NotContains(t, res.Script, "  ")
	assert.True(t, ContainsCountdown(res.Script))
	assert.Equal(t, res.Script, strings.TrimSpace(res.Script))
}

func TestSynthesizeUnknownTemplate(t *testing.T) {
	s := NewSynthesizer(DefaultCatalog(), nil)

	_, err := s.Synthesize(Input{Statement: "x", TemplateID: 99})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownTemplate))
}

func TestSynthesizeRandomPickUsesInjectedSource(t *testing.T) {
	in := Input{ExamName: "GATE", CourseName: "CS", Statement: "2+2"}

	a := NewSynthesizer(DefaultCatalog(), rand.New(rand.NewPCG(42, 7)))
	b := NewSynthesizer(DefaultCatalog(), rand.New(rand.NewPCG(42, 7)))

	for i := 0; i < 10; i++ {
		ra, err := a.Synthesize(in)
		require.NoError(t, err)
		rb, err := b.Synthesize(in)
		require.NoError(t, err)
		assert.Equal(t, ra, rb)
		assert.GreaterOrEqual(t, ra.TemplateID, 1)
		assert.LessOrEqual(t, ra.TemplateID, 5)
	}
}

func TestEveryDefaultTemplateHasCountdown(t *testing.T) {
	for _, tmpl := range DefaultCatalog().All() {
		assert.True(t, ContainsCountdown(tmpl.Countdown), "template %d", tmpl.ID)
	}
}

func TestNewCatalogValidation(t *testing.T) {
	_, err := NewCatalog()
	assert.Error(t, err)

	_, err = NewCatalog(Template{ID: 0, Name: "zero"})
	assert.Error(t, err)

	_, err = NewCatalog(Template{ID: 1}, Template{ID: 1})
	assert.Error(t, err)
}

func TestCatalogAllReturnsCopy(t *testing.T) {
	c := DefaultCatalog()
	all := c.All()
	all[0].Intro = "changed"

	tmpl, ok := c.Get(all[0].ID)
	require.True(t, ok)
	assert.NotEqual(t, "changed", tmpl.Intro)
}
