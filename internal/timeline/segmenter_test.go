package timeline

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/script"
	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

const delta = 1e-9

func TestSegmentWithCountdownMarker(t *testing.T) {
	tl := Segment("Intro text here now go. 5... 4... 3... 2... 1... Reveal answer text.", Options{WordsPerSecond: 2.5})

	require.Len(t, tl.Segments, 3)
	assert.True(t, tl.HasTimer)

	q := tl.Segments[0]
	assert.Equal(t, models.PhaseQuestion, q.Phase)
	assert.Equal(t, "Intro text here now go.", q.Text)
	assert.InDelta(t, 0.0, q.Start, delta)
	assert.InDelta(t, 2.0, q.End, delta)

	timer := tl.Segments[1]
	assert.Equal(t, models.PhaseTimer, timer.Phase)
	assert.Equal(t, "5... 4... 3... 2... 1...", timer.Text)
	assert.InDelta(t, 2.0, timer.Start, delta)
	assert.InDelta(t, 7.0, timer.End, delta)
	assert.Empty(t, timer.Words)

	a := tl.Segments[2]
	assert.Equal(t, models.PhaseAnswer, a.Phase)
	assert.Equal(t, "Reveal answer text.", a.Text)
	assert.InDelta(t, 7.0, a.Start, delta)
	assert.InDelta(t, 8.2, a.End, delta)

	assert.InDelta(t, 8.2, tl.TotalDuration, delta)
	require.NoError(t, Validate(tl))
}

func TestSegmentWithoutMarker(t *testing.T) {
	tl := Segment("one two three four five six seven eight nine ten", Options{WordsPerSecond: 2.5})

	require.Len(t, tl.Segments, 1)
	seg := tl.Segments[0]
	assert.Equal(t, models.PhaseFull, seg.Phase)
	assert.InDelta(t, 0.0, seg.Start, delta)
	assert.InDelta(t, 4.0, seg.End, delta)
	assert.InDelta(t, 4.0, tl.TotalDuration, delta)
	assert.False(t, tl.HasTimer)
	require.Len(t, seg.Words, 10)
	assert.InDelta(t, 0.4, seg.Words[0].End, delta)
	assert.Equal(t, seg.End, seg.Words[9].End)
}

func TestSegmentRepeatedMarkerIsFull(t *testing.T) {
	text := "Ready? 5... 4... 3... 2... 1... Again 5... 4... 3... 2... 1... Done."
	tl := Segment(text, Options{WordsPerSecond: 2.5})

	require.Len(t, tl.Segments, 1)
	seg := tl.Segments[0]
	assert.Equal(t, models.PhaseFull, seg.Phase)
	assert.False(t, tl.HasTimer)
	require.Len(t, seg.Words, len(strings.Fields(text)))
	assert.InDelta(t, float64(len(strings.Fields(text)))/2.5, tl.TotalDuration, delta)
	require.NoError(t, Validate(tl))
}

func TestSegmentEmptyScript(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		tl := Segment(text, Options{})
		assert.Empty(t, tl.Segments)
		assert.NotNil(t, tl.Segments)
		assert.Equal(t, 0.0, tl.TotalDuration)
		assert.NoError(t, Validate(tl))
	}
}

func TestSegmentFlushRules(t *testing.T) {
	tl := Segment("Hi! one two three four five six seven Done 5... 4... 3... 2... 1", Options{WordsPerSecond: 2})

	require.Len(t, tl.Segments, 4)
	assert.Equal(t, "Hi!", tl.Segments[0].Text)
	assert.Equal(t, "one two three four five", tl.Segments[1].Text)
	assert.Equal(t, "six seven Done", tl.Segments[2].Text)
	for _, seg := range tl.Segments[:3] {
		assert.Equal(t, models.PhaseQuestion, seg.Phase)
	}
	assert.Equal(t, models.PhaseTimer, tl.Segments[3].Phase)
	assert.InDelta(t, 4.5+TimerDuration, tl.TotalDuration, delta)
}

func TestSegmentShortRegionFlushesAtEnd(t *testing.T) {
	tl := Segment("so what 5... 4... 3... 2... 1 and then", Options{})

	require.Len(t, tl.Segments, 3)
	assert.Equal(t, "so what", tl.Segments[0].Text)
	assert.Equal(t, models.PhaseTimer, tl.Segments[1].Phase)
	assert.Equal(t, "and then", tl.Segments[2].Text)
	assert.InDelta(t, 0.8, tl.Segments[0].End, delta)
}

func TestSegmentMarkerAtStart(t *testing.T) {
	tl := Segment("5... 4... 3... 2... 1... Answer time.", Options{})

	require.Len(t, tl.Segments, 2)
	assert.Equal(t, models.PhaseTimer, tl.Segments[0].Phase)
	assert.InDelta(t, 0.0, tl.Segments[0].Start, delta)
	assert.Equal(t, models.PhaseAnswer, tl.Segments[1].Phase)
	require.NoError(t, Validate(tl))
}

func TestSegmentMarkerAtEnd(t *testing.T) {
	tl := Segment("Ready? 5... 4... 3... 2... 1...", Options{})

	require.Len(t, tl.Segments, 2)
	assert.Equal(t, models.PhaseTimer, tl.Segments[1].Phase)
	assert.InDelta(t, 0.4+TimerDuration, tl.TotalDuration, delta)
}

func TestSegmentSynthesizedScripts(t *testing.T) {
	s := script.NewSynthesizer(script.DefaultCatalog(), nil)

	for _, tmpl := range s.Catalog().All() {
		res, err := s.Synthesize(script.Input{
			ExamName:     "GATE",
			CourseName:   "CS",
			Statement:    "What is 1/2 + 1/4?",
			QuestionType: "mcq",
			Options:      models.Options{"A": "3/4", "B": "1"},
			TemplateID:   tmpl.ID,
		})
		require.NoError(t, err)

		tl := Segment(res.Script, Options{})
		require.NoError(t, Validate(tl), "template %d", tmpl.ID)
		assert.True(t, tl.HasTimer, "template %d", tmpl.ID)
	}
}

// Random scripts must always produce a valid partition.
func TestSegmentPartitionProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	vocab := []string{"alpha", "beta.", "gamma", "delta!", "x", "why?", "z", "omega", "1/2", "done."}

	for i := 0; i < 500; i++ {
		n := rng.IntN(40)
		words := make([]string, n)
		for j := range words {
			words[j] = vocab[rng.IntN(len(vocab))]
		}
		if n > 0 && rng.IntN(2) == 0 {
			at := rng.IntN(n)
			words = append(words[:at], append([]string{models.CountdownMarker + "..."}, words[at:]...)...)
		}
		text := strings.Join(words, " ")
		wps := 1 + rng.Float64()*3

		tl := Segment(text, Options{WordsPerSecond: wps})
		require.NoError(t, Validate(tl), "text %q wps %f", text, wps)

		for k := 1; k < len(tl.Segments); k++ {
			assert.Equal(t, tl.Segments[k-1].End, tl.Segments[k].Start)
		}
		if len(tl.Segments) > 0 {
			assert.Equal(t, 0.0, tl.Segments[0].Start)
		}
	}
}

func TestEstimateDuration(t *testing.T) {
	assert.InDelta(t, 8.2, EstimateDuration("Intro text here now go. 5... 4... 3... 2... 1... Reveal answer text.", Options{}), delta)
	assert.InDelta(t, 2.0, EstimateDuration("a b c d", Options{WordsPerSecond: 2}), delta)
}
