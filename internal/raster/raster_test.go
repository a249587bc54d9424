package raster

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/compositor"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/fonts"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/timeline"
	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

func testFrame(t *testing.T, elapsed float64) (compositor.Frame, compositor.VisualTemplate, *fonts.Set) {
	t.Helper()
	set, err := fonts.Default()
	require.NoError(t, err)

	tmpl, err := compositor.DefaultCatalog().Lookup(3)
	require.NoError(t, err)

	q := &models.Question{
		ExamName:     "GATE",
		CourseName:   "CS",
		Statement:    "Which data structure gives O(1) average lookup?",
		QuestionType: models.QuestionTypeMCQ,
		Options:      models.Options{"A": "Hash table", "B": "Linked list"},
		Answer:       "A",
	}
	tl := timeline.Segment("Which one is it? 5... 4... 3... 2... 1... It is the hash table.", timeline.Options{})
	sb := compositor.NewStoryboard(q, tl)

	return compositor.Render(sb, elapsed, tmpl, set), tmpl, set
}

func TestDrawProducesCanvasSizedImage(t *testing.T) {
	f, tmpl, set := testFrame(t, 0)

	r := New(compositor.Width, compositor.Height, set)
	defer r.Close()

	img := r.Draw(f)
	require.NotNil(t, img)
	assert.Equal(t, compositor.Width, img.Bounds().Dx())
	assert.Equal(t, compositor.Height, img.Bounds().Dy())
	assert.Len(t, img.Pix, compositor.Width*compositor.Height*4)

	// top-left corner is the first gradient stop
	c := img.RGBAAt(0, 0)
	bg := tmpl.Background[0]
	assert.Equal(t, bg.R, c.R)
	assert.Equal(t, bg.G, c.G)
	assert.Equal(t, bg.B, c.B)

	// the question panel is near-white
	panel := img.RGBAAt(540, 320)
	assert.Greater(t, panel.R, uint8(200))
}

func TestDrawIsRepeatable(t *testing.T) {
	f, _, set := testFrame(t, 3.0)

	r := New(compositor.Width, compositor.Height, set)
	defer r.Close()

	first := append([]byte(nil), r.Draw(f).Pix...)
	other, _, _ := testFrame(t, 0)
	r.Draw(other)
	second := r.Draw(f).Pix

	assert.True(t, bytes.Equal(first, second))
}

func TestEncodePNG(t *testing.T) {
	f, _, set := testFrame(t, 7.5)

	r := New(compositor.Width, compositor.Height, set)
	defer r.Close()

	var buf bytes.Buffer
	require.NoError(t, r.EncodePNG(&buf, f))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, compositor.Width, img.Bounds().Dx())
}
