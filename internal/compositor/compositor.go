package compositor

import (
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

// Storyboard is everything a frame needs besides time and style
type Storyboard struct {
	Timeline  models.Timeline
	Header    string
	Statement string
	Options   []models.Option
	Answer    string
	Solution  string
}

// NewStoryboard collects the display fields of q. Options are only shown
// for choice questions.
func NewStoryboard(q *models.Question, tl models.Timeline) Storyboard {
	sb := Storyboard{
		Timeline:  tl,
		Header:    strings.TrimSpace(q.ExamName + " " + q.CourseName),
		Statement: strings.TrimSpace(q.Statement),
		Answer:    strings.TrimSpace(q.Answer),
		Solution:  strings.TrimSpace(q.Solution),
	}
	if q.IsChoice() {
		sb.Options = q.Options.Ordered()
	}
	return sb
}

// Layout constants in canvas pixels
const (
	panelRadius   = 30
	textWrapWidth = 840

	questionTextSize = 48
	optionTextSize   = 44
	solutionTextSize = 38
	captionTextSize  = 44

	captionY      = 1620
	captionHeight = 200
	captionWidth  = 920
)

var (
	panelShadow  = Shadow{Color: color.NRGBA{A: 77}, Blur: 20, OffsetY: 10}
	optionShadow = Shadow{Color: color.NRGBA{A: 51}, Blur: 15, OffsetY: 8}
	timerShadow  = Shadow{Color: color.NRGBA{A: 102}, Blur: 25, OffsetY: 12}
)

// Render returns the draw plan for the instant elapsed seconds into the
// reel. elapsed is clamped to the timeline.
func Render(sb Storyboard, elapsed float64, tmpl VisualTemplate, m Measurer) Frame {
	tl := sb.Timeline
	elapsed = Clamp(elapsed, tl.TotalDuration)

	phase := models.PhaseQuestion
	idx := ActiveSegment(tl, elapsed)
	var seg models.CaptionSegment
	if idx >= 0 {
		seg = tl.Segments[idx]
		phase = seg.Phase
	}

	p := &plan{}
	header(p, sb, tmpl)

	switch phase {
	case models.PhaseQuestion, models.PhaseFull:
		questionView(p, sb, tmpl, m)
	case models.PhaseTimer:
		timerView(p, Countdown(seg, elapsed), tmpl)
	case models.PhaseAnswer:
		answerView(p, sb, tmpl, m)
	}

	if idx >= 0 && phase != models.PhaseTimer {
		captionStrip(p, seg, ActiveWord(seg, elapsed), tmpl, m)
	}

	return Frame{
		Phase:      phase,
		Width:      Width,
		Height:     Height,
		Background: background(tmpl),
		Ops:        p.ops,
	}
}

// Countdown is the whole seconds left in the timer segment. It is floored
// at 1 on purpose: a timer that ends the timeline is drawn at elapsed ==
// total, and the box must never read 0.
func Countdown(seg models.CaptionSegment, elapsed float64) int {
	n := int(math.Ceil(seg.End - elapsed - cadenceTolerance))
	if n < 1 {
		return 1
	}
	return n
}

func background(tmpl VisualTemplate) Gradient {
	return Gradient{
		X0: 0, Y0: 0, X1: Width, Y1: Height,
		Stops: []GradientStop{
			{Offset: 0, Color: tmpl.Background[0]},
			{Offset: 0.5, Color: tmpl.Background[1]},
			{Offset: 1, Color: tmpl.Background[2]},
		},
	}
}

func header(p *plan, sb Storyboard, tmpl VisualTemplate) {
	p.rect(140, 60, 800, 120, 60, tmpl.HeaderBg, nil)
	if sb.Header != "" {
		p.text(sb.Header, Width/2, 120, 72, true, AlignCenter, tmpl.HeaderColor)
	}
}

func questionView(p *plan, sb Storyboard, tmpl VisualTemplate, m Measurer) {
	p.rect(80, 300, 920, 400, panelRadius, tmpl.QuestionBg, &panelShadow)
	for i, line := range Wrap(sb.Statement, textWrapWidth, questionTextSize, true, m) {
		p.text(line, Width/2, 400+float64(i)*60, questionTextSize, true, AlignCenter, tmpl.QuestionColor)
	}

	if len(sb.Options) == 0 {
		return
	}

	spacing, height := optionRows(len(sb.Options))
	badge := math.Min(50, height/2-10)
	for i, opt := range sb.Options {
		y := 800 + float64(i)*spacing
		r := p.rect(100, y, 880, height, panelRadius, tmpl.OptionBg, &optionShadow)
		r.Stroke = tmpl.OptionBorder
		r.StrokeWidth = 4

		p.circle(180, y+height/2, badge, tmpl.Accent)
		p.text(opt.Letter, 180, y+height/2, badge*1.12, true, AlignCenter, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

		lines := Wrap(opt.Text, 640, optionTextSize, false, m)
		top := y + height/2 - float64(len(lines)-1)*25
		for j, line := range lines {
			p.text(line, 260, top+float64(j)*50, optionTextSize, false, AlignLeft, tmpl.OptionColor)
		}
	}
}

// optionRows fits up to six option panels between the question panel and
// the caption strip.
func optionRows(n int) (spacing, height float64) {
	spacing = math.Min(180, 840/float64(n))
	return spacing, spacing - 40
}

func timerView(p *plan, remaining int, tmpl VisualTemplate) {
	p.rect(340, 800, 400, 200, 40, tmpl.TimerBg, &timerShadow)
	p.text(strconv.Itoa(remaining), Width/2, 900, 120, true, AlignCenter, tmpl.TimerColor)
	p.text("seconds", Width/2, 970, 40, true, AlignCenter, tmpl.TimerColor)
}

func answerView(p *plan, sb Storyboard, tmpl VisualTemplate, m Measurer) {
	p.rect(80, 300, 920, 200, panelRadius, tmpl.QuestionBg, &panelShadow)
	p.text("Correct Answer: "+sb.Answer, Width/2, 400, 52, true, AlignCenter, tmpl.QuestionColor)

	if sb.Solution == "" {
		return
	}

	p.rect(80, 550, 920, 800, panelRadius, tmpl.QuestionBg, &panelShadow)
	p.text("Solution:", Width/2, 620, 48, true, AlignCenter, tmpl.Accent)
	for i, line := range Wrap(sb.Solution, textWrapWidth, solutionTextSize, false, m) {
		p.text(line, Width/2, 700+float64(i)*50, solutionTextSize, false, AlignCenter, tmpl.QuestionColor)
	}
}

// captionStrip shows the active phrase centered near the bottom, one text op
// per word so the spoken word can carry the highlight color.
func captionStrip(p *plan, seg models.CaptionSegment, active int, tmpl VisualTemplate, m Measurer) {
	words := seg.Words
	if len(words) == 0 {
		for _, w := range strings.Fields(seg.Text) {
			words = append(words, models.Word{Word: w})
		}
	}
	if len(words) == 0 {
		return
	}

	p.rect((Width-captionWidth)/2, captionY, captionWidth, captionHeight, panelRadius, tmpl.CaptionBg, nil)

	space := m.MeasureString(" ", captionTextSize, true)
	lines := captionLines(words, space, m)
	top := captionY + captionHeight/2 - float64(len(lines)-1)*28

	for li, line := range lines {
		x := (Width - line.width) / 2
		y := top + float64(li)*56
		for _, wi := range line.words {
			c := tmpl.CaptionColor
			if wi == active {
				c = tmpl.Highlight
			}
			p.text(words[wi].Word, x, y, captionTextSize, true, AlignLeft, c)
			x += m.MeasureString(words[wi].Word, captionTextSize, true) + space
		}
	}
}

type captionLine struct {
	words []int
	width float64
}

func captionLines(words []models.Word, space float64, m Measurer) []captionLine {
	var lines []captionLine
	var cur captionLine
	for i, w := range words {
		ww := m.MeasureString(w.Word, captionTextSize, true)
		next := ww
		if len(cur.words) > 0 {
			next = cur.width + space + ww
		}
		if len(cur.words) > 0 && next > textWrapWidth {
			lines = append(lines, cur)
			cur = captionLine{}
			next = ww
		}
		cur.words = append(cur.words, i)
		cur.width = next
	}
	return append(lines, cur)
}
