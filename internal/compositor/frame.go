// Package compositor maps a point on a caption timeline to the draw
// instructions of one video frame. Render is pure: the same storyboard,
// elapsed time and template always produce the same Frame.
package compositor

import (
	"image/color"

	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

// Canvas geometry of a vertical reel
const (
	Width  = 1080
	Height = 1920
	FPS    = 30
)

// OpKind tags a draw instruction
type OpKind int

// Draw instruction kinds
const (
	OpRoundedRect OpKind = iota + 1
	OpCircle
	OpText
)

func (k OpKind) String() string {
	switch k {
	case OpRoundedRect:
		return "rounded_rect"
	case OpCircle:
		return "circle"
	case OpText:
		return "text"
	default:
		return "unknown"
	}
}

// Align is the horizontal anchor of a text op
type Align int

// Text anchors
const (
	AlignCenter Align = iota
	AlignLeft
)

// Shadow is a soft drop shadow under a shape
type Shadow struct {
	Color   color.NRGBA
	Blur    float64
	OffsetY float64
}

// Op is a single draw instruction. Which fields matter depends on Kind:
// rects use X, Y, W, H and Radius; circles use X, Y (center) and Radius;
// text uses X, Y (vertical center), Text, Size, Bold and Align.
type Op struct {
	Kind OpKind

	X, Y, W, H float64
	Radius     float64

	Fill        color.NRGBA
	Stroke      color.NRGBA
	StrokeWidth float64
	Shadow      *Shadow

	Text  string
	Size  float64
	Bold  bool
	Align Align
}

// GradientStop is one color stop of the background gradient
type GradientStop struct {
	Offset float64
	Color  color.NRGBA
}

// Gradient is a linear gradient from (X0, Y0) to (X1, Y1)
type Gradient struct {
	X0, Y0, X1, Y1 float64
	Stops          []GradientStop
}

// Frame is the complete draw plan for one instant of the reel
type Frame struct {
	Phase      models.Phase
	Width      int
	Height     int
	Background Gradient
	Ops        []Op
}

// Texts returns the text of every text op in draw order
func (f Frame) Texts() []string {
	var out []string
	for _, op := range f.Ops {
		if op.Kind == OpText {
			out = append(out, op.Text)
		}
	}
	return out
}

// Count returns the number of ops of the given kind
func (f Frame) Count(kind OpKind) int {
	n := 0
	for _, op := range f.Ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

type plan struct {
	ops []Op
}

func (p *plan) rect(x, y, w, h, r float64, fill color.NRGBA, shadow *Shadow) *Op {
	p.ops = append(p.ops, Op{Kind: OpRoundedRect, X: x, Y: y, W: w, H: h, Radius: r, Fill: fill, Shadow: shadow})
	return &p.ops[len(p.ops)-1]
}

func (p *plan) circle(x, y, r float64, fill color.NRGBA) {
	p.ops = append(p.ops, Op{Kind: OpCircle, X: x, Y: y, Radius: r, Fill: fill})
}

func (p *plan) text(s string, x, y, size float64, bold bool, align Align, c color.NRGBA) {
	p.ops = append(p.ops, Op{Kind: OpText, X: x, Y: y, Text: s, Size: size, Bold: bold, Align: align, Fill: c})
}
