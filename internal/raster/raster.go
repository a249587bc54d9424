// Package raster draws compositor frames onto RGBA images with gg.
package raster

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/fogleman/gg"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/compositor"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/fonts"
)

const shadowLayers = 6

// Rasterizer owns one drawing surface. It is not safe for concurrent use;
// give each worker goroutine its own.
type Rasterizer struct {
	dc    *gg.Context
	faces *fonts.FaceCache
}

// New creates a rasterizer for width x height frames
func New(width, height int, set *fonts.Set) *Rasterizer {
	return &Rasterizer{
		dc:    gg.NewContext(width, height),
		faces: fonts.NewFaceCache(set),
	}
}

// Draw paints f and returns the surface. The image is reused by the next
// call to Draw.
func (r *Rasterizer) Draw(f compositor.Frame) *image.RGBA {
	dc := r.dc
	dc.Identity()

	g := gg.NewLinearGradient(f.Background.X0, f.Background.Y0, f.Background.X1, f.Background.Y1)
	for _, stop := range f.Background.Stops {
		g.AddColorStop(stop.Offset, stop.Color)
	}
	dc.SetFillStyle(g)
	dc.DrawRectangle(0, 0, float64(dc.Width()), float64(dc.Height()))
	dc.Fill()

	for _, op := range f.Ops {
		switch op.Kind {
		case compositor.OpRoundedRect:
			r.roundedRect(op)
		case compositor.OpCircle:
			dc.DrawCircle(op.X, op.Y, op.Radius)
			dc.SetColor(op.Fill)
			dc.Fill()
		case compositor.OpText:
			dc.SetFontFace(r.faces.Face(op.Size, op.Bold))
			dc.SetColor(op.Fill)
			ax := 0.5
			if op.Align == compositor.AlignLeft {
				ax = 0
			}
			dc.DrawStringAnchored(op.Text, op.X, op.Y, ax, 0.35)
		}
	}

	return dc.Image().(*image.RGBA)
}

func (r *Rasterizer) roundedRect(op compositor.Op) {
	dc := r.dc

	if op.Shadow != nil {
		drawShadow(dc, op)
	}

	dc.DrawRoundedRectangle(op.X, op.Y, op.W, op.H, op.Radius)
	dc.SetColor(op.Fill)
	if op.StrokeWidth > 0 {
		dc.FillPreserve()
		dc.SetColor(op.Stroke)
		dc.SetLineWidth(op.StrokeWidth)
		dc.Stroke()
		return
	}
	dc.Fill()
}

// drawShadow approximates a blurred drop shadow with concentric translucent
// rounded rectangles that grow outward by the blur radius.
func drawShadow(dc *gg.Context, op compositor.Op) {
	s := op.Shadow
	layerAlpha := float64(s.Color.A) / shadowLayers
	for i := shadowLayers; i >= 1; i-- {
		spread := s.Blur * float64(i) / shadowLayers / 2
		dc.DrawRoundedRectangle(op.X-spread, op.Y+s.OffsetY-spread, op.W+2*spread, op.H+2*spread, op.Radius+spread)
		dc.SetColor(color.NRGBA{R: s.Color.R, G: s.Color.G, B: s.Color.B, A: uint8(layerAlpha)})
		dc.Fill()
	}
}

// EncodePNG draws f and writes it as PNG
func (r *Rasterizer) EncodePNG(w io.Writer, f compositor.Frame) error {
	r.Draw(f)
	if err := r.dc.EncodePNG(w); err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	return nil
}

// Close releases the cached font faces
func (r *Rasterizer) Close() error {
	return r.faces.Close()
}
