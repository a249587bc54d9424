// Package fonts provides glyph metrics and font faces for the embedded Go
// fonts. Measuring is safe for concurrent use; faces are not and must be
// owned by a single goroutine.
package fonts

import (
	"fmt"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// Set is a regular and bold font pair
type Set struct {
	regular *truetype.Font
	bold    *truetype.Font
}

var (
	defaultOnce sync.Once
	defaultSet  *Set
	defaultErr  error
)

// Default returns the Go font pair, parsed once per process
func Default() (*Set, error) {
	defaultOnce.Do(func() {
		defaultSet, defaultErr = Parse(goregular.TTF, gobold.TTF)
	})
	return defaultSet, defaultErr
}

// Parse builds a Set from TrueType font data
func Parse(regular, bold []byte) (*Set, error) {
	r, err := truetype.Parse(regular)
	if err != nil {
		return nil, fmt.Errorf("failed to parse regular font: %w", err)
	}
	b, err := truetype.Parse(bold)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bold font: %w", err)
	}
	return &Set{regular: r, bold: b}, nil
}

func (s *Set) font(bold bool) *truetype.Font {
	if bold {
		return s.bold
	}
	return s.regular
}

// MeasureString returns the advance width of text in pixels at size,
// including kerning.
func (s *Set) MeasureString(text string, size float64, bold bool) float64 {
	f := s.font(bold)
	scale := fixed.Int26_6(size*64 + 0.5)

	var width fixed.Int26_6
	var prev truetype.Index
	for i, r := range []rune(text) {
		idx := f.Index(r)
		if i > 0 {
			width += f.Kern(scale, prev, idx)
		}
		width += f.HMetric(scale, idx).AdvanceWidth
		prev = idx
	}
	return float64(width) / 64
}

// NewFace returns a drawable face at size. Faces cache glyphs and must not
// be shared between goroutines.
func (s *Set) NewFace(size float64, bold bool) font.Face {
	return truetype.NewFace(s.font(bold), &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// FaceCache hands out faces by size and weight for one goroutine
type FaceCache struct {
	set   *Set
	faces map[faceKey]font.Face
}

type faceKey struct {
	size float64
	bold bool
}

// NewFaceCache creates an empty cache over set
func NewFaceCache(set *Set) *FaceCache {
	return &FaceCache{set: set, faces: make(map[faceKey]font.Face)}
}

// Face returns the cached face for size and weight, creating it on first use
func (c *FaceCache) Face(size float64, bold bool) font.Face {
	k := faceKey{size: size, bold: bold}
	if f, ok := c.faces[k]; ok {
		return f
	}
	f := c.set.NewFace(size, bold)
	c.faces[k] = f
	return f
}

// Close releases every cached face
func (c *FaceCache) Close() error {
	for k, f := range c.faces {
		f.Close()
		delete(c.faces, k)
	}
	return nil
}
