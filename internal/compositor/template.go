package compositor

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// ErrUnknownTemplate is returned for a visual template id not in the catalog
var ErrUnknownTemplate = errors.New("unknown visual template")

// VisualTemplate holds the colors of one reel style
type VisualTemplate struct {
	ID   int
	Name string

	Background [3]color.NRGBA

	HeaderBg      color.NRGBA
	HeaderColor   color.NRGBA
	QuestionBg    color.NRGBA
	QuestionColor color.NRGBA
	OptionBg      color.NRGBA
	OptionBorder  color.NRGBA
	OptionColor   color.NRGBA
	Accent        color.NRGBA
	TimerBg       color.NRGBA
	TimerColor    color.NRGBA
	CaptionBg     color.NRGBA
	CaptionColor  color.NRGBA
	Highlight     color.NRGBA
}

// Catalog is an immutable set of visual templates
type Catalog struct {
	templates []VisualTemplate
	byID      map[int]int
}

// NewCatalog builds a catalog; ids must be positive and unique.
func NewCatalog(templates ...VisualTemplate) (*Catalog, error) {
	if len(templates) == 0 {
		return nil, fmt.Errorf("catalog needs at least one template")
	}

	c := &Catalog{
		templates: make([]VisualTemplate, len(templates)),
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
func (c *Catalog) Get(id int) (VisualTemplate, bool) {
	i, ok := c.byID[id]
	if !ok {
		return VisualTemplate{}, false
	}
	return c.templates[i], true
}

// Lookup is Get with an error for unknown ids
func (c *Catalog) Lookup(id int) (VisualTemplate, error) {
	t, ok := c.Get(id)
	if !ok {
		return VisualTemplate{}, fmt.Errorf("%w: %d", ErrUnknownTemplate, id)
	}
	return t, nil
}

// All returns a copy of every template in catalog order
func (c *Catalog) All() []VisualTemplate {
	out := make([]VisualTemplate, len(c.templates))
	copy(out, c.templates)
	return out
}

// DefaultID is the template used when a job does not choose one
const DefaultID = 1

// DefaultCatalog returns the four built-in reel styles.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultTemplates()...)
	if err != nil {
		panic(err)
	}
	return c
}

func defaultTemplates() []VisualTemplate {
	white := hex("#ffffff")
	ink := hex("#1a1a1a")
	card := rgba(255, 255, 255, 0.95)
	captionBg := rgba(0, 0, 0, 0.55)

	return []VisualTemplate{
		{
			ID:            1,
			Name:          "Teal Gradient",
			Background:    [3]color.NRGBA{hex("#1a5f7a"), hex("#159895"), hex("#57c5b6")},
			HeaderBg:      rgba(21, 152, 149, 0.3),
			HeaderColor:   hex("#00fff5"),
			QuestionBg:    card,
			QuestionColor: ink,
			OptionBg:      rgba(255, 255, 255, 0.9),
			OptionBorder:  hex("#ffa500"),
			OptionColor:   ink,
			Accent:        hex("#ffa500"),
			TimerBg:       rgba(21, 152, 149, 0.9),
			TimerColor:    white,
			CaptionBg:     captionBg,
			CaptionColor:  white,
			Highlight:     hex("#ffa500"),
		},
		{
			ID:            2,
			Name:          "Light Modern",
			Background:    [3]color.NRGBA{hex("#f5f5f5"), hex("#e0e0e0"), hex("#d0d0d0")},
			HeaderBg:      rgba(32, 139, 139, 0.9),
			HeaderColor:   white,
			QuestionBg:    card,
			QuestionColor: ink,
			OptionBg:      rgba(255, 255, 255, 0.95),
			OptionBorder:  hex("#ff6b35"),
			OptionColor:   ink,
			Accent:        hex("#ff6b35"),
			TimerBg:       rgba(255, 107, 53, 0.9),
			TimerColor:    white,
			CaptionBg:     rgba(26, 26, 26, 0.8),
			CaptionColor:  white,
			Highlight:     hex("#ff6b35"),
		},
		{
			ID:            3,
			Name:          "Dark Neon",
			Background:    [3]color.NRGBA{hex("#0a1128"), hex("#1a1a2e"), hex("#16213e")},
			HeaderBg:      rgba(0, 255, 157, 0.2),
			HeaderColor:   hex("#00ff9d"),
			QuestionBg:    card,
			QuestionColor: ink,
			OptionBg:      rgba(34, 40, 49, 0.9),
			OptionBorder:  hex("#00ff9d"),
			OptionColor:   white,
			Accent:        hex("#00ff9d"),
			TimerBg:       rgba(0, 255, 157, 0.9),
			TimerColor:    hex("#0a1128"),
			CaptionBg:     captionBg,
			CaptionColor:  white,
			Highlight:     hex("#00ff9d"),
		},
		{
			ID:            4,
			Name:          "Orange Sunset",
			Background:    [3]color.NRGBA{hex("#f77062"), hex("#fe5196"), hex("#ffb997")},
			HeaderBg:      rgba(254, 81, 150, 0.3),
			HeaderColor:   white,
			QuestionBg:    card,
			QuestionColor: ink,
			OptionBg:      rgba(255, 255, 255, 0.9),
			OptionBorder:  hex("#fe5196"),
			OptionColor:   ink,
			Accent:        hex("#fe5196"),
			TimerBg:       rgba(254, 81, 150, 0.9),
			TimerColor:    white,
			CaptionBg:     captionBg,
			CaptionColor:  white,
			Highlight:     hex("#ffe066"),
		},
	}
}

// hex parses #rgb or #rrggbb; it panics on malformed input and is only
// used for literal tables.
func hex(s string) color.NRGBA {
	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil || len(s) != 6 {
		panic(fmt.Sprintf("bad color %q", s))
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}

func rgba(r, g, b uint8, a float64) color.NRGBA {
	return color.NRGBA{R: r, G: g, B: b, A: uint8(a*255 + 0.5)}
}
