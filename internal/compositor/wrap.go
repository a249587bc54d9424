package compositor

import "strings"

// Measurer reports the advance width in pixels of text set at size
type Measurer interface {
	MeasureString(text string, size float64, bold bool) float64
}

// Wrap breaks text into lines no wider than maxWidth, breaking only at
// spaces. A single word wider than maxWidth gets a line of its own.
func Wrap(text string, maxWidth, size float64, bold bool, m Measurer) []string {
	var lines []string
	line := ""
	for _, word := range strings.Fields(text) {
		candidate := word
		if line != "" {
			candidate = line + " " + word
		}
		if line != "" && m.MeasureString(candidate, size, bold) > maxWidth {
			lines = append(lines, line)
			line = word
			continue
		}
		line = candidate
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}
