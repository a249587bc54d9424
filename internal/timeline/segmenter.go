// Package timeline turns narration text into a caption timeline: an ordered
// partition of [0, total] into phrase segments with word-level timestamps.
package timeline

import (
	"strings"

	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

const (
	// DefaultWordsPerSecond is the speaking rate used to estimate durations
	DefaultWordsPerSecond = 2.5

	// TimerDuration is the fixed length of the countdown phase in seconds
	TimerDuration = 5.0

	// TimerText is the caption shown during the countdown phase
	TimerText = "5... 4... 3... 2... 1..."

	maxPhraseWords = 5
)

// Options controls segmentation
type Options struct {
	WordsPerSecond float64
}

func (o Options) wps() float64 {
	if o.WordsPerSecond <= 0 {
		return DefaultWordsPerSecond
	}
	return o.WordsPerSecond
}

// Segment builds the caption timeline for text. Timings come only from the
// words-per-second rate; use Rescale to fit a measured audio duration.
func Segment(text string, opts Options) models.Timeline {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Timeline{Segments: []models.CaptionSegment{}}
	}

	b := &builder{wps: opts.wps()}

	// Only a single countdown splits the script into phases.
	if strings.Count(text, models.CountdownMarker) != 1 {
		b.full(text)
		return b.timeline(false)
	}
	idx := strings.Index(text, models.CountdownMarker)

	pre := text[:idx]
	post := strings.TrimLeft(text[idx+len(models.CountdownMarker):], ". \t\r\n")

	b.region(pre, models.PhaseQuestion)
	b.timer()
	b.region(post, models.PhaseAnswer)

	return b.timeline(true)
}

// EstimateDuration returns the spoken length of text at the given rate,
// counting the countdown as its fixed duration.
func EstimateDuration(text string, opts Options) float64 {
	return Segment(text, opts).TotalDuration
}

type builder struct {
	wps      float64
	cursor   float64
	segments []models.CaptionSegment
}

// region applies the phrase flushing rule: a phrase ends at five words, at a
// word with sentence-final punctuation, or at the end of the region.
func (b *builder) region(text string, phase models.Phase) {
	words := strings.Fields(text)

	var phrase []string
	for i, w := range words {
		phrase = append(phrase, w)
		if len(phrase) >= maxPhraseWords || endsSentence(w) || i == len(words)-1 {
			b.emit(phrase, strings.Join(phrase, " "), phase)
			phrase = nil
		}
	}
}

func (b *builder) full(text string) {
	words := strings.Fields(text)
	b.emit(words, strings.Join(words, " "), models.PhaseFull)
}

func (b *builder) timer() {
	start := b.cursor
	end := start + TimerDuration
	b.segments = append(b.segments, models.CaptionSegment{
		Start: start,
		End:   end,
		Text:  TimerText,
		Phase: models.PhaseTimer,
	})
	b.cursor = end
}

func (b *builder) emit(words []string, text string, phase models.Phase) {
	if len(words) == 0 {
		return
	}

	start := b.cursor
	end := start + float64(len(words))/b.wps
	b.segments = append(b.segments, models.CaptionSegment{
		Start: start,
		End:   end,
		Text:  text,
		Phase: phase,
		Words: subdivide(words, start, end),
	})
	b.cursor = end
}

func (b *builder) timeline(hasTimer bool) models.Timeline {
	segments := b.segments
	if segments == nil {
		segments = []models.CaptionSegment{}
	}
	return models.Timeline{
		Segments:      segments,
		TotalDuration: b.cursor,
		HasTimer:      hasTimer,
	}
}

// subdivide spreads words evenly over [start, end]. The last word always
// ends exactly at end so float drift never leaves a gap.
func subdivide(words []string, start, end float64) []models.Word {
	step := (end - start) / float64(len(words))
	out := make([]models.Word, len(words))
	for i, w := range words {
		ws := start + float64(i)*step
		we := start + float64(i+1)*step
		if i == len(words)-1 || we > end {
			we = end
		}
		out[i] = models.Word{Word: w, Start: ws, End: we}
	}
	return out
}

func endsSentence(word string) bool {
	if word == "" {
		return false
	}
	switch word[len(word)-1] {
	case '.', '!', '?':
		return true
	default:
		return false
	}
}
