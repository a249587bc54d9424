package timeline

import (
	"fmt"
	"math"

	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

const epsilon = 1e-6

// MinSpokenSegment is the shortest spoken segment Rescale will produce.
// Shorter ones can collapse to zero length once rounded to two decimals.
const MinSpokenSegment = 0.02

// Rescale stretches the spoken segments of tl so the timeline ends at
// measured seconds. The countdown keeps its fixed length. The input is not
// modified; when scaling is impossible, or would squeeze a spoken segment
// below MinSpokenSegment, a copy of tl is returned unchanged.
func Rescale(tl models.Timeline, measured float64) models.Timeline {
	if tl.Empty() || measured <= 0 {
		return clone(tl)
	}

	fixed, shortest := 0.0, math.Inf(1)
	for _, seg := range tl.Segments {
		if seg.Phase == models.PhaseTimer {
			fixed += seg.Duration()
			continue
		}
		shortest = math.Min(shortest, seg.Duration())
	}

	spoken := tl.TotalDuration - fixed
	target := measured - fixed
	if spoken <= 0 || target <= 0 {
		return clone(tl)
	}
	factor := target / spoken
	if shortest*factor < MinSpokenSegment {
		return clone(tl)
	}

	out := models.Timeline{
		Segments: make([]models.CaptionSegment, len(tl.Segments)),
		HasTimer: tl.HasTimer,
	}

	cursor := 0.0
	for i, seg := range tl.Segments {
		d := seg.Duration()
		if seg.Phase != models.PhaseTimer {
			d *= factor
		}
		start, end := cursor, cursor+d

		ns := models.CaptionSegment{Start: start, End: end, Text: seg.Text, Phase: seg.Phase}
		if seg.Words != nil {
			ns.Words = make([]models.Word, len(seg.Words))
			for j, w := range seg.Words {
				ns.Words[j] = models.Word{
					Word:  w.Word,
					Start: remap(w.Start, seg, start, end),
					End:   remap(w.End, seg, start, end),
				}
			}
			ns.Words[len(ns.Words)-1].End = end
		}

		out.Segments[i] = ns
		cursor = end
	}
	out.TotalDuration = cursor

	return out
}

func remap(t float64, seg models.CaptionSegment, start, end float64) float64 {
	d := seg.Duration()
	if d <= 0 {
		return start
	}
	v := start + (t-seg.Start)/d*(end-start)
	return math.Min(math.Max(v, start), end)
}

func clone(tl models.Timeline) models.Timeline {
	out := models.Timeline{TotalDuration: tl.TotalDuration, HasTimer: tl.HasTimer}
	if tl.Segments == nil {
		return out
	}
	out.Segments = make([]models.CaptionSegment, len(tl.Segments))
	for i, seg := range tl.Segments {
		out.Segments[i] = seg
		if seg.Words != nil {
			out.Segments[i].Words = append([]models.Word(nil), seg.Words...)
		}
	}
	return out
}

// Validate checks that tl is a contiguous partition of [0, total] with
// well-formed word timestamps.
func Validate(tl models.Timeline) error {
	if tl.Empty() {
		if tl.TotalDuration != 0 {
			return fmt.Errorf("empty timeline has total duration %.2f", tl.TotalDuration)
		}
		return nil
	}

	if math.Abs(tl.Segments[0].Start) > epsilon {
		return fmt.Errorf("first segment starts at %.3f, want 0", tl.Segments[0].Start)
	}

	timers := 0
	for i, seg := range tl.Segments {
		if !seg.Phase.Valid() {
			return fmt.Errorf("segment %d has unknown phase %q", i, seg.Phase)
		}
		if seg.Phase == models.PhaseTimer {
			timers++
		}
		if seg.End <= seg.Start {
			return fmt.Errorf("segment %d is empty: [%.3f, %.3f]", i, seg.Start, seg.End)
		}
		if i > 0 && math.Abs(tl.Segments[i-1].End-seg.Start) > epsilon {
			return fmt.Errorf("segment %d starts at %.3f but previous ends at %.3f", i, seg.Start, tl.Segments[i-1].End)
		}

		prev := seg.Start
		for j, w := range seg.Words {
			if w.Start < prev-epsilon || w.End < w.Start-epsilon {
				return fmt.Errorf("segment %d word %d (%q) is out of order", i, j, w.Word)
			}
			if w.Start < seg.Start-epsilon || w.End > seg.End+epsilon {
				return fmt.Errorf("segment %d word %d (%q) lies outside its segment", i, j, w.Word)
			}
			prev = w.Start
		}
	}

	last := tl.Segments[len(tl.Segments)-1]
	if math.Abs(last.End-tl.TotalDuration) > epsilon {
		return fmt.Errorf("total duration %.3f does not match last segment end %.3f", tl.TotalDuration, last.End)
	}
	if timers > 1 {
		return fmt.Errorf("timeline has %d timer segments", timers)
	}
	if tl.HasTimer != (timers == 1) {
		return fmt.Errorf("has_timer=%t but found %d timer segments", tl.HasTimer, timers)
	}

	return nil
}
