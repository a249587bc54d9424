package compositor

import (
	"math"
	"sort"

	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

// Clamp limits elapsed to [0, total]. NaN maps to 0.
func Clamp(elapsed, total float64) float64 {
	if math.IsNaN(elapsed) || elapsed < 0 {
		return 0
	}
	if elapsed > total {
		return total
	}
	return elapsed
}

// ActiveSegment returns the index of the segment covering elapsed. The end
// of the timeline belongs to the last segment. It returns -1 for an empty
// timeline.
func ActiveSegment(tl models.Timeline, elapsed float64) int {
	n := len(tl.Segments)
	if n == 0 {
		return -1
	}
	i := sort.Search(n, func(i int) bool { return tl.Segments[i].End > elapsed })
	if i == n {
		return n - 1
	}
	return i
}

// ActiveWord returns the index of the word being spoken at elapsed within
// seg, or -1 when seg has no words or elapsed falls before the first word.
func ActiveWord(seg models.CaptionSegment, elapsed float64) int {
	n := len(seg.Words)
	if n == 0 {
		return -1
	}
	i := sort.Search(n, func(i int) bool { return seg.Words[i].End > elapsed })
	if i == n {
		return n - 1
	}
	if seg.Words[i].Start > elapsed {
		return -1
	}
	return i
}
