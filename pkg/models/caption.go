package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
)

// CountdownMarker is the narration literal that separates the question
// region from the reveal region.
const CountdownMarker = "5... 4... 3... 2... 1"

// Phase is the semantic role of a caption segment
type Phase string

// Phase values
const (
	PhaseQuestion Phase = "question"
	PhaseTimer    Phase = "timer"
	PhaseAnswer   Phase = "answer"
	PhaseFull     Phase = "full"
)

// Valid reports whether p is a known phase
func (p Phase) Valid() bool {
	switch p {
	case PhaseQuestion, PhaseTimer, PhaseAnswer, PhaseFull:
		return true
	default:
		return false
	}
}

// Word is a single spoken word with its time range in seconds
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// CaptionSegment is a caption unit covering [Start, End)
type CaptionSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Phase Phase   `json:"type"`
	Words []Word  `json:"words,omitempty"`
}

// Duration returns the segment length in seconds
func (s CaptionSegment) Duration() float64 {
	return s.End - s.Start
}

// Timeline is the ordered caption partition of [0, TotalDuration]
type Timeline struct {
	Segments      []CaptionSegment `json:"captions"`
	TotalDuration float64          `json:"total_duration"`
	HasTimer      bool             `json:"has_timer"`
}

// Empty reports whether the timeline has no segments
func (t Timeline) Empty() bool {
	return len(t.Segments) == 0
}

// Rounded returns a copy with every time rounded to two decimals
func (t Timeline) Rounded() Timeline {
	out := Timeline{
		TotalDuration: round2(t.TotalDuration),
		HasTimer:      t.HasTimer,
	}
	if t.Segments == nil {
		return out
	}

	out.Segments = make([]CaptionSegment, len(t.Segments))
	for i, seg := range t.Segments {
		rs := CaptionSegment{
			Start: round2(seg.Start),
			End:   round2(seg.End),
			Text:  seg.Text,
			Phase: seg.Phase,
		}
		if seg.Words != nil {
			rs.Words = make([]Word, len(seg.Words))
			for j, w := range seg.Words {
				rs.Words[j] = Word{Word: w.Word, Start: round2(w.Start), End: round2(w.End)}
			}
		}
		out.Segments[i] = rs
	}
	return out
}

// MarshalJSON writes the persisted two-decimal form
func (t Timeline) MarshalJSON() ([]byte, error) {
	type plain Timeline
	return json.Marshal(plain(t.Rounded()))
}

// Value implements driver.Valuer for database storage
func (t Timeline) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// Scan implements sql.Scanner for database retrieval
func (t *Timeline) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported timeline type %T", value)
	}

	return json.Unmarshal(data, t)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
