// Package transcript acquires timed caption transcripts for a video by trying
// a set of independent retrieval methods in random order until one succeeds.
package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Segment is one timed caption unit.
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// End returns the offset at which the segment stops being displayed.
func (s Segment) End() float64 {
	return s.Start + s.Duration
}

// UnmarshalJSON accepts start and duration either as numbers or as timestamp
// strings, and "dur" as an alias of "duration".
func (s *Segment) UnmarshalJSON(data []byte) error {
	var raw struct {
		Text     string          `json:"text"`
		Start    json.RawMessage `json:"start"`
		Duration json.RawMessage `json:"duration"`
		Dur      json.RawMessage `json:"dur"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	start, err := flexSeconds(raw.Start)
	if err != nil {
		return fmt.Errorf("segment start: %w", err)
	}

	durField := raw.Duration
	if len(durField) == 0 {
		durField = raw.Dur
	}
	duration, err := flexSeconds(durField)
	if err != nil {
		return fmt.Errorf("segment duration: %w", err)
	}

	s.Text = raw.Text
	s.Start = start
	s.Duration = duration
	return nil
}

// flexSeconds decodes a JSON number or a timestamp string into seconds.
func flexSeconds(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		if strings.TrimSpace(s) == "" {
			return 0, nil
		}
		return ParseTimestamp(s)
	}
	return strconv.ParseFloat(string(raw), 64)
}

// Transcript is an ordered sequence of segments.
type Transcript []Segment

// IsEmpty reports whether the transcript carries no usable segment.
func (t Transcript) IsEmpty() bool {
	for _, s := range t {
		if strings.TrimSpace(s.Text) != "" {
			return false
		}
	}
	return true
}

// Normalize returns a copy with text trimmed, empty segments removed, negative
// offsets clamped to zero, and segments stably ordered by start.
func (t Transcript) Normalize() Transcript {
	out := make(Transcript, 0, len(t))
	for _, s := range t {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" {
			continue
		}
		if s.Start < 0 {
			s.Start = 0
		}
		if s.Duration < 0 {
			s.Duration = 0
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Duration returns the end offset of the last displayed segment.
func (t Transcript) Duration() float64 {
	var end float64
	for _, s := range t {
		if e := s.End(); e > end {
			end = e
		}
	}
	return end
}
