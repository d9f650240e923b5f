package models

import (
	"encoding/json"
	"fmt"
)

// Segment is a half-open [Start, Stop) interval in milliseconds, offset from
// the owning recording's start.
type Segment struct {
	Start int64
	Stop  int64
}

// Segments is an ordered set of non-overlapping segments sorted ascending by
// start. Producers (the conference service upload notice and the event room
// adjustment) already guarantee order and non-overlap, so no sorting or
// validation happens here. Treat as immutable after construction.
type Segments []Segment

// First returns the earliest segment, or false when the set is empty.
func (s Segments) First() (Segment, bool) {
	if len(s) == 0 {
		return Segment{}, false
	}
	return s[0], true
}

// Last returns the latest segment, or false when the set is empty.
func (s Segments) Last() (Segment, bool) {
	if len(s) == 0 {
		return Segment{}, false
	}
	return s[len(s)-1], true
}

// MarshalJSON encodes a segment as a [start, stop] pair.
func (s Segment) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int64{s.Start, s.Stop})
}

// UnmarshalJSON decodes a [start, stop] pair.
func (s *Segment) UnmarshalJSON(data []byte) error {
	var pair []int64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("segment pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("segment pair: expected 2 elements, got %d", len(pair))
	}
	s.Start = pair[0]
	s.Stop = pair[1]
	return nil
}
