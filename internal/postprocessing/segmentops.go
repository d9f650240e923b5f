package postprocessing

import (
	"time"

	"github.com/aura-webinar/dispatcher/internal/models"
)

const nsInMs = 1_000_000

// PinEventKind is the event service kind for focus-toggle events.
const PinEventKind = "pin"

// Envelope computes the minimal interval covering every track's recorded
// spans: [min over first segment starts, max over last segment stops).
// Returns ErrNoSegments when no track carries a segment.
func Envelope(sets []models.Segments) (models.Segment, error) {
	var env models.Segment
	found := false
	for _, set := range sets {
		first, ok := set.First()
		if !ok {
			continue
		}
		last, _ := set.Last()
		if !found {
			env = models.Segment{Start: first.Start, Stop: last.Stop}
			found = true
			continue
		}
		if first.Start < env.Start {
			env.Start = first.Start
		}
		if last.Stop > env.Stop {
			env.Stop = last.Stop
		}
	}
	if !found {
		return models.Segment{}, ErrNoSegments
	}
	return env, nil
}

// MinStartedAt returns the earliest start among the given timestamps; the
// adjust call anchors the room timeline on it. Fails on empty input.
func MinStartedAt(times []time.Time) (time.Time, error) {
	if len(times) == 0 {
		return time.Time{}, ErrNoTracks
	}
	min := times[0]
	for _, t := range times[1:] {
		if t.Before(min) {
			min = t
		}
	}
	return min, nil
}

// EventRoomOffset is a recording's lag behind the event room's opening. The
// room's lower time bound must be set (an open-ended room has no usable
// anchor).
func EventRoomOffset(roomTime models.TimeRange, recordingStartedAt time.Time) (time.Duration, error) {
	if roomTime.StartsAt == nil {
		return 0, ErrNoOpenTime
	}
	return recordingStartedAt.Sub(*roomTime.StartsAt), nil
}

// TranslateOccurred converts an event-room-relative occurrence time (ns) into
// the recording's own segment coordinate (ms), subtracting the recording's lag
// behind room-open.
func TranslateOccurred(occurredAtNs int64, eventRoomOffset time.Duration) int64 {
	return occurredAtNs/nsInMs - eventRoomOffset.Milliseconds()
}

// PinSegments walks the room's pin events in order and emits the intervals
// during which the recording's creator was the pinned focus.
//
// A pin opens when an event names the creator while none is open. Any later
// pin event closes the open interval: someone else getting pinned ends this
// recording's turn, and a repeated pin for the creator restarts it on the
// next event. A pin still open after the last event is cut at the end of the
// recording's last recorded segment; with no recorded segments it is dropped.
func PinSegments(pinEvents []models.RoomEvent, creator string, recorded models.Segments, eventRoomOffset time.Duration) models.Segments {
	var pins models.Segments
	var pinStart *int64

	for _, ev := range pinEvents {
		agent := ev.AgentID()
		if agent == "" {
			continue
		}
		occurred := TranslateOccurred(ev.OccurredAt, eventRoomOffset)
		if agent == creator && pinStart == nil {
			start := occurred
			pinStart = &start
		} else if pinStart != nil {
			pins = appendPin(pins, *pinStart, occurred)
			pinStart = nil
		}
	}
	if pinStart != nil {
		if last, ok := recorded.Last(); ok {
			pins = appendPin(pins, *pinStart, last.Stop)
		}
	}
	return pins
}

func appendPin(pins models.Segments, start, stop int64) models.Segments {
	if start >= stop {
		return pins
	}
	return append(pins, models.Segment{Start: start, Stop: stop})
}
