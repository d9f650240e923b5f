package postprocessing

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/dispatcher/internal/models"
)

func seg(start, stop int64) models.Segment {
	return models.Segment{Start: start, Stop: stop}
}

func pinEvent(t *testing.T, occurredAtNs int64, agent string) models.RoomEvent {
	t.Helper()
	data, err := json.Marshal(map[string]string{"agent_id": agent})
	require.NoError(t, err)
	return models.RoomEvent{
		ID:         uuid.New(),
		Kind:       PinEventKind,
		OccurredAt: occurredAtNs,
		Data:       data,
	}
}

func TestEnvelope(t *testing.T) {
	env, err := Envelope([]models.Segments{
		{seg(0, 1_500_000), seg(1_800_000, 3_000_000)},
		{seg(0, 2_700_000)},
	})
	require.NoError(t, err)
	assert.Equal(t, seg(0, 3_000_000), env)
}

func TestEnvelopeSkipsEmptyTracks(t *testing.T) {
	env, err := Envelope([]models.Segments{
		nil,
		{seg(500, 2_000)},
	})
	require.NoError(t, err)
	assert.Equal(t, seg(500, 2_000), env)
}

func TestEnvelopeNoSegments(t *testing.T) {
	_, err := Envelope(nil)
	assert.ErrorIs(t, err, ErrNoSegments)

	_, err = Envelope([]models.Segments{nil, nil})
	assert.ErrorIs(t, err, ErrNoSegments)
}

func TestMinStartedAt(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	got, err := MinStartedAt([]time.Time{base.Add(time.Minute), base, base.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, base, got)

	_, err = MinStartedAt(nil)
	assert.ErrorIs(t, err, ErrNoTracks)
}

func TestEventRoomOffset(t *testing.T) {
	opened := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	started := opened.Add(10 * time.Minute)

	offset, err := EventRoomOffset(models.TimeRange{StartsAt: &opened}, started)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, offset)

	_, err = EventRoomOffset(models.TimeRange{}, started)
	assert.ErrorIs(t, err, ErrNoOpenTime)
}

func TestTranslateOccurred(t *testing.T) {
	// 1.5e12 ns into the room, recording lagging 600s behind room open.
	got := TranslateOccurred(1_500_000_000_000, 600_000*time.Millisecond)
	assert.Equal(t, int64(900_000), got)
}

func TestPinSegmentsEmptyEvents(t *testing.T) {
	pins := PinSegments(nil, "web.agent1", models.Segments{seg(0, 3_000_000)}, 0)
	assert.Empty(t, pins)
}

func TestPinSegments(t *testing.T) {
	events := []models.RoomEvent{
		pinEvent(t, 0, "web.agent1"),
		pinEvent(t, 1_200_000_000_000, "web.agent2"),
		pinEvent(t, 1_500_000_000_000, "web.agent1"),
	}

	// agent1's recording spans the whole session; its trailing pin is cut at
	// the last recorded segment's stop.
	pins := PinSegments(events, "web.agent1",
		models.Segments{seg(0, 1_500_000), seg(1_800_000, 3_000_000)}, 0)
	assert.Equal(t, models.Segments{seg(0, 1_200_000), seg(1_500_000, 3_000_000)}, pins)

	// agent2's recording started 600s after room open, so both event times
	// shift into its own coordinates.
	pins = PinSegments(events, "web.agent2",
		models.Segments{seg(0, 2_700_000)}, 600_000*time.Millisecond)
	assert.Equal(t, models.Segments{seg(600_000, 900_000)}, pins)
}

func TestPinSegmentsTrailingPinWithoutRecordedSegments(t *testing.T) {
	events := []models.RoomEvent{pinEvent(t, 0, "web.agent1")}
	pins := PinSegments(events, "web.agent1", nil, 0)
	assert.Empty(t, pins)
}

func TestPinSegmentsForeignPinOnlyNeverOpens(t *testing.T) {
	events := []models.RoomEvent{
		pinEvent(t, 0, "web.agent2"),
		pinEvent(t, 1_000_000_000_000, "web.agent3"),
	}
	pins := PinSegments(events, "web.agent1", models.Segments{seg(0, 2_000_000)}, 0)
	assert.Empty(t, pins)
}

func TestPinSegmentsRepinBySameAgentClosesInterval(t *testing.T) {
	events := []models.RoomEvent{
		pinEvent(t, 0, "web.agent1"),
		pinEvent(t, 1_000_000_000_000, "web.agent1"),
	}
	pins := PinSegments(events, "web.agent1", models.Segments{seg(0, 2_000_000)}, 0)
	assert.Equal(t, models.Segments{seg(0, 1_000_000)}, pins)
}

func TestPinSegmentsDropsZeroLengthInterval(t *testing.T) {
	events := []models.RoomEvent{
		pinEvent(t, 1_000_000_000, "web.agent1"),
		pinEvent(t, 1_000_000_000, "web.agent2"),
	}
	pins := PinSegments(events, "web.agent1", models.Segments{seg(0, 2_000_000)}, 0)
	assert.Empty(t, pins)
}
