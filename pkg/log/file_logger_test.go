package log

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEvents(t *testing.T, path string, events []Event) {
	t.Helper()

	logger, err := NewFileLogger(path)
	require.NoError(t, err)
	for _, e := range events {
		logger.Log(e)
	}
	require.NoError(t, logger.Close())
}

func readAll(t *testing.T, path string, filter Filter) []Event {
	t.Helper()

	reader, err := NewFilteredReader(path, filter)
	require.NoError(t, err)
	defer reader.Close()

	var events []Event
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return events
		}
		require.NoError(t, err)
		events = append(events, event)
	}
}

func TestFileLoggerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "station.clog")

	frame := []byte(`[2,"abc","Heartbeat",{}]`)
	writeEvents(t, path, []Event{
		NewFrameEvent("CP001", DirectionOut, 2, "abc", "Heartbeat", "", frame),
		NewStateEvent("CP001", 1, "Available", "Preparing", "session requested"),
		NewErrorEvent("CP001", DirectionIn, "malformed message: not a JSON array", "decode inbound frame"),
	})

	events := readAll(t, path, Filter{})
	require.Len(t, events, 3)

	assert.Equal(t, CategoryMessage, events[0].Category)
	require.NotNil(t, events[0].Frame)
	assert.Equal(t, "Heartbeat", events[0].Frame.Action)
	assert.Equal(t, "abc", events[0].Frame.CorrelationID)
	assert.Equal(t, frame, events[0].Frame.Data)
	assert.Equal(t, len(frame), events[0].Frame.Size)
	assert.False(t, events[0].Frame.Truncated)

	assert.Equal(t, CategoryState, events[1].Category)
	require.NotNil(t, events[1].StateChange)
	assert.Equal(t, 1, events[1].StateChange.EvseID)
	assert.Equal(t, "Available", events[1].StateChange.OldState)
	assert.Equal(t, "Preparing", events[1].StateChange.NewState)

	assert.Equal(t, CategoryError, events[2].Category)
	require.NotNil(t, events[2].Error)
	assert.Contains(t, events[2].Error.Message, "malformed")
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "station.clog")

	writeEvents(t, path, []Event{NewStateEvent("CP001", 0, "", "Connected", "")})
	writeEvents(t, path, []Event{NewStateEvent("CP001", 0, "Connected", "Disconnected", "local")})

	events := readAll(t, path, Filter{})
	assert.Len(t, events, 2)
}

func TestFrameEventTruncation(t *testing.T) {
	big := make([]byte, MaxFrameData+100)
	for i := range big {
		big[i] = 'x'
	}

	event := NewFrameEvent("CP001", DirectionOut, 2, "abc", "MeterValues", "", big)
	require.NotNil(t, event.Frame)
	assert.True(t, event.Frame.Truncated)
	assert.Len(t, event.Frame.Data, MaxFrameData)
	assert.Equal(t, len(big), event.Frame.Size)
}

func TestReaderFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "station.clog")

	writeEvents(t, path, []Event{
		NewFrameEvent("CP001", DirectionOut, 2, "a", "Heartbeat", "", nil),
		NewFrameEvent("CP001", DirectionIn, 3, "a", "Heartbeat", "", nil),
		NewFrameEvent("CP001", DirectionOut, 2, "b", "BootNotification", "", nil),
		NewFrameEvent("CP002", DirectionOut, 2, "c", "Heartbeat", "", nil),
		NewStateEvent("CP001", 1, "Available", "Charging", ""),
	})

	out := DirectionOut
	assert.Len(t, readAll(t, path, Filter{Direction: &out}), 4)

	msg := CategoryMessage
	assert.Len(t, readAll(t, path, Filter{Category: &msg}), 4)

	assert.Len(t, readAll(t, path, Filter{Action: "Heartbeat"}), 3)
	assert.Len(t, readAll(t, path, Filter{StationID: "CP002"}), 1)
	assert.Len(t, readAll(t, path, Filter{StationID: "CP001", Action: "BootNotification"}), 1)
}

func TestReaderTimeFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "station.clog")

	early := NewStateEvent("CP001", 0, "", "Connected", "")
	early.Timestamp = time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	late := NewStateEvent("CP001", 0, "Connected", "Disconnected", "")
	late.Timestamp = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	writeEvents(t, path, []Event{early, late})

	cut := time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC)

	events := readAll(t, path, Filter{TimeStart: &cut})
	require.Len(t, events, 1)
	assert.Equal(t, "Disconnected", events[0].StateChange.NewState)

	events = readAll(t, path, Filter{TimeEnd: &cut})
	require.Len(t, events, 1)
	assert.Equal(t, "Connected", events[0].StateChange.NewState)
}

func TestMultiLoggerFansOut(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.clog")
	pathB := filepath.Join(dir, "b.clog")

	a, err := NewFileLogger(pathA)
	require.NoError(t, err)
	b, err := NewFileLogger(pathB)
	require.NoError(t, err)

	multi := NewMultiLogger(a, b)
	multi.Log(NewStateEvent("CP001", 0, "", "Connected", ""))

	require.NoError(t, a.Close())
	require.NoError(t, b.Close())

	assert.Len(t, readAll(t, pathA, Filter{}), 1)
	assert.Len(t, readAll(t, pathB, Filter{}), 1)
}
