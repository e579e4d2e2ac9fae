package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogAppendAndReadAll(t *testing.T) {
	l := NewLog()
	t0 := time.Unix(100, 0)

	l.Append(LogEntry{Timestamp: t0, ToStageID: "start", Reason: ReasonStarted})
	l.Append(LogEntry{Timestamp: t0.Add(time.Second), FromStageID: "start", ToStageID: "a", Reason: "Transitioning to A"})

	all := l.ReadAll()
	require.Len(t, all, 2)
	assert.True(t, all[0].IsStart())
	assert.Equal(t, "a", all[1].ToStageID)

	// ReadAll hands out a copy.
	all[0].Reason = "mutated"
	assert.Equal(t, ReasonStarted, l.ReadAll()[0].Reason)
}

func TestLogClampsDecreasingTimestamps(t *testing.T) {
	l := NewLog()
	t0 := time.Unix(100, 0)

	l.Append(LogEntry{Timestamp: t0, ToStageID: "start"})
	stored := l.Append(LogEntry{Timestamp: t0.Add(-time.Second), FromStageID: "start", ToStageID: "a"})

	assert.Equal(t, t0, stored.Timestamp)
	all := l.ReadAll()
	for i := 0; i+1 < len(all); i++ {
		assert.False(t, all[i+1].Timestamp.Before(all[i].Timestamp))
	}
}

func TestLogReset(t *testing.T) {
	l := NewLog()
	l.Append(LogEntry{Timestamp: time.Now(), ToStageID: "start"})
	l.Reset()

	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.ReadAll())
	_, ok := l.Last()
	assert.False(t, ok)
}

func TestLogEntryComplete(t *testing.T) {
	e := LogEntry{FromStageID: "end", ToStageID: "end", Reason: ReasonComplete}
	assert.True(t, e.IsComplete())
	assert.False(t, e.IsStart())
}
