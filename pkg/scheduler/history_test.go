package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_AddGetList(t *testing.T) {
	h := NewHistory(3)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c", "d"} {
		h.Add(RunRecord{ID: id, StartedAt: base.Add(time.Duration(i) * time.Hour), Status: RunStatusSucceeded})
	}

	_, ok := h.Get("a")
	assert.False(t, ok, "oldest record is evicted")

	got, ok := h.Get("c")
	require.True(t, ok)
	assert.Equal(t, RunStatusSucceeded, got.Status)

	list := h.List()
	require.Len(t, list, 3)
	assert.Equal(t, "d", list[0].ID)
	assert.Equal(t, "c", list[1].ID)
	assert.Equal(t, "b", list[2].ID)
}

func TestHistory_AddReplaces(t *testing.T) {
	h := NewHistory(5)
	h.Add(RunRecord{ID: "r", Status: RunStatusRunning})
	h.Add(RunRecord{ID: "r", Status: RunStatusFailed, Error: "boom"})

	got, ok := h.Get("r")
	require.True(t, ok)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Len(t, h.List(), 1)
}

func TestNewHistory_DefaultSize(t *testing.T) {
	h := NewHistory(0)
	for i := 0; i < DefaultHistorySize+5; i++ {
		h.Add(RunRecord{ID: time.Duration(i).String()})
	}
	assert.Len(t, h.List(), DefaultHistorySize)
}

func TestRunRecord_Duration(t *testing.T) {
	start := time.Now()
	r := RunRecord{StartedAt: start}
	assert.Zero(t, r.Duration())

	end := start.Add(3 * time.Second)
	r.FinishedAt = &end
	assert.Equal(t, 3*time.Second, r.Duration())
}
