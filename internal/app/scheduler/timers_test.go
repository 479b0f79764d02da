package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerQueue_PopDueOrdersByDeadline(t *testing.T) {
	q := newTimerQueue()
	base := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)

	q.Arm(1, base.Add(3*time.Minute), base.Add(10*time.Minute))
	q.Arm(2, base.Add(1*time.Minute), base.Add(5*time.Minute))

	due := q.PopDue(base.Add(4 * time.Minute))
	require.Len(t, due, 2)
	assert.Equal(t, int64(2), due[0].jobID)
	assert.Equal(t, actionStart, due[0].action)
	assert.Equal(t, int64(1), due[1].jobID)
	assert.Equal(t, actionStart, due[1].action)

	// Stops remain armed.
	assert.Equal(t, 2, q.Len())
}

func TestTimerQueue_NothingDueBeforeDeadline(t *testing.T) {
	q := newTimerQueue()
	base := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)
	q.Arm(1, base.Add(time.Hour), base.Add(2*time.Hour))

	assert.Empty(t, q.PopDue(base))

	deadline, ok := q.NextDeadline()
	require.True(t, ok)
	assert.Equal(t, base.Add(time.Hour), deadline)
}

func TestTimerQueue_ReArmReplacesOldTimers(t *testing.T) {
	q := newTimerQueue()
	base := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)

	q.Arm(1, base.Add(time.Minute), base.Add(2*time.Minute))
	q.Arm(1, base.Add(time.Hour), base.Add(2*time.Hour))

	// The superseded timers never fire.
	assert.Empty(t, q.PopDue(base.Add(5*time.Minute)))
	assert.Equal(t, 2, q.Len())

	due := q.PopDue(base.Add(3 * time.Hour))
	require.Len(t, due, 2)
	assert.Equal(t, base.Add(time.Hour), due[0].at)
}

func TestTimerQueue_CancelRemovesUnfired(t *testing.T) {
	q := newTimerQueue()
	base := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)

	q.Arm(1, base.Add(time.Minute), base.Add(2*time.Minute))
	q.Arm(2, base.Add(time.Minute), base.Add(2*time.Minute))
	q.Cancel(1)

	assert.Equal(t, 2, q.Len())
	due := q.PopDue(base.Add(time.Hour))
	require.Len(t, due, 2)
	for _, timer := range due {
		assert.Equal(t, int64(2), timer.jobID)
	}

	_, ok := q.NextDeadline()
	assert.False(t, ok)
}

func TestTimerQueue_ZeroTimesSkipActions(t *testing.T) {
	q := newTimerQueue()
	base := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)

	q.Arm(1, time.Time{}, base.Add(time.Minute))
	assert.Equal(t, 1, q.Len())

	due := q.PopDue(base.Add(time.Hour))
	require.Len(t, due, 1)
	assert.Equal(t, actionStop, due[0].action)
}
