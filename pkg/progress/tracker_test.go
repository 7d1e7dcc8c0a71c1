// pkg/progress/tracker_test.go

package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerCounters(t *testing.T) {
	tracker := NewTracker(10)

	tracker.MarkSuccess()
	tracker.MarkSuccess()
	tracker.MarkFailed()
	tracker.MarkSkipped()

	snap := tracker.Snapshot()
	assert.Equal(t, uint64(10), snap.Total)
	assert.Equal(t, uint64(4), snap.Completed)
	assert.Equal(t, uint64(2), snap.Succeeded)
	assert.Equal(t, uint64(1), snap.Failed)
	assert.Equal(t, uint64(1), snap.Skipped)
	assert.False(t, snap.Cancelled)
}

func TestTrackerConcurrentUpdates(t *testing.T) {
	tracker := NewTracker(300)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				switch n {
				case 0:
					tracker.MarkSuccess()
				case 1:
					tracker.MarkFailed()
				default:
					tracker.MarkSkipped()
				}
			}
		}(i)
	}
	wg.Wait()

	snap := tracker.Snapshot()
	assert.Equal(t, uint64(300), snap.Completed)
	assert.Equal(t, uint64(100), snap.Succeeded)
	assert.Equal(t, uint64(100), snap.Failed)
	assert.Equal(t, uint64(100), snap.Skipped)
}

func TestTrackerCancel(t *testing.T) {
	tracker := NewTracker(5)
	assert.False(t, tracker.IsCancelled())

	tracker.Cancel()
	assert.True(t, tracker.IsCancelled())
	assert.True(t, tracker.Snapshot().Cancelled)
}

func TestSnapshotPercentage(t *testing.T) {
	tests := []struct {
		name      string
		total     uint64
		completed uint64
		want      float64
	}{
		{name: "zero total", total: 0, completed: 0, want: 0},
		{name: "half done", total: 100, completed: 50, want: 50},
		{name: "complete", total: 4, completed: 4, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := Snapshot{Total: tt.total, Completed: tt.completed}
			assert.InDelta(t, tt.want, snap.Percentage(), 0.001)
		})
	}
}

func TestSnapshotETA(t *testing.T) {
	t.Run("nil when nothing completed", func(t *testing.T) {
		snap := Snapshot{Total: 10, Completed: 0, Elapsed: time.Second}
		assert.Nil(t, snap.ETA())
	})

	t.Run("nil when complete", func(t *testing.T) {
		snap := Snapshot{Total: 10, Completed: 10, Elapsed: time.Second}
		assert.Nil(t, snap.ETA())
	})

	t.Run("estimates from average rate", func(t *testing.T) {
		// 50 done in 10s => 5/s => 50 remaining => ~10s.
		snap := Snapshot{Total: 100, Completed: 50, Elapsed: 10 * time.Second}
		eta := snap.ETA()
		require.NotNil(t, eta)
		assert.InDelta(t, 10, eta.Seconds(), 0.1)
	})
}

func TestSnapshotFormatStatus(t *testing.T) {
	snap := Snapshot{
		Total:     100,
		Completed: 50,
		Succeeded: 45,
		Failed:    3,
		Skipped:   2,
		Elapsed:   2500 * time.Millisecond,
	}
	assert.Equal(t, "50/100 (50.0%) - succeeded: 45, failed: 3, skipped: 2 - elapsed: 2.5s", snap.FormatStatus())
}

func TestTrackerUpdateTotal(t *testing.T) {
	tracker := NewTracker(10)
	tracker.UpdateTotal(25)
	assert.Equal(t, uint64(25), tracker.Snapshot().Total)
}
